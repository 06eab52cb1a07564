package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/repoacademico/repositorio/services/excel"
)

var nowFunc = time.Now // mockable

func (cli *commandLine) exportReport(dir string) error {
	projects, err := cli.reports.Projects(cli.ctx)
	if err != nil {
		return err
	}
	now := nowFunc()
	f, err := excel.Build(projects, now)
	if err != nil {
		return errors.Wrap(err, "building workbook")
	}
	defer f.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "creating %s", dir)
	}
	path := filepath.Join(dir, excel.FileName(now))
	if err := f.SaveAs(path); err != nil {
		return errors.Wrapf(err, "saving %s", path)
	}
	cli.log.Info("report exported", map[string]interface{}{"path": path, "projects": len(projects)})
	fmt.Fprintf(cli.out, "Report with %d projects written to %s\n", len(projects), path)
	return nil
}
