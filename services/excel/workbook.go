// Package excel renders the project report workbook.
package excel

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/repoacademico/repositorio/core"
	"github.com/repoacademico/repositorio/core/report"
)

const (
	SummarySheet = "Resumen"

	maxSheetName = 31
	dateLayout   = "02/01/2006"
)

var (
	projectHeader = []interface{}{"Proyecto", "Descripción", "Estado", "Tutor", "Calif.", "Notas", "Memoria", "Archivo", "Fecha"}
	projectWidths = []float64{40, 50, 12, 25, 10, 8, 10, 25, 12}

	// Excel rejects these in sheet names.
	sheetNameReplacer = strings.NewReplacer(":", "-", "\\", "-", "/", "-", "?", "", "*", "", "[", "(", "]", ")")

	estadoColors = map[string]string{
		report.EstadoAprobado:   "28A745",
		report.EstadoRechazado:  "DC3545",
		report.EstadoFinalizado: "007BFF",
	}
)

// FileName is the download name of the workbook generated at now.
func FileName(now time.Time) string {
	return fmt.Sprintf("Reporte_Proyectos_%s.xlsx", now.Format("2006-01-02"))
}

// SheetName names the sheet of a promotion and specialty, shortened to the
// 31 characters a sheet name may hold.
func SheetName(g report.Group) string {
	name := sheetNameReplacer.Replace(fmt.Sprintf("%d %s", g.Promocion, g.Especialidad))
	return core.Truncate(name, maxSheetName)
}

type styles struct {
	title, header, band, total, center, wrap int
	estado                                  map[string]int
	grade                                   map[string]int
	memoria, noMemoria                      int
}

func newStyles(f *excelize.File) (*styles, error) {
	s := &styles{estado: make(map[string]int), grade: make(map[string]int)}
	var err error
	add := func(dst *int, st *excelize.Style) {
		if err != nil {
			return
		}
		*dst, err = f.NewStyle(st)
	}
	center := &excelize.Alignment{Horizontal: "center"}
	add(&s.title, &excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}, Alignment: center})
	add(&s.header, &excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"5B9BD5"}},
		Alignment: center,
	})
	add(&s.band, &excelize.Style{Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"F5F5F5"}}})
	add(&s.total, &excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"D9E1F2"}},
	})
	add(&s.center, &excelize.Style{Alignment: center})
	add(&s.wrap, &excelize.Style{Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"}})
	for estado, color := range estadoColors {
		var id int
		add(&id, &excelize.Style{Font: &excelize.Font{Bold: true, Color: color}, Alignment: center})
		s.estado[estado] = id
	}
	for name, font := range map[string]*excelize.Font{
		"high": {Bold: true, Color: "28A745"},
		"mid":  {Color: "007BFF"},
		"low":  {Color: "DC3545"},
	} {
		var id int
		add(&id, &excelize.Style{Font: font, Alignment: center})
		s.grade[name] = id
	}
	add(&s.memoria, &excelize.Style{Font: &excelize.Font{Bold: true, Color: "28A745"}, Alignment: center})
	add(&s.noMemoria, &excelize.Style{Font: &excelize.Font{Color: "DC3545"}, Alignment: center})
	if err != nil {
		return nil, errors.Wrap(err, "creating styles")
	}
	return s, nil
}

func gradeLevel(calif float64) string {
	switch {
	case calif >= 9:
		return "high"
	case calif >= 7:
		return "mid"
	case calif > 0:
		return "low"
	}
	return ""
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

// Build renders projects into a workbook: a summary sheet followed by one
// sheet per promotion and specialty.
func Build(projects []report.Project, now time.Time) (*excelize.File, error) {
	f := excelize.NewFile()
	st, err := newStyles(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		_ = f.Close()
		return nil, errors.Wrap(err, "naming summary sheet")
	}
	if err := writeSummary(f, st, report.Summarize(projects), now); err != nil {
		_ = f.Close()
		return nil, err
	}

	used := map[string]int{SummarySheet: 1}
	for _, g := range report.GroupProjects(projects) {
		base := SheetName(g)
		name := base
		// distinct groups may truncate to the same name
		for n := used[base]; used[name] > 0; n++ {
			suffix := fmt.Sprintf(" (%d)", n+1)
			name = core.Truncate(base, maxSheetName-len(suffix)) + suffix
		}
		used[base]++
		used[name]++
		if err := writeGroup(f, st, name, g); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

func writeSummary(f *excelize.File, st *styles, sum report.Summary, now time.Time) error {
	sheet := SummarySheet
	rows := [][]interface{}{
		{"RESUMEN GENERAL"},
		{},
		{"Concepto", "Valor"},
		{"Promociones", sum.Promociones},
		{"Especialidades", sum.Especialidades},
		{"Proyectos", sum.Proyectos},
		{"Con Memoria", sum.ConMemoria},
		{"Calificados", sum.Calificados},
		{"Promedio", fmt.Sprintf("%.2f", sum.Promedio)},
	}
	estados := make([]string, 0, len(sum.PorEstado))
	for estado := range sum.PorEstado {
		estados = append(estados, estado)
	}
	sort.Strings(estados)
	for _, estado := range estados {
		rows = append(rows, []interface{}{"Estado: " + estado, sum.PorEstado[estado]})
	}
	rows = append(rows, []interface{}{}, []interface{}{"Generado:", now.Format("02/01/2006 15:04")})

	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		if err := f.SetSheetRow(sheet, cell(1, i+1), &row); err != nil {
			return errors.Wrap(err, "writing summary")
		}
	}
	if err := f.SetColWidth(sheet, "A", "A", 30); err != nil {
		return errors.Wrap(err, "sizing summary")
	}
	if err := f.SetColWidth(sheet, "B", "B", 20); err != nil {
		return errors.Wrap(err, "sizing summary")
	}
	if err := f.SetCellStyle(sheet, "A1", "A1", st.title); err != nil {
		return errors.Wrap(err, "styling summary")
	}
	if err := f.SetCellStyle(sheet, "A3", "B3", st.total); err != nil {
		return errors.Wrap(err, "styling summary")
	}
	return nil
}

func writeGroup(f *excelize.File, st *styles, sheet string, g report.Group) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return errors.Wrapf(err, "creating sheet %s", sheet)
	}
	last := len(projectHeader)
	lastCol, _ := excelize.ColumnNumberToName(last)

	title := fmt.Sprintf("%s - Promoción %d", g.Especialidad, g.Promocion)
	if err := f.SetCellValue(sheet, "A1", title); err != nil {
		return errors.Wrap(err, "writing title")
	}
	if err := f.MergeCell(sheet, "A1", lastCol+"1"); err != nil {
		return errors.Wrap(err, "merging title")
	}
	if err := f.SetCellStyle(sheet, "A1", "A1", st.title); err != nil {
		return errors.Wrap(err, "styling title")
	}
	if err := f.SetRowHeight(sheet, 1, 25); err != nil {
		return errors.Wrap(err, "sizing title")
	}

	row := 3
	if g.PromocionDescripcion != "" {
		if err := f.SetCellValue(sheet, "A2", g.PromocionDescripcion); err != nil {
			return errors.Wrap(err, "writing description")
		}
		if err := f.MergeCell(sheet, "A2", lastCol+"2"); err != nil {
			return errors.Wrap(err, "merging description")
		}
		row = 4
	}
	headerRow := row

	header := projectHeader
	if err := f.SetSheetRow(sheet, cell(1, headerRow), &header); err != nil {
		return errors.Wrap(err, "writing header")
	}
	if err := f.SetCellStyle(sheet, cell(1, headerRow), cell(last, headerRow), st.header); err != nil {
		return errors.Wrap(err, "styling header")
	}
	if err := f.SetRowHeight(sheet, headerRow, 20); err != nil {
		return errors.Wrap(err, "sizing header")
	}
	for i, w := range projectWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheet, col, col, w); err != nil {
			return errors.Wrap(err, "sizing columns")
		}
	}

	for i, p := range g.Projects {
		row = headerRow + 1 + i
		memoria := "No"
		if p.Memoria {
			memoria = "Sí"
		}
		fecha := ""
		if !p.Creado.IsZero() {
			fecha = p.Creado.Format(dateLayout)
		}
		values := []interface{}{
			p.Titulo, p.Descripcion, p.Estado, p.Tutor,
			fmt.Sprintf("%.2f", p.Calificacion), p.Notas, memoria, p.Archivo, fecha,
		}
		if err := f.SetSheetRow(sheet, cell(1, row), &values); err != nil {
			return errors.Wrapf(err, "writing project %d", p.ID)
		}
		if err := styleProject(f, st, sheet, row, i, p); err != nil {
			return err
		}
	}

	row += 2
	totals := []interface{}{
		"TOTALES:", fmt.Sprintf("%d proyectos", len(g.Projects)), "", "",
		fmt.Sprintf("%.2f", g.AverageGrade()), "", g.WithMemoria(),
	}
	if err := f.SetSheetRow(sheet, cell(1, row), &totals); err != nil {
		return errors.Wrap(err, "writing totals")
	}
	if err := f.SetCellStyle(sheet, cell(1, row), cell(last, row), st.total); err != nil {
		return errors.Wrap(err, "styling totals")
	}

	return errors.Wrap(f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      headerRow,
		TopLeftCell: cell(1, headerRow+1),
		ActivePane:  "bottomLeft",
	}), "freezing header")
}

func styleProject(f *excelize.File, st *styles, sheet string, row, i int, p report.Project) error {
	last := len(projectHeader)
	set := func(col, style int) error {
		return f.SetCellStyle(sheet, cell(col, row), cell(col, row), style)
	}
	if i%2 == 0 {
		if err := f.SetCellStyle(sheet, cell(1, row), cell(last, row), st.band); err != nil {
			return errors.Wrap(err, "styling row")
		}
	}
	styled := map[int]int{1: st.wrap, 2: st.wrap, 5: st.center, 6: st.center, 9: st.center}
	if id, ok := st.estado[p.Estado]; ok {
		styled[3] = id
	} else {
		styled[3] = st.center
	}
	if id, ok := st.grade[gradeLevel(p.Calificacion)]; ok {
		styled[5] = id
	}
	if p.Memoria {
		styled[7] = st.memoria
	} else {
		styled[7] = st.noMemoria
	}
	for col, style := range styled {
		if err := set(col, style); err != nil {
			return errors.Wrap(err, "styling cell")
		}
	}
	return nil
}
