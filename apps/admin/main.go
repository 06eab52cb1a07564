package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/repoacademico/repositorio/core"
	"github.com/repoacademico/repositorio/core/migration"
	"github.com/repoacademico/repositorio/core/user"
	logsvc "github.com/repoacademico/repositorio/services/logger"
	"github.com/repoacademico/repositorio/storage/database"
)

var logger *log.Logger

func main() {
	code := 0
	defer func() { os.Exit(code) }()

	logger = logsvc.NewStd("ADMIN : ")

	conf, err := core.NewConfig(".")
	errAndDie(err)

	runID := uuid.New().String()
	appLogger := logsvc.New(logger, conf, runID)
	if rl, ok := appLogger.(*logsvc.RollbarLogger); ok {
		defer rl.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// set up DB
	db, err := database.Open(ctx, conf)
	if err != nil {
		appLogger.Error("connecting to "+conf.Database.Redacted()+" failed", err)
		code = 1
		return
	}
	defer db.Close()

	// start CLI
	cli := commandLine{
		ctx:      ctx,
		out:      os.Stdout,
		log:      appLogger,
		runID:    runID,
		target:   conf.Database.Redacted(),
		sessions: openSession(db),
		usrSvc:   user.NewService(database.NewUserRepository(db)),
		reports:  database.NewReportRepository(db),
	}
	if err := cli.run(os.Args); err != nil {
		reportErr(logger, appLogger, err)
		code = 1
	}
}

// reportErr logs a failed command unless it was already reported.
// Step failures are logged by the migration runner with their run id.
func reportErr(std *log.Logger, appLogger core.Logger, err error) {
	var serr *migration.StepError
	switch {
	case errors.Is(err, errHelp):
	case core.IsShutdown(err):
		std.Printf("\n%s\n", err)
	case errors.As(err, &serr):
	default:
		appLogger.Error("command failed", err)
	}
}

func openSession(db *sqlx.DB) sessionOpener {
	return func(ctx context.Context, fn func(sess migration.Session) error) error {
		return database.WithSession(ctx, db, func(sess *database.Session) error {
			return fn(sess)
		})
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
