package main

import (
	"log"
	"os"

	"github.com/trezcool/kinerja/core"
	"github.com/trezcool/kinerja/core/aspect"
	"github.com/trezcool/kinerja/core/evaluation"
	"github.com/trezcool/kinerja/core/rpp"
	"github.com/trezcool/kinerja/core/user"
	emailsvc "github.com/trezcool/kinerja/services/email"
	logsvc "github.com/trezcool/kinerja/services/logger"
	metricsvc "github.com/trezcool/kinerja/services/metrics"
	"github.com/trezcool/kinerja/storage/database"
	sqlxrepos "github.com/trezcool/kinerja/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	logger.Enable(!conf.Debug)

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal("setting up database", err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}
	defer func() { _ = db.Close() }()

	// set up services
	tx := database.NewTransactor(db)
	usrRepo := sqlxrepos.NewUserRepository(db)
	orgRepo := sqlxrepos.NewOrganizationRepository(db)
	periodRepo := sqlxrepos.NewPeriodRepository(db)
	aspectRepo := sqlxrepos.NewAspectRepository(db)
	mailSvc := emailsvc.New(conf, logger)
	recorder := metricsvc.NewRecorder()

	// start CLI
	cli := commandLine{
		db:        db.DB,
		usrSvc:    user.NewService(usrRepo, mailSvc, conf),
		aspectSvc: aspect.NewService(aspectRepo),
		rppSvc:    rpp.NewService(tx, sqlxrepos.NewRPPRepository(db), usrRepo, periodRepo, mailSvc, recorder, logger),
		evalSvc: evaluation.NewService(
			tx, sqlxrepos.NewEvaluationRepository(db), usrRepo, orgRepo, periodRepo, aspectRepo, recorder, logger, conf,
		),
		out: os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error("command failed", err)
		}
		_ = db.Close()
		os.Exit(1)
	}
}
