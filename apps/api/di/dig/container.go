package dig_container

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/kinerja/apps/api/echo"
	"github.com/trezcool/kinerja/core"
	"github.com/trezcool/kinerja/core/aspect"
	"github.com/trezcool/kinerja/core/dashboard"
	"github.com/trezcool/kinerja/core/evaluation"
	"github.com/trezcool/kinerja/core/organization"
	"github.com/trezcool/kinerja/core/period"
	"github.com/trezcool/kinerja/core/rpp"
	"github.com/trezcool/kinerja/core/user"
	emailsvc "github.com/trezcool/kinerja/services/email"
	logsvc "github.com/trezcool/kinerja/services/logger"
	metricsvc "github.com/trezcool/kinerja/services/metrics"
	"github.com/trezcool/kinerja/storage/cache"
	"github.com/trezcool/kinerja/storage/database"
	sqlxrepos "github.com/trezcool/kinerja/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

func newRecorder() (*metricsvc.Recorder, core.Recorder, echoapi.RequestObserver) {
	r := metricsvc.NewRecorder()
	return r, r, r
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(database.NewTransactor))
	must(c.Provide(emailsvc.New))
	must(c.Provide(cache.New))
	must(c.Provide(newRecorder))
	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))

	// repositories
	must(c.Provide(sqlxrepos.NewUserRepository))
	must(c.Provide(sqlxrepos.NewOrganizationRepository))
	must(c.Provide(sqlxrepos.NewPeriodRepository))
	must(c.Provide(sqlxrepos.NewAspectRepository))
	must(c.Provide(sqlxrepos.NewRPPRepository))
	must(c.Provide(sqlxrepos.NewEvaluationRepository))

	// services
	must(c.Provide(user.NewService))
	must(c.Provide(organization.NewService))
	must(c.Provide(period.NewService))
	must(c.Provide(aspect.NewService))
	must(c.Provide(rpp.NewService))
	must(c.Provide(evaluation.NewService))
	must(c.Provide(dashboard.NewService))

	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
