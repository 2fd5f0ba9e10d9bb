package testutil

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/trezcool/kinerja/core"
	"github.com/trezcool/kinerja/core/aspect"
	"github.com/trezcool/kinerja/core/dashboard"
	"github.com/trezcool/kinerja/core/evaluation"
	"github.com/trezcool/kinerja/core/organization"
	"github.com/trezcool/kinerja/core/period"
	"github.com/trezcool/kinerja/core/rpp"
	"github.com/trezcool/kinerja/core/user"
	appfs "github.com/trezcool/kinerja/fs"
	emailsvc "github.com/trezcool/kinerja/services/email"
	logsvc "github.com/trezcool/kinerja/services/logger"
	metricsvc "github.com/trezcool/kinerja/services/metrics"
	"github.com/trezcool/kinerja/storage/cache"
	dummydb "github.com/trezcool/kinerja/storage/database/dummy"
)

var initOnce sync.Once

// Env is a fully wired app on the in-memory database.
type Env struct {
	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	DB         *dummydb.DB
	Mail       *emailsvc.Mock
	Recorder   *metricsvc.Recorder
	Cache      core.Cache

	UserRepo         user.Repository
	OrganizationRepo organization.Repository
	PeriodRepo       period.Repository
	AspectRepo       aspect.Repository
	RPPRepo          rpp.Repository
	EvaluationRepo   evaluation.Repository

	UserSvc         *user.Service
	OrganizationSvc *organization.Service
	PeriodSvc       *period.Service
	AspectSvc       *aspect.Service
	RPPSvc          *rpp.Service
	EvaluationSvc   *evaluation.Service
	DashboardSvc    *dashboard.Service
}

// NewConfig returns the app config in test mode.
func NewConfig() *core.Config {
	conf := core.NewConfig()
	conf.TestMode = true
	conf.Debug = false
	conf.RollbarToken = ""
	conf.SendgridApiKey = ""
	conf.Redis.Addr = ""
	conf.Evaluation.DefaultGrade = evaluation.GradeC
	return conf
}

// NewLogger returns a logger that discards everything.
func NewLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
}

func NewEnv(t *testing.T) *Env {
	t.Helper()

	conf := NewConfig()
	logger := NewLogger(conf)
	initOnce.Do(func() {
		core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf, logger)
		user.LoadCommonPasswords(appfs.FS, appfs.CommonPasswords, logger)
	})

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	rpp.InitValidators(validate, translator)
	evaluation.InitValidators(validate, translator)

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open(): %v", err)
	}
	tx := dummydb.NewTransactor(db)

	env := &Env{
		Conf:       conf,
		Logger:     logger,
		Validate:   validate,
		Translator: translator,
		DB:         db,
		Mail:       emailsvc.NewMock(conf, logger),
		Recorder:   metricsvc.NewRecorder(),
		Cache:      cache.NewMemory(conf.Cache.Size, conf.Cache.TTL),

		UserRepo:         dummydb.NewUserRepository(db),
		OrganizationRepo: dummydb.NewOrganizationRepository(db),
		PeriodRepo:       dummydb.NewPeriodRepository(db),
		AspectRepo:       dummydb.NewAspectRepository(db),
		RPPRepo:          dummydb.NewRPPRepository(db),
		EvaluationRepo:   dummydb.NewEvaluationRepository(db),
	}

	env.UserSvc = user.NewService(env.UserRepo, env.Mail, conf)
	env.OrganizationSvc = organization.NewService(tx, env.OrganizationRepo, env.UserRepo)
	env.PeriodSvc = period.NewService(tx, env.PeriodRepo)
	env.AspectSvc = aspect.NewService(env.AspectRepo)
	env.RPPSvc = rpp.NewService(tx, env.RPPRepo, env.UserRepo, env.PeriodRepo, env.Mail, env.Recorder, logger)
	env.EvaluationSvc = evaluation.NewService(
		tx, env.EvaluationRepo, env.UserRepo, env.OrganizationRepo, env.PeriodRepo, env.AspectRepo,
		env.Recorder, logger, conf,
	)
	env.DashboardSvc = dashboard.NewService(env.RPPSvc, env.EvaluationSvc, env.PeriodSvc, env.Cache, conf, logger)
	return env
}

// Reset empties the database and the sent emails.
func (env *Env) Reset() {
	env.DB.Flush()
	env.Mail.Reset()
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

// CreateMember creates an active user of orgID.
func CreateMember(t *testing.T, repo user.Repository, orgID, name, uname string, roles ...string) user.User {
	t.Helper()

	usr := CreateUser(t, repo, name, uname, uname+"@test.id", "", roles, true)
	usr.OrganizationID = orgID
	usr, err := repo.UpdateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createMember() failed: %v", err)
	}
	return usr
}

func CreateOrg(t *testing.T, repo organization.Repository, name string, headID ...string) organization.Organization {
	t.Helper()

	now := core.Now()
	org := organization.Organization{Name: name, CreatedAt: now, UpdatedAt: now}
	if len(headID) > 0 {
		org.HeadID = headID[0]
	}
	org, err := repo.CreateOrganization(context.Background(), org)
	if err != nil {
		t.Fatalf("createOrg() failed: %v", err)
	}
	return org
}

// CreatePeriod creates a period spanning [start, end] (YYYY-MM-DD).
func CreatePeriod(t *testing.T, repo period.Repository, year, semester, start, end string, isActive bool) period.Period {
	t.Helper()

	parse := func(s string) time.Time {
		d, err := time.Parse("2006-01-02", s)
		if err != nil {
			t.Fatalf("createPeriod() failed: %v", err)
		}
		return d
	}
	now := core.Now()
	p := period.Period{
		AcademicYear: year,
		Semester:     semester,
		StartDate:    parse(start),
		EndDate:      parse(end),
		IsActive:     isActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	p, err := repo.CreatePeriod(context.Background(), p)
	if err != nil {
		t.Fatalf("createPeriod() failed: %v", err)
	}
	return p
}

func CreateAspect(t *testing.T, repo aspect.Repository, name, category string, weight float64, isActive bool) aspect.Aspect {
	t.Helper()

	now := core.Now()
	a := aspect.Aspect{
		Name:      name,
		Category:  category,
		Weight:    decimal.NewFromFloat(weight),
		MinScore:  aspect.DefaultMinScore,
		MaxScore:  aspect.DefaultMaxScore,
		IsActive:  isActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	a, err := repo.CreateAspect(context.Background(), a)
	if err != nil {
		t.Fatalf("createAspect() failed: %v", err)
	}
	return a
}

// CreateSchool creates an organization headed by a new active kepala_sekolah member.
func CreateSchool(t *testing.T, users user.Repository, orgs organization.Repository, name, headUname string) (organization.Organization, user.User) {
	t.Helper()

	org := CreateOrg(t, orgs, name)
	head := CreateMember(t, users, org.ID, "Kepala "+name, headUname, user.RoleKepalaSekolah)
	org.HeadID = head.ID
	org, err := orgs.UpdateOrganization(context.Background(), org)
	if err != nil {
		t.Fatalf("createSchool() failed: %v", err)
	}
	return org, head
}
