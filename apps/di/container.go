// Package di wires the repositories and services shared by the api, the worker and the admin CLI.
package di

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/quizhub/core"
	"github.com/trezcool/quizhub/core/attempt"
	"github.com/trezcool/quizhub/core/authz"
	"github.com/trezcool/quizhub/core/catalog"
	"github.com/trezcool/quizhub/core/coursework"
	"github.com/trezcool/quizhub/core/discussion"
	"github.com/trezcool/quizhub/core/enrollment"
	"github.com/trezcool/quizhub/core/job"
	"github.com/trezcool/quizhub/core/material"
	"github.com/trezcool/quizhub/core/notification"
	"github.com/trezcool/quizhub/core/progress"
	"github.com/trezcool/quizhub/core/report"
	"github.com/trezcool/quizhub/core/user"
	emailsvc "github.com/trezcool/quizhub/services/email"
	dummydb "github.com/trezcool/quizhub/storage/database/dummy"
	sqlxrepos "github.com/trezcool/quizhub/storage/database/sqlx"
)

type (
	Repos struct {
		Users         user.Repository
		Catalog       catalog.Repository
		Attempts      attempt.Repository
		Enrollments   enrollment.Repository
		Discussions   discussion.Repository
		Materials     material.Repository
		Coursework    coursework.Repository
		Notifications notification.Repository
		Reports       report.Repository
	}

	Services struct {
		Users         *user.Service
		Catalog       *catalog.Service
		Attempts      *attempt.Service
		Progress      *progress.Service
		Enrollments   *enrollment.Service
		Policy        *authz.Policy
		Discussions   *discussion.Service
		Materials     *material.Service
		Coursework    *coursework.Service
		Notifications *notification.Service
		Jobs          *job.Service
		Reports       *report.Service
	}

	// Deps are the outer services the domain services are built on.
	Deps struct {
		Conf      *core.Config
		Logger    core.Logger
		Mail      core.EmailService
		Files     core.FileStore
		Jobs      job.Store
		Publisher discussion.Publisher // optional
	}
)

func SQLRepos(db *sqlx.DB) Repos {
	return Repos{
		Users:         sqlxrepos.NewUserRepository(db),
		Catalog:       sqlxrepos.NewCatalogRepository(db),
		Attempts:      sqlxrepos.NewAttemptRepository(db),
		Enrollments:   sqlxrepos.NewEnrollmentRepository(db),
		Discussions:   sqlxrepos.NewDiscussionRepository(db),
		Materials:     sqlxrepos.NewMaterialRepository(db),
		Coursework:    sqlxrepos.NewCourseworkRepository(db),
		Notifications: sqlxrepos.NewNotificationRepository(db),
		Reports:       sqlxrepos.NewReportRepository(db),
	}
}

// DummyRepos keeps everything in memory. Used by tests.
func DummyRepos(db *dummydb.DB) Repos {
	return Repos{
		Users:         dummydb.NewUserRepository(db),
		Catalog:       dummydb.NewCatalogRepository(db),
		Attempts:      dummydb.NewAttemptRepository(db),
		Enrollments:   dummydb.NewEnrollmentRepository(db),
		Discussions:   dummydb.NewDiscussionRepository(db),
		Materials:     dummydb.NewMaterialRepository(db),
		Coursework:    dummydb.NewCourseworkRepository(db),
		Notifications: dummydb.NewNotificationRepository(db),
		Reports:       dummydb.NewReportRepository(db),
	}
}

func NewServices(repos Repos, deps Deps) *Services {
	usrSvc := user.NewService(repos.Users, deps.Mail, deps.Conf)
	catalogSvc := catalog.NewService(repos.Catalog)
	attemptSvc := attempt.NewService(repos.Attempts, catalogSvc)
	enrollmentSvc := enrollment.NewService(repos.Enrollments)
	policy := authz.NewPolicy(authz.NewGrants(enrollmentSvc, catalogSvc))
	notificationSvc := notification.NewService(repos.Notifications)

	return &Services{
		Users:         usrSvc,
		Catalog:       catalogSvc,
		Attempts:      attemptSvc,
		Progress:      progress.NewService(catalogSvc, attemptSvc, enrollmentSvc),
		Enrollments:   enrollmentSvc,
		Policy:        policy,
		Discussions:   discussion.NewService(repos.Discussions, policy, deps.Publisher),
		Materials:     material.NewService(repos.Materials, deps.Files, catalogSvc, policy, deps.Logger),
		Coursework:    coursework.NewService(repos.Coursework, catalogSvc, enrollmentSvc, notificationSvc, policy, deps.Logger),
		Notifications: notificationSvc,
		Jobs:          job.NewService(deps.Jobs),
		Reports:       report.NewService(repos.Reports, usrSvc, attemptSvc, catalogSvc, deps.Mail, deps.Conf, deps.Logger),
	}
}

func NewEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridApiKey == "" {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

// NewValidator registers every custom validation along with its translation.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	catalog.InitValidators(validate, translator)
	return validate, translator
}
