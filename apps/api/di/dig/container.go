package dig_container

import (
	"context"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/studylab/apps/api/echo"
	"github.com/trezcool/studylab/core"
	"github.com/trezcool/studylab/core/activity"
	"github.com/trezcool/studylab/core/enrollment"
	"github.com/trezcool/studylab/core/group"
	"github.com/trezcool/studylab/core/message"
	"github.com/trezcool/studylab/core/project"
	"github.com/trezcool/studylab/core/user"
	emailsvc "github.com/trezcool/studylab/services/email"
	"github.com/trezcool/studylab/services/filestore"
	logsvc "github.com/trezcool/studylab/services/logger"
	"github.com/trezcool/studylab/storage/database"
	sqlxrepos "github.com/trezcool/studylab/storage/database/sqlx"
)

func newLogger(conf *core.Config) (core.Logger, *logsvc.RollbarLogger, error) {
	logger, err := logsvc.NewRollbarLogger(conf)
	if err != nil {
		return nil, nil, err
	}
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger, logger, nil
}

func newDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(context.Background(), conf); err != nil {
		return nil, errors.Wrap(err, "creating database")
	}
	db, err := database.Open(conf)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if err = database.Migrate(db, conf.Database.Engine); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "migrating database")
	}
	return db, nil
}

func newExecutors(db *sqlx.DB) (core.DB, core.DBExecutor) { return db, db }

func newValidator() (*validator.Validate, ut.Translator) {
	validate, translator := core.NewValidator()
	user.InitValidators(validate, translator)
	activity.InitValidators(validate, translator)
	message.InitValidators(validate, translator)
	return validate, translator
}

func newShutdownChan() chan os.Signal { return make(chan os.Signal, 1) }

func newSystemMessenger(svc *message.Service) activity.SystemMessenger { return svc }

type serverParams struct {
	dig.In

	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	Shutdown   chan os.Signal

	ProjectSvc    *project.Service
	EnrollmentSvc *enrollment.Service
	GroupSvc      *group.Service
	ActivitySvc   *activity.Service
	MessageSvc    *message.Service
	UserSvc       *user.Service
}

func newServer(p serverParams) echoapi.Server {
	return echoapi.NewServer(&echoapi.Options{
		Conf:          p.Conf,
		Logger:        p.Logger,
		Validate:      p.Validate,
		Translator:    p.Translator,
		Shutdown:      p.Shutdown,
		ProjectSvc:    p.ProjectSvc,
		EnrollmentSvc: p.EnrollmentSvc,
		GroupSvc:      p.GroupSvc,
		ActivitySvc:   p.ActivitySvc,
		MessageSvc:    p.MessageSvc,
		UserSvc:       p.UserSvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	// infrastructure
	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDB))
	must(c.Provide(newExecutors))
	must(c.Provide(emailsvc.NewService))
	must(c.Provide(filestore.New))
	must(c.Provide(newValidator))
	must(c.Provide(newShutdownChan))

	// repositories
	must(c.Provide(sqlxrepos.NewProjectRepository, dig.As(new(project.Repository))))
	must(c.Provide(sqlxrepos.NewGroupRepository, dig.As(new(group.Repository))))
	must(c.Provide(sqlxrepos.NewEnrollmentRepository, dig.As(new(enrollment.Repository))))
	must(c.Provide(sqlxrepos.NewActivityRepository, dig.As(new(activity.Repository))))
	must(c.Provide(sqlxrepos.NewMessageRepository, dig.As(new(message.Repository))))
	must(c.Provide(sqlxrepos.NewUserRepository, dig.As(new(user.Repository))))

	// services
	must(c.Provide(project.NewService))
	must(c.Provide(group.NewService))
	must(c.Provide(enrollment.NewService))
	must(c.Provide(user.NewService))
	must(c.Provide(message.NewService))
	must(c.Provide(newSystemMessenger))
	must(c.Provide(activity.NewService))

	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
