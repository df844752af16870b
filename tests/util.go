package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

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

// DefaultPassword satisfies the password policy.
const DefaultPassword = "s3cret-Pa55"

// PrepareDB opens a migrated SQLite database in a temp dir; it is closed when the test ends.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()

	conf := core.NewTestConfig()
	conf.Database.Name = filepath.Join(t.TempDir(), "test.db")

	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db, conf.Database.Engine); err != nil {
		t.Fatalf("PrepareDB() failed to migrate: %v", err)
	}
	return db
}

// App holds the services of the app, wired on a fresh test database.
type App struct {
	Conf       *core.Config
	DB         *sqlx.DB
	Logger     core.Logger
	Mail       *emailsvc.ServiceMock
	Files      *filestore.LocalStore
	Validate   *validator.Validate
	Translator ut.Translator

	ProjectRepo    project.Repository
	GroupRepo      group.Repository
	EnrollmentRepo enrollment.Repository
	ActivityRepo   activity.Repository
	MessageRepo    message.Repository
	UserRepo       user.Repository

	Projects    *project.Service
	Groups      *group.Service
	Enrollments *enrollment.Service
	Activities  *activity.Service
	Messages    *message.Service
	Users       *user.Service
}

func NewApp(t *testing.T) *App {
	t.Helper()

	conf := core.NewTestConfig()
	conf.Storage.Backend = "local"
	conf.Storage.LocalDir = t.TempDir()
	conf.Storage.BaseURL = "http://localhost/uploads"

	logger := logsvc.NewNopLogger()
	validate, translator := core.NewValidator()
	user.InitValidators(validate, translator)
	activity.InitValidators(validate, translator)
	message.InitValidators(validate, translator)

	app := &App{
		Conf:       conf,
		DB:         PrepareDB(t),
		Logger:     logger,
		Mail:       emailsvc.NewServiceMock(conf, logger),
		Files:      filestore.NewLocalStore(conf.Storage.LocalDir, conf.Storage.BaseURL),
		Validate:   validate,
		Translator: translator,
	}

	app.ProjectRepo = sqlxrepos.NewProjectRepository(app.DB)
	app.GroupRepo = sqlxrepos.NewGroupRepository(app.DB)
	app.EnrollmentRepo = sqlxrepos.NewEnrollmentRepository(app.DB)
	app.ActivityRepo = sqlxrepos.NewActivityRepository(app.DB)
	app.MessageRepo = sqlxrepos.NewMessageRepository(app.DB)
	app.UserRepo = sqlxrepos.NewUserRepository(app.DB)

	app.Projects = project.NewService(app.DB, app.ProjectRepo)
	app.Groups = group.NewService(app.GroupRepo)
	app.Enrollments = enrollment.NewService(app.DB, app.EnrollmentRepo, app.ProjectRepo, app.GroupRepo, app.Files, logger)
	app.Users = user.NewService(conf, app.DB, app.UserRepo, app.Enrollments, app.Projects, app.Groups, app.Mail)
	app.Messages = message.NewService(app.MessageRepo, app.UserRepo, app.Mail, logger)
	app.Activities = activity.NewService(app.ActivityRepo, app.Enrollments, app.ProjectRepo, app.Messages, logger)
	return app
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, phone, email, pwd string,
	isAdmin, isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		PhoneNumber: phone,
		Email:       email,
		Name:        name,
		IsAdmin:     isAdmin,
		IsActive:    isActive,
		CreatedAt:   tstamp,
		UpdatedAt:   tstamp,
	}
	if pwd == "" {
		pwd = DefaultPassword
	}
	if err := usr.SetPassword(pwd); err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// SampleProject returns a valid import document with steps of checklistSizes[i] checklist items each.
func SampleProject(slug string, checklistSizes ...int) project.ImportProject {
	ip := project.ImportProject{
		Slug:       slug,
		Title:      "Project " + slug,
		ShortDesc:  "A sample project",
		ClassRange: project.ClassRange{Min: 5, Max: 9},
		Level:      project.LevelBeginner,
		Guidance:   "SELF_GUIDED",
		Subjects:   []string{"science"},
		Tags:       []string{"sample"},
	}
	for i, size := range checklistSizes {
		step := project.ImportStep{
			Order: i + 1,
			Title: fmt.Sprintf("Step %d", i+1),
		}
		for j := 0; j < size; j++ {
			step.Checklist = append(step.Checklist, project.ImportChecklistItem{
				Order: j + 1,
				Text:  fmt.Sprintf("Item %d.%d", i+1, j+1),
			})
		}
		ip.Steps = append(ip.Steps, step)
	}
	return ip
}

func CreateProject(t *testing.T, svc *project.Service, ip project.ImportProject) project.Detail {
	t.Helper()

	detail, err := svc.Import(context.Background(), ip)
	if err != nil {
		t.Fatalf("CreateProject() failed: %v", err)
	}
	return detail
}

// CreateEnrollment inserts an enrollment of projectID; an empty userID leaves it unlinked.
func CreateEnrollment(
	t *testing.T,
	repo enrollment.Repository,
	projectID, email, userID string,
	createdAt ...time.Time,
) enrollment.Enrollment {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	enr, err := repo.CreateEnrollment(context.Background(), enrollment.Enrollment{
		ProjectID: projectID,
		Email:     email,
		Name:      "Learner",
		School:    "Test School",
		ClassNum:  7,
		UserID:    null.NewString(userID, userID != ""),
		CreatedAt: tstamp,
	})
	if err != nil {
		t.Fatalf("CreateEnrollment() failed: %v", err)
	}
	return enr
}
