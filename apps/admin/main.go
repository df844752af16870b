package main

import (
	"context"
	"os"

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

var logger core.Logger

func main() {
	conf := core.NewConfig()

	rbLogger, err := logsvc.NewRollbarLogger(conf)
	if err != nil {
		panic(err)
	}
	defer rbLogger.Sync()
	logger = rbLogger

	// set up DB
	errAndDie(database.CreateIfNotExist(context.Background(), conf))
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()

	validate, translator := core.NewValidator()
	user.InitValidators(validate, translator)

	files, err := filestore.New(conf)
	errAndDie(err)
	mailSvc := emailsvc.NewService(conf, logger)

	// set up services
	projectRepo := sqlxrepos.NewProjectRepository(db)
	groupRepo := sqlxrepos.NewGroupRepository(db)
	projectSvc := project.NewService(db, projectRepo)
	groupSvc := group.NewService(groupRepo)
	enrollSvc := enrollment.NewService(db, sqlxrepos.NewEnrollmentRepository(db), projectRepo, groupRepo, files, logger)
	usrSvc := user.NewService(conf, db, sqlxrepos.NewUserRepository(db), enrollSvc, projectSvc, groupSvc, mailSvc)
	msgSvc := message.NewService(sqlxrepos.NewMessageRepository(db), sqlxrepos.NewUserRepository(db), mailSvc, logger)
	activitySvc := activity.NewService(sqlxrepos.NewActivityRepository(db), enrollSvc, projectRepo, msgSvc, logger)

	// start CLI
	cli := commandLine{
		db:          db,
		engine:      conf.Database.Engine,
		validate:    validate,
		out:         os.Stdout,
		usrSvc:      usrSvc,
		projectSvc:  projectSvc,
		enrollSvc:   enrollSvc,
		activitySvc: activitySvc,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error("admin command failed", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error())
	}
}
