package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/studylab/core"
	"github.com/trezcool/studylab/core/enrollment"
	"github.com/trezcool/studylab/core/project"
)

var errInvalidType = core.NewValidationError(nil, core.FieldError{Field: "activityType", Error: activityTypeText})

const (
	completionTitle   = "Congratulations on Completing Your Project!"
	completionContent = "You've successfully completed \"%s\". Well done! Keep up the great work."
)

type (
	Repository interface {
		CreateActivity(ctx context.Context, act Activity, exec ...core.DBExecutor) (Activity, error)
		// QueryActivities applies AND operation on available QueryFilter fields, newest first.
		QueryActivities(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Activity, error)
		// QueryEnrollmentActivities returns the enrollment's activities, oldest first.
		QueryEnrollmentActivities(ctx context.Context, enrollmentID string, exec ...core.DBExecutor) ([]Activity, error)
		QueryRecentActivities(ctx context.Context, limit int, exec ...core.DBExecutor) ([]RecentActivity, error)
		SetLastActivityAt(ctx context.Context, enrollmentID string, at time.Time, exec ...core.DBExecutor) error
		SetTimeSpent(ctx context.Context, enrollmentID string, minutes int, exec ...core.DBExecutor) error
	}

	// SystemMessenger delivers system messages to users.
	SystemMessenger interface {
		SendSystem(ctx context.Context, recipientID, title, content string) error
	}

	Service struct {
		repo        Repository
		enrollments *enrollment.Service
		projects    project.Repository
		messenger   SystemMessenger
		logger      core.Logger
	}
)

func NewService(
	repo Repository,
	enrollments *enrollment.Service,
	projects project.Repository,
	messenger SystemMessenger,
	logger core.Logger,
) *Service {
	return &Service{
		repo:        repo,
		enrollments: enrollments,
		projects:    projects,
		messenger:   messenger,
		logger:      logger,
	}
}

// Log appends an activity to the enrollment's log, then bumps its last activity time.
func (svc *Service) Log(ctx context.Context, enrollmentID, typ string, metadata map[string]interface{}) (Activity, error) {
	if !IsValidType(typ) {
		return Activity{}, errInvalidType
	}
	if _, err := svc.enrollments.Get(ctx, enrollmentID); err != nil {
		return Activity{}, err
	}
	if metadata == nil {
		metadata = map[string]interface{}{}
	}

	now := time.Now().UTC()
	act, err := svc.repo.CreateActivity(ctx, Activity{
		EnrollmentID: enrollmentID,
		Type:         typ,
		Metadata:     metadata,
		CreatedAt:    now,
	})
	if err != nil {
		return Activity{}, errors.Wrap(err, "creating activity")
	}
	if err = svc.repo.SetLastActivityAt(ctx, enrollmentID, now); err != nil {
		return act, errors.Wrap(err, "updating last activity")
	}
	return act, nil
}

// Track logs an activity, reporting failures instead of returning them.
func (svc *Service) Track(ctx context.Context, enrollmentID, typ string, metadata map[string]interface{}) {
	if _, err := svc.Log(ctx, enrollmentID, typ, metadata); err != nil {
		core.ReportBestEffortFailure(svc.logger, "log_activity", err, map[string]interface{}{
			"enrollmentId": enrollmentID,
			"activityType": typ,
		})
	}
}

// ComputeSessionMinutes recomputes the enrollment's time spent from its sessions.
// The stored value is only written when the total is positive.
// It fails with NotFound when the enrollment does not exist.
func (svc *Service) ComputeSessionMinutes(ctx context.Context, enrollmentID string) (int, error) {
	if _, err := svc.enrollments.Get(ctx, enrollmentID); err != nil {
		return 0, err
	}
	acts, err := svc.repo.QueryEnrollmentActivities(ctx, enrollmentID)
	if err != nil {
		return 0, errors.Wrap(err, "querying enrollment activities")
	}
	minutes := roundMinutes(SessionMinutes(acts))
	if minutes > 0 {
		if err = svc.repo.SetTimeSpent(ctx, enrollmentID, minutes); err != nil {
			return 0, errors.Wrap(err, "setting time spent")
		}
	}
	return minutes, nil
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Activity, error) {
	filter.Clean()
	acts, err := svc.repo.QueryActivities(ctx, filter)
	if err != nil {
		return nil, err
	}
	if acts == nil {
		acts = []Activity{}
	}
	return acts, nil
}

func (svc *Service) Recent(ctx context.Context, limit int) ([]RecentActivity, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	} else if limit > maxRecentLimit {
		limit = maxRecentLimit
	}
	acts, err := svc.repo.QueryRecentActivities(ctx, limit)
	if err != nil {
		return nil, err
	}
	if acts == nil {
		acts = []RecentActivity{}
	}
	return acts, nil
}

// Summary aggregates the enrollment's activities and refreshes its time spent.
func (svc *Service) Summary(ctx context.Context, enrollmentID string) (Summary, error) {
	enr, err := svc.enrollments.Get(ctx, enrollmentID)
	if err != nil {
		return Summary{}, err
	}
	acts, err := svc.repo.QueryEnrollmentActivities(ctx, enr.ID)
	if err != nil {
		return Summary{}, errors.Wrap(err, "querying enrollment activities")
	}

	sum := Summary{
		ActivityCounts:   make(map[string]int),
		TotalActivities:  len(acts),
		TimeSpentMinutes: enr.TimeSpentMinutes,
	}
	for _, a := range acts {
		sum.ActivityCounts[a.Type]++
	}
	if len(acts) > 0 {
		sum.FirstActivity = null.TimeFrom(acts[0].CreatedAt)
		sum.LastActivity = null.TimeFrom(acts[len(acts)-1].CreatedAt)
	}

	if minutes := roundMinutes(SessionMinutes(acts)); minutes > 0 {
		if err = svc.repo.SetTimeSpent(ctx, enr.ID, minutes); err != nil {
			return Summary{}, errors.Wrap(err, "setting time spent")
		}
		sum.TimeSpentMinutes = minutes
	}
	return sum, nil
}

// RecalculateAll recomputes the time spent of every enrollment.
// Failing enrollments are logged and skipped.
func (svc *Service) RecalculateAll(ctx context.Context) (updated int, err error) {
	ids, err := svc.enrollments.ListIDs(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "listing enrollments")
	}
	for _, id := range ids {
		if err = ctx.Err(); err != nil {
			return updated, err
		}
		minutes, err := svc.ComputeSessionMinutes(ctx, id)
		if err != nil {
			svc.logger.Error("recomputing time spent", err, map[string]interface{}{"enrollmentId": id})
			continue
		}
		if minutes > 0 {
			updated++
		}
	}
	return updated, nil
}

// MarkProjectCompleted completes the enrollment and congratulates its user.
func (svc *Service) MarkProjectCompleted(ctx context.Context, enrollmentID string) error {
	enr, err := svc.enrollments.Get(ctx, enrollmentID)
	if err != nil {
		return err
	}
	proj, err := svc.projects.GetProject(ctx, project.GetFilter{ID: enr.ProjectID})
	if err != nil {
		return errors.Wrap(err, "getting project")
	}
	if err = svc.enrollments.MarkCompleted(ctx, enr.ID, time.Now()); err != nil {
		return errors.Wrap(err, "marking enrollment completed")
	}

	svc.Track(ctx, enr.ID, TypeStepCompleted, map[string]interface{}{"completed": true})

	if enr.UserID.Valid && svc.messenger != nil {
		err = svc.messenger.SendSystem(ctx, enr.UserID.String, completionTitle, fmt.Sprintf(completionContent, proj.Title))
		if err != nil {
			core.ReportBestEffortFailure(svc.logger, "completion_message", err, map[string]interface{}{"enrollmentId": enr.ID})
		}
	}
	return nil
}
