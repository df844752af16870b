package enrollment

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/studylab/core"
	"github.com/trezcool/studylab/core/group"
	"github.com/trezcool/studylab/core/project"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError("enrollment not found")
)

type (
	Repository interface {
		CreateEnrollment(ctx context.Context, enr Enrollment, exec ...core.DBExecutor) (Enrollment, error)
		GetEnrollment(ctx context.Context, id string, exec ...core.DBExecutor) (Enrollment, error)
		// QueryEnrollmentsByUser returns the user's enrollments, most recent first.
		QueryEnrollmentsByUser(ctx context.Context, userID string, exec ...core.DBExecutor) ([]Enrollment, error)
		QueryEnrollmentIDs(ctx context.Context, exec ...core.DBExecutor) ([]string, error)
		// QueryUsersWithDuplicates returns the IDs of users owning more than one enrollment.
		QueryUsersWithDuplicates(ctx context.Context, exec ...core.DBExecutor) ([]string, error)
		LinkEnrollmentsByEmail(ctx context.Context, email, userID string, exec ...core.DBExecutor) (int, error)
		SetGroup(ctx context.Context, id, groupID string, exec ...core.DBExecutor) error
		SetCompletedAt(ctx context.Context, id string, at time.Time, exec ...core.DBExecutor) error

		// UpsertProgress inserts or updates the row keyed by (EnrollmentID, StepID, ChecklistID).
		UpsertProgress(ctx context.Context, prog Progress, exec ...core.DBExecutor) error
		QueryProgress(ctx context.Context, enrollmentID string, exec ...core.DBExecutor) ([]Progress, error)
		// CountCompletedSteps counts distinct steps with a completed step-level row.
		CountCompletedSteps(ctx context.Context, enrollmentID string, exec ...core.DBExecutor) (int, error)

		CreateSubmission(ctx context.Context, sub Submission, exec ...core.DBExecutor) (Submission, error)
		// QuerySubmissions returns the enrollment's submissions, newest first.
		QuerySubmissions(ctx context.Context, enrollmentID string, exec ...core.DBExecutor) ([]Submission, error)

		DeleteProgress(ctx context.Context, enrollmentID string, exec ...core.DBExecutor) error
		DeleteSubmissions(ctx context.Context, enrollmentID string, exec ...core.DBExecutor) error
		DeleteActivities(ctx context.Context, enrollmentID string, exec ...core.DBExecutor) error
		DeleteEnrollment(ctx context.Context, id string, exec ...core.DBExecutor) error
		CountGroupEnrollments(ctx context.Context, groupID string, exec ...core.DBExecutor) (int, error)
	}

	Service struct {
		db       core.DB
		repo     Repository
		projects project.Repository
		groups   group.Repository
		files    core.FileStore
		logger   core.Logger
	}
)

func NewService(
	db core.DB,
	repo Repository,
	projects project.Repository,
	groups group.Repository,
	files core.FileStore,
	logger core.Logger,
) *Service {
	return &Service{
		db:       db,
		repo:     repo,
		projects: projects,
		groups:   groups,
		files:    files,
		logger:   logger,
	}
}

func (svc *Service) Create(ctx context.Context, ne NewEnrollment) (Enrollment, error) {
	proj, err := svc.projects.GetProject(ctx, project.GetFilter{Slug: ne.ProjectSlug})
	if err != nil {
		return Enrollment{}, err
	}
	return svc.repo.CreateEnrollment(ctx, Enrollment{
		ProjectID: proj.ID,
		Email:     ne.Email,
		Name:      ne.Name,
		School:    ne.School,
		ClassNum:  ne.ClassNum,
		CreatedAt: time.Now().UTC(),
	})
}

func (svc *Service) Get(ctx context.Context, id string) (Enrollment, error) {
	return svc.repo.GetEnrollment(ctx, id)
}

func (svc *Service) ListByUser(ctx context.Context, userID string) ([]Enrollment, error) {
	enrs, err := svc.repo.QueryEnrollmentsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if enrs == nil {
		enrs = []Enrollment{}
	}
	return enrs, nil
}

// ListIDs returns the IDs of every enrollment.
func (svc *Service) ListIDs(ctx context.Context) ([]string, error) {
	return svc.repo.QueryEnrollmentIDs(ctx)
}

// LinkEmailToUser assigns every enrollment made with email to userID.
func (svc *Service) LinkEmailToUser(ctx context.Context, email, userID string, exec ...core.DBExecutor) (int, error) {
	return svc.repo.LinkEnrollmentsByEmail(ctx, core.CleanString(email, true /* lower */), userID, exec...)
}

func (svc *Service) AttachGroup(ctx context.Context, id, groupID string, exec ...core.DBExecutor) error {
	return svc.repo.SetGroup(ctx, id, groupID, exec...)
}

func (svc *Service) MarkCompleted(ctx context.Context, id string, at time.Time) error {
	return svc.repo.SetCompletedAt(ctx, id, at.UTC())
}

// GetDetail returns the enrollment with its project curriculum and per-step progress.
func (svc *Service) GetDetail(ctx context.Context, id string) (Detail, error) {
	enr, err := svc.repo.GetEnrollment(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	proj, err := svc.projects.GetProject(ctx, project.GetFilter{ID: enr.ProjectID})
	if err != nil {
		return Detail{}, errors.Wrap(err, "getting project")
	}
	steps, err := svc.projects.GetSteps(ctx, proj.ID)
	if err != nil {
		return Detail{}, errors.Wrap(err, "getting steps")
	}
	progress, err := svc.repo.QueryProgress(ctx, enr.ID)
	if err != nil {
		return Detail{}, errors.Wrap(err, "querying progress")
	}

	doneSteps := completedSteps(progress)
	doneItems := completedChecklists(progress)

	detail := Detail{
		Enrollment: enr,
		Project: ProjectSummary{
			Slug:     proj.Slug,
			Title:    proj.Title,
			Level:    proj.Level,
			Guidance: proj.Guidance,
		},
		Steps: make([]StepProgress, 0, len(steps)),
	}
	var completed int
	for _, s := range steps {
		sp := StepProgress{
			ID:          s.ID,
			Order:       s.Order,
			Title:       s.Title,
			Description: s.Description,
			Completed:   doneSteps[s.ID],
			Checklist:   make([]ChecklistProgress, 0, len(s.Checklist)),
			Resources:   s.Resources,
		}
		for _, item := range s.Checklist {
			sp.Checklist = append(sp.Checklist, ChecklistProgress{ChecklistItem: item, Completed: doneItems[item.ID]})
		}
		if sp.Resources == nil {
			sp.Resources = []project.Resource{}
		}
		if sp.Completed {
			completed++
		}
		detail.Steps = append(detail.Steps, sp)
	}
	detail.CompletionPercentage = Percentage(completed, len(steps))
	return detail, nil
}

// SetStepCompletion records the step-level completion of stepID.
// It does not update the enrollment's last activity.
func (svc *Service) SetStepCompletion(ctx context.Context, id, stepID string, completed bool) error {
	enr, err := svc.repo.GetEnrollment(ctx, id)
	if err != nil {
		return err
	}
	step, err := svc.projects.GetStep(ctx, stepID)
	if err != nil {
		return err
	}
	if step.ProjectID != enr.ProjectID {
		return project.ErrStepNotFound
	}

	err = svc.repo.UpsertProgress(ctx, Progress{
		EnrollmentID: enr.ID,
		StepID:       step.ID,
		Completed:    completed,
		UpdatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return errors.Wrap(err, "upserting step progress")
	}
	progressUpdates.WithLabelValues("step").Inc()
	return nil
}

// SetChecklistCompletion records the completion of a checklist item, keyed under its owning step.
func (svc *Service) SetChecklistCompletion(ctx context.Context, id, itemID string, completed bool) error {
	enr, err := svc.repo.GetEnrollment(ctx, id)
	if err != nil {
		return err
	}
	item, err := svc.projects.GetChecklistItem(ctx, itemID)
	if err != nil {
		return err
	}
	step, err := svc.projects.GetStep(ctx, item.StepID)
	if err != nil {
		return errors.Wrap(err, "getting checklist item step")
	}
	if step.ProjectID != enr.ProjectID {
		return project.ErrChecklistItemNotFound
	}

	err = svc.repo.UpsertProgress(ctx, Progress{
		EnrollmentID: enr.ID,
		StepID:       step.ID,
		ChecklistID:  null.StringFrom(item.ID),
		Completed:    completed,
		UpdatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return errors.Wrap(err, "upserting checklist progress")
	}
	progressUpdates.WithLabelValues("checklist").Inc()
	return nil
}

// CompletionPercentage returns the share of the project steps completed at step level.
func (svc *Service) CompletionPercentage(ctx context.Context, id string) (int, error) {
	enr, err := svc.repo.GetEnrollment(ctx, id)
	if err != nil {
		return 0, err
	}
	total, err := svc.projects.CountSteps(ctx, enr.ProjectID)
	if err != nil {
		return 0, errors.Wrap(err, "counting steps")
	}
	completed, err := svc.repo.CountCompletedSteps(ctx, enr.ID)
	if err != nil {
		return 0, errors.Wrap(err, "counting completed steps")
	}
	return Percentage(completed, total), nil
}

// Progress summarizes the step & checklist completion of enr.
func (svc *Service) Progress(ctx context.Context, enr Enrollment) (ProgressSummary, error) {
	steps, err := svc.projects.GetSteps(ctx, enr.ProjectID)
	if err != nil {
		return ProgressSummary{}, errors.Wrap(err, "getting steps")
	}
	progress, err := svc.repo.QueryProgress(ctx, enr.ID)
	if err != nil {
		return ProgressSummary{}, errors.Wrap(err, "querying progress")
	}

	doneSteps := completedSteps(progress)
	doneItems := completedChecklists(progress)

	var sum ProgressSummary
	sum.TotalSteps = len(steps)
	for _, s := range steps {
		if doneSteps[s.ID] {
			sum.CompletedSteps++
		}
		sum.TotalChecklists += len(s.Checklist)
		for _, item := range s.Checklist {
			if doneItems[item.ID] {
				sum.CompletedChecklists++
			}
		}
	}
	sum.CompletionPercentage = Percentage(sum.CompletedSteps, sum.TotalSteps)
	return sum, nil
}

// Delete removes the enrollment and every record that only exists to support it.
// It performs no ownership check: callers are system processes or admins.
func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.cascadeDelete(ctx, id, reasonAdmin)
}

// Leave deletes an enrollment on behalf of requesterID, who must own it.
func (svc *Service) Leave(ctx context.Context, id, requesterID string) error {
	enr, err := svc.repo.GetEnrollment(ctx, id)
	if err != nil {
		return err
	}

	owned := enr.UserID.Valid && enr.UserID.String == requesterID
	if !owned {
		enrs, err := svc.repo.QueryEnrollmentsByUser(ctx, requesterID)
		if err != nil {
			return errors.Wrap(err, "querying requester enrollments")
		}
		for _, e := range enrs {
			if e.ID == id {
				owned = true
				break
			}
		}
	}
	if !owned {
		return core.ErrAccessDenied
	}
	return svc.cascadeDelete(ctx, id, reasonLeave)
}

// cascadeDelete deletes, in one transaction and in this order: progress, submissions,
// activities (best-effort), the enrollment, then its group if no enrollment references it anymore (best-effort).
// Every step is idempotent.
func (svc *Service) cascadeDelete(ctx context.Context, id, reason string) error {
	var groupID null.String

	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		enr, err := svc.repo.GetEnrollment(ctx, id, tx)
		if err != nil {
			return err
		}
		groupID = enr.GroupID

		if err = svc.repo.DeleteProgress(ctx, id, tx); err != nil {
			return errors.Wrap(err, "deleting progress")
		}
		if err = svc.repo.DeleteSubmissions(ctx, id, tx); err != nil {
			return errors.Wrap(err, "deleting submissions")
		}
		err = core.Savepoint(ctx, tx, "delete_activities", func() error {
			return svc.repo.DeleteActivities(ctx, id, tx)
		})
		if err != nil {
			core.ReportBestEffortFailure(svc.logger, "delete_activities", err, map[string]interface{}{"enrollmentId": id})
		}
		if err = svc.repo.DeleteEnrollment(ctx, id, tx); err != nil {
			return errors.Wrap(err, "deleting enrollment")
		}

		if groupID.Valid {
			err = core.Savepoint(ctx, tx, "delete_orphan_group", func() error {
				n, err := svc.repo.CountGroupEnrollments(ctx, groupID.String, tx)
				if err != nil {
					return errors.Wrap(err, "counting group enrollments")
				}
				if n > 0 {
					return nil
				}
				return svc.groups.DeleteGroup(ctx, groupID.String, tx)
			})
			if err != nil {
				core.ReportBestEffortFailure(svc.logger, "delete_orphan_group", err, map[string]interface{}{"groupId": groupID.String})
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	deletions.WithLabelValues(reason).Inc()
	return nil
}

// ReconcileDuplicates keeps the most recent enrollment of userID and cascade-deletes the others.
// It returns the number of deleted enrollments; a second run is a no-op.
func (svc *Service) ReconcileDuplicates(ctx context.Context, userID string) (int, error) {
	enrs, err := svc.repo.QueryEnrollmentsByUser(ctx, userID)
	if err != nil {
		return 0, errors.Wrap(err, "querying user enrollments")
	}
	if len(enrs) <= 1 {
		return 0, nil
	}

	var removed int
	for _, enr := range enrs[1:] {
		if err = svc.cascadeDelete(ctx, enr.ID, reasonReconcile); err != nil {
			if core.IsNotFound(err) { // removed concurrently
				continue
			}
			return removed, errors.Wrapf(err, "deleting duplicate enrollment %s", enr.ID)
		}
		removed++
	}
	if removed > 0 && svc.logger != nil {
		svc.logger.Info("reconciled duplicate enrollments", map[string]interface{}{
			"userId":  userID,
			"kept":    enrs[0].ID,
			"removed": removed,
		})
	}
	return removed, nil
}

// FindDuplicates lists, per user owning several enrollments, what reconciliation would keep and remove.
func (svc *Service) FindDuplicates(ctx context.Context) ([]Duplicates, error) {
	userIDs, err := svc.repo.QueryUsersWithDuplicates(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying users with duplicates")
	}

	dups := make([]Duplicates, 0, len(userIDs))
	for _, uid := range userIDs {
		enrs, err := svc.repo.QueryEnrollmentsByUser(ctx, uid)
		if err != nil {
			return nil, errors.Wrap(err, "querying user enrollments")
		}
		if len(enrs) <= 1 {
			continue
		}
		dups = append(dups, Duplicates{UserID: uid, Keep: enrs[0], Remove: enrs[1:]})
	}
	return dups, nil
}

// ReconcileAll reconciles every user owning more than one enrollment.
func (svc *Service) ReconcileAll(ctx context.Context) (users, removed int, err error) {
	dups, err := svc.FindDuplicates(ctx)
	if err != nil {
		return 0, 0, err
	}
	for _, d := range dups {
		n, err := svc.ReconcileDuplicates(ctx, d.UserID)
		removed += n
		if err != nil {
			return users, removed, err
		}
		users++
	}
	return users, removed, nil
}
