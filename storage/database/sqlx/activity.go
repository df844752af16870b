package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/studylab/core"
	"github.com/trezcool/studylab/core/activity"
	"github.com/trezcool/studylab/core/enrollment"
)

type (
	activityRow struct {
		ID           string    `db:"id"`
		EnrollmentID string    `db:"enrollment_id"`
		Type         string    `db:"activity_type"`
		Metadata     string    `db:"metadata"`
		CreatedAt    time.Time `db:"created_at"`
	}

	recentActivityRow struct {
		activityRow
		Email        string `db:"email"`
		Name         string `db:"name"`
		ProjectSlug  string `db:"project_slug"`
		ProjectTitle string `db:"project_title"`
	}
)

func (r activityRow) toModel() (activity.Activity, error) {
	meta := make(map[string]interface{})
	if r.Metadata != "" {
		if err := json.Unmarshal([]byte(r.Metadata), &meta); err != nil {
			return activity.Activity{}, errors.Wrapf(err, "decoding metadata of activity %s", r.ID)
		}
	}
	return activity.Activity{
		ID:           r.ID,
		EnrollmentID: r.EnrollmentID,
		Type:         r.Type,
		Metadata:     meta,
		CreatedAt:    r.CreatedAt.UTC(),
	}, nil
}

type activityRepository struct {
	repository
}

var _ activity.Repository = (*activityRepository)(nil) // interface compliance check

func NewActivityRepository(exec core.DBExecutor) *activityRepository {
	return &activityRepository{repository{exec: exec}}
}

func (repo activityRepository) CreateActivity(ctx context.Context, act activity.Activity, exec ...core.DBExecutor) (activity.Activity, error) {
	ex := repo.getExec(exec)
	if act.Metadata == nil {
		act.Metadata = map[string]interface{}{}
	}
	meta, err := json.Marshal(act.Metadata)
	if err != nil {
		return activity.Activity{}, errors.Wrap(err, "encoding activity metadata")
	}

	act.ID = newID()
	act.CreatedAt = act.CreatedAt.UTC()
	_, err = ex.ExecContext(ctx, ex.Rebind(
		`INSERT INTO user_activities (id, enrollment_id, activity_type, metadata, created_at) VALUES (?, ?, ?, ?, ?)`),
		act.ID, act.EnrollmentID, act.Type, string(meta), act.CreatedAt)
	if err != nil {
		return activity.Activity{}, errors.Wrap(err, "inserting activity")
	}
	return act, nil
}

func (repo activityRepository) QueryActivities(ctx context.Context, filter activity.QueryFilter, exec ...core.DBExecutor) ([]activity.Activity, error) {
	ex := repo.getExec(exec)
	q := sq.Select("id", "enrollment_id", "activity_type", "metadata", "created_at").From("user_activities")
	if filter.EnrollmentID != "" {
		q = q.Where(sq.Eq{"enrollment_id": filter.EnrollmentID})
	}
	if filter.Type != "" {
		q = q.Where(sq.Eq{"activity_type": filter.Type})
	}
	if !filter.From.IsZero() {
		q = q.Where(sq.GtOrEq{"created_at": filter.From.UTC()})
	}
	if !filter.To.IsZero() {
		q = q.Where(sq.LtOrEq{"created_at": filter.To.UTC()})
	}
	q = q.OrderBy("created_at DESC", "id DESC").Limit(uint64(filter.Limit)).Offset(uint64(filter.Offset))

	query, args, err := toSQL(ex, q)
	if err != nil {
		return nil, err
	}
	var rows []activityRow
	if err = sqlx.SelectContext(ctx, ex, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying activities")
	}
	return activitiesFromRows(rows)
}

func (repo activityRepository) QueryEnrollmentActivities(ctx context.Context, enrollmentID string, exec ...core.DBExecutor) ([]activity.Activity, error) {
	ex := repo.getExec(exec)
	var rows []activityRow
	err := sqlx.SelectContext(ctx, ex, &rows, ex.Rebind(
		`SELECT id, enrollment_id, activity_type, metadata, created_at FROM user_activities
		WHERE enrollment_id = ? ORDER BY created_at, id`), enrollmentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollment activities")
	}
	return activitiesFromRows(rows)
}

func (repo activityRepository) QueryRecentActivities(ctx context.Context, limit int, exec ...core.DBExecutor) ([]activity.RecentActivity, error) {
	ex := repo.getExec(exec)
	var rows []recentActivityRow
	err := sqlx.SelectContext(ctx, ex, &rows, ex.Rebind(
		`SELECT a.id, a.enrollment_id, a.activity_type, a.metadata, a.created_at,
			e.email, e.name, p.slug AS project_slug, p.title AS project_title
		FROM user_activities a
		JOIN enrollments e ON e.id = a.enrollment_id
		JOIN projects p ON p.id = e.project_id
		ORDER BY a.created_at DESC, a.id DESC
		LIMIT ?`), limit)
	if err != nil {
		return nil, errors.Wrap(err, "querying recent activities")
	}

	acts := make([]activity.RecentActivity, 0, len(rows))
	for _, r := range rows {
		act, err := r.toModel()
		if err != nil {
			return nil, err
		}
		acts = append(acts, activity.RecentActivity{
			Activity:     act,
			Email:        r.Email,
			Name:         r.Name,
			ProjectSlug:  r.ProjectSlug,
			ProjectTitle: r.ProjectTitle,
		})
	}
	return acts, nil
}

func (repo activityRepository) SetLastActivityAt(ctx context.Context, enrollmentID string, at time.Time, exec ...core.DBExecutor) error {
	return repo.setEnrollmentField(ctx, repo.getExec(exec), "last_activity_at", at.UTC(), enrollmentID)
}

func (repo activityRepository) SetTimeSpent(ctx context.Context, enrollmentID string, minutes int, exec ...core.DBExecutor) error {
	return repo.setEnrollmentField(ctx, repo.getExec(exec), "time_spent_minutes", minutes, enrollmentID)
}

func (repo activityRepository) setEnrollmentField(ctx context.Context, ex core.DBExecutor, column string, value interface{}, id string) error {
	res, err := ex.ExecContext(ctx, ex.Rebind(`UPDATE enrollments SET `+column+` = ? WHERE id = ?`), value, id)
	if err != nil {
		return errors.Wrapf(err, "updating enrollment %s", column)
	}
	n, err := affectedRows(res, "updating enrollment")
	if err != nil {
		return err
	}
	if n == 0 {
		return enrollment.ErrNotFound
	}
	return nil
}

func activitiesFromRows(rows []activityRow) ([]activity.Activity, error) {
	acts := make([]activity.Activity, 0, len(rows))
	for _, r := range rows {
		act, err := r.toModel()
		if err != nil {
			return nil, err
		}
		acts = append(acts, act)
	}
	return acts, nil
}
