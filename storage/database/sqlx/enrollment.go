package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/studylab/core"
	"github.com/trezcool/studylab/core/enrollment"
)

const enrollmentColumns = "id, project_id, email, name, school, class_num, user_id, group_id, " +
	"created_at, last_activity_at, completed_at, time_spent_minutes"

type (
	enrollmentRow struct {
		ID               string      `db:"id"`
		ProjectID        string      `db:"project_id"`
		Email            string      `db:"email"`
		Name             string      `db:"name"`
		School           string      `db:"school"`
		ClassNum         int         `db:"class_num"`
		UserID           null.String `db:"user_id"`
		GroupID          null.String `db:"group_id"`
		CreatedAt        time.Time   `db:"created_at"`
		LastActivityAt   null.Time   `db:"last_activity_at"`
		CompletedAt      null.Time   `db:"completed_at"`
		TimeSpentMinutes int         `db:"time_spent_minutes"`
	}

	progressRow struct {
		ID           string      `db:"id"`
		EnrollmentID string      `db:"enrollment_id"`
		StepID       string      `db:"step_id"`
		ChecklistID  null.String `db:"checklist_id"`
		Completed    bool        `db:"completed"`
		UpdatedAt    time.Time   `db:"updated_at"`
	}

	submissionRow struct {
		ID           string    `db:"id"`
		EnrollmentID string    `db:"enrollment_id"`
		URLOrText    string    `db:"url_or_text"`
		CreatedAt    time.Time `db:"created_at"`
	}
)

func (r enrollmentRow) toModel() enrollment.Enrollment {
	enr := enrollment.Enrollment{
		ID:               r.ID,
		ProjectID:        r.ProjectID,
		Email:            r.Email,
		Name:             r.Name,
		School:           r.School,
		ClassNum:         r.ClassNum,
		UserID:           r.UserID,
		GroupID:          r.GroupID,
		CreatedAt:        r.CreatedAt.UTC(),
		LastActivityAt:   r.LastActivityAt,
		CompletedAt:      r.CompletedAt,
		TimeSpentMinutes: r.TimeSpentMinutes,
	}
	if enr.LastActivityAt.Valid {
		enr.LastActivityAt.Time = enr.LastActivityAt.Time.UTC()
	}
	if enr.CompletedAt.Valid {
		enr.CompletedAt.Time = enr.CompletedAt.Time.UTC()
	}
	return enr
}

type enrollmentRepository struct {
	repository
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(exec core.DBExecutor) *enrollmentRepository {
	return &enrollmentRepository{repository{exec: exec}}
}

func (repo enrollmentRepository) CreateEnrollment(ctx context.Context, enr enrollment.Enrollment, exec ...core.DBExecutor) (enrollment.Enrollment, error) {
	ex := repo.getExec(exec)
	enr.ID = newID()
	_, err := ex.ExecContext(ctx, ex.Rebind(`INSERT INTO enrollments (`+enrollmentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		enr.ID, enr.ProjectID, enr.Email, enr.Name, enr.School, enr.ClassNum, enr.UserID, enr.GroupID,
		enr.CreatedAt.UTC(), enr.LastActivityAt, enr.CompletedAt, enr.TimeSpentMinutes)
	if err != nil {
		return enrollment.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	return repo.GetEnrollment(ctx, enr.ID, ex)
}

func (repo enrollmentRepository) GetEnrollment(ctx context.Context, id string, exec ...core.DBExecutor) (enrollment.Enrollment, error) {
	ex := repo.getExec(exec)
	var row enrollmentRow
	err := sqlx.GetContext(ctx, ex, &row, ex.Rebind(`SELECT `+enrollmentColumns+` FROM enrollments WHERE id = ?`), id)
	if err != nil {
		return enrollment.Enrollment{}, trapNoRowsErr(err, enrollment.ErrNotFound, "getting enrollment")
	}
	return row.toModel(), nil
}

func (repo enrollmentRepository) QueryEnrollmentsByUser(ctx context.Context, userID string, exec ...core.DBExecutor) ([]enrollment.Enrollment, error) {
	ex := repo.getExec(exec)
	var rows []enrollmentRow
	err := sqlx.SelectContext(ctx, ex, &rows, ex.Rebind(
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE user_id = ? ORDER BY created_at DESC, id DESC`), userID)
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	enrs := make([]enrollment.Enrollment, 0, len(rows))
	for _, r := range rows {
		enrs = append(enrs, r.toModel())
	}
	return enrs, nil
}

func (repo enrollmentRepository) QueryEnrollmentIDs(ctx context.Context, exec ...core.DBExecutor) ([]string, error) {
	ex := repo.getExec(exec)
	var ids []string
	err := sqlx.SelectContext(ctx, ex, &ids, `SELECT id FROM enrollments ORDER BY created_at`)
	return ids, errors.Wrap(err, "querying enrollment ids")
}

func (repo enrollmentRepository) QueryUsersWithDuplicates(ctx context.Context, exec ...core.DBExecutor) ([]string, error) {
	ex := repo.getExec(exec)
	var ids []string
	err := sqlx.SelectContext(ctx, ex, &ids,
		`SELECT user_id FROM enrollments WHERE user_id IS NOT NULL GROUP BY user_id HAVING COUNT(*) > 1 ORDER BY user_id`)
	return ids, errors.Wrap(err, "querying users with duplicate enrollments")
}

func (repo enrollmentRepository) LinkEnrollmentsByEmail(ctx context.Context, email, userID string, exec ...core.DBExecutor) (int, error) {
	ex := repo.getExec(exec)
	res, err := ex.ExecContext(ctx, ex.Rebind(`UPDATE enrollments SET user_id = ? WHERE LOWER(email) = ?`), userID, email)
	if err != nil {
		return 0, errors.Wrap(err, "linking enrollments")
	}
	return affectedRows(res, "linking enrollments")
}

func (repo enrollmentRepository) SetGroup(ctx context.Context, id, groupID string, exec ...core.DBExecutor) error {
	return repo.update(ctx, repo.getExec(exec), `UPDATE enrollments SET group_id = ? WHERE id = ?`, groupID, id)
}

func (repo enrollmentRepository) SetCompletedAt(ctx context.Context, id string, at time.Time, exec ...core.DBExecutor) error {
	return repo.update(ctx, repo.getExec(exec), `UPDATE enrollments SET completed_at = ? WHERE id = ?`, at.UTC(), id)
}

// update runs a single-enrollment UPDATE whose last arg is the enrollment ID.
func (repo enrollmentRepository) update(ctx context.Context, ex core.DBExecutor, query string, args ...interface{}) error {
	res, err := ex.ExecContext(ctx, ex.Rebind(query), args...)
	if err != nil {
		return errors.Wrap(err, "updating enrollment")
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

func (repo enrollmentRepository) UpsertProgress(ctx context.Context, prog enrollment.Progress, exec ...core.DBExecutor) error {
	ex := repo.getExec(exec)

	var query string
	if prog.IsStepLevel() {
		query = `INSERT INTO enrollment_progress (id, enrollment_id, step_id, checklist_id, completed, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (enrollment_id, step_id) WHERE checklist_id IS NULL
		DO UPDATE SET completed = excluded.completed, updated_at = excluded.updated_at`
	} else {
		query = `INSERT INTO enrollment_progress (id, enrollment_id, step_id, checklist_id, completed, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (enrollment_id, step_id, checklist_id) WHERE checklist_id IS NOT NULL
		DO UPDATE SET completed = excluded.completed, updated_at = excluded.updated_at`
	}
	_, err := ex.ExecContext(ctx, ex.Rebind(query),
		newID(), prog.EnrollmentID, prog.StepID, prog.ChecklistID, prog.Completed, prog.UpdatedAt.UTC())
	return errors.Wrap(err, "upserting progress")
}

func (repo enrollmentRepository) QueryProgress(ctx context.Context, enrollmentID string, exec ...core.DBExecutor) ([]enrollment.Progress, error) {
	ex := repo.getExec(exec)
	var rows []progressRow
	err := sqlx.SelectContext(ctx, ex, &rows, ex.Rebind(
		`SELECT id, enrollment_id, step_id, checklist_id, completed, updated_at
		FROM enrollment_progress WHERE enrollment_id = ?`), enrollmentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying progress")
	}
	progress := make([]enrollment.Progress, 0, len(rows))
	for _, r := range rows {
		progress = append(progress, enrollment.Progress{
			ID:           r.ID,
			EnrollmentID: r.EnrollmentID,
			StepID:       r.StepID,
			ChecklistID:  r.ChecklistID,
			Completed:    r.Completed,
			UpdatedAt:    r.UpdatedAt.UTC(),
		})
	}
	return progress, nil
}

func (repo enrollmentRepository) CountCompletedSteps(ctx context.Context, enrollmentID string, exec ...core.DBExecutor) (int, error) {
	ex := repo.getExec(exec)
	var n int
	err := sqlx.GetContext(ctx, ex, &n, ex.Rebind(
		`SELECT COUNT(DISTINCT step_id) FROM enrollment_progress
		WHERE enrollment_id = ? AND checklist_id IS NULL AND completed = ?`), enrollmentID, true)
	return n, errors.Wrap(err, "counting completed steps")
}

func (repo enrollmentRepository) CreateSubmission(ctx context.Context, sub enrollment.Submission, exec ...core.DBExecutor) (enrollment.Submission, error) {
	ex := repo.getExec(exec)
	sub.ID = newID()
	sub.CreatedAt = sub.CreatedAt.UTC()
	_, err := ex.ExecContext(ctx, ex.Rebind(
		`INSERT INTO submissions (id, enrollment_id, url_or_text, created_at) VALUES (?, ?, ?, ?)`),
		sub.ID, sub.EnrollmentID, sub.URLOrText, sub.CreatedAt)
	if err != nil {
		return enrollment.Submission{}, errors.Wrap(err, "inserting submission")
	}
	return sub, nil
}

func (repo enrollmentRepository) QuerySubmissions(ctx context.Context, enrollmentID string, exec ...core.DBExecutor) ([]enrollment.Submission, error) {
	ex := repo.getExec(exec)
	var rows []submissionRow
	err := sqlx.SelectContext(ctx, ex, &rows, ex.Rebind(
		`SELECT id, enrollment_id, url_or_text, created_at FROM submissions
		WHERE enrollment_id = ? ORDER BY created_at DESC, id DESC`), enrollmentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	subs := make([]enrollment.Submission, 0, len(rows))
	for _, r := range rows {
		subs = append(subs, enrollment.Submission{
			ID:           r.ID,
			EnrollmentID: r.EnrollmentID,
			URLOrText:    r.URLOrText,
			CreatedAt:    r.CreatedAt.UTC(),
		})
	}
	return subs, nil
}

func (repo enrollmentRepository) deleteBy(ctx context.Context, ex core.DBExecutor, table, column, id string) error {
	_, err := ex.ExecContext(ctx, ex.Rebind(`DELETE FROM `+table+` WHERE `+column+` = ?`), id)
	return errors.Wrapf(err, "deleting %s", table)
}

func (repo enrollmentRepository) DeleteProgress(ctx context.Context, enrollmentID string, exec ...core.DBExecutor) error {
	return repo.deleteBy(ctx, repo.getExec(exec), "enrollment_progress", "enrollment_id", enrollmentID)
}

func (repo enrollmentRepository) DeleteSubmissions(ctx context.Context, enrollmentID string, exec ...core.DBExecutor) error {
	return repo.deleteBy(ctx, repo.getExec(exec), "submissions", "enrollment_id", enrollmentID)
}

func (repo enrollmentRepository) DeleteActivities(ctx context.Context, enrollmentID string, exec ...core.DBExecutor) error {
	return repo.deleteBy(ctx, repo.getExec(exec), "user_activities", "enrollment_id", enrollmentID)
}

func (repo enrollmentRepository) DeleteEnrollment(ctx context.Context, id string, exec ...core.DBExecutor) error {
	return repo.deleteBy(ctx, repo.getExec(exec), "enrollments", "id", id)
}

func (repo enrollmentRepository) CountGroupEnrollments(ctx context.Context, groupID string, exec ...core.DBExecutor) (int, error) {
	ex := repo.getExec(exec)
	var n int
	err := sqlx.GetContext(ctx, ex, &n, ex.Rebind(`SELECT COUNT(*) FROM enrollments WHERE group_id = ?`), groupID)
	return n, errors.Wrap(err, "counting group enrollments")
}
