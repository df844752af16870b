package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/studylab/core"
	"github.com/trezcool/studylab/core/project"
)

const projectColumns = "id, slug, title, short_desc, long_desc, class_min, class_max, level, guidance, " +
	"subjects, tags, tools, prerequisites, duration_hrs, created_at, updated_at"

type (
	projectRow struct {
		ID            string    `db:"id"`
		Slug          string    `db:"slug"`
		Title         string    `db:"title"`
		ShortDesc     string    `db:"short_desc"`
		LongDesc      string    `db:"long_desc"`
		ClassMin      int       `db:"class_min"`
		ClassMax      int       `db:"class_max"`
		Level         string    `db:"level"`
		Guidance      string    `db:"guidance"`
		Subjects      string    `db:"subjects"`
		Tags          string    `db:"tags"`
		Tools         string    `db:"tools"`
		Prerequisites string    `db:"prerequisites"`
		DurationHrs   float64   `db:"duration_hrs"`
		CreatedAt     time.Time `db:"created_at"`
		UpdatedAt     time.Time `db:"updated_at"`
	}

	stepRow struct {
		ID          string `db:"id"`
		ProjectID   string `db:"project_id"`
		Position    int    `db:"position"`
		Title       string `db:"title"`
		Description string `db:"description"`
	}

	checklistItemRow struct {
		ID       string `db:"id"`
		StepID   string `db:"step_id"`
		Position int    `db:"position"`
		Text     string `db:"text"`
	}

	resourceRow struct {
		ID       string `db:"id"`
		StepID   string `db:"step_id"`
		Position int    `db:"position"`
		Title    string `db:"title"`
		URL      string `db:"url"`
		Type     string `db:"resource_type"`
	}

	submissionSpecRow struct {
		ProjectID    string `db:"project_id"`
		Type         string `db:"spec_type"`
		Instruction  string `db:"instruction"`
		AllowedTypes string `db:"allowed_types"`
	}
)

func (r projectRow) toModel() (project.Project, error) {
	lists := make(map[string][]string, 4)
	for column, s := range map[string]string{
		"subjects":      r.Subjects,
		"tags":          r.Tags,
		"tools":         r.Tools,
		"prerequisites": r.Prerequisites,
	} {
		list, err := unmarshalList(s, column)
		if err != nil {
			return project.Project{}, errors.Wrapf(err, "project %s", r.Slug)
		}
		lists[column] = list
	}

	return project.Project{
		ID:            r.ID,
		Slug:          r.Slug,
		Title:         r.Title,
		ShortDesc:     r.ShortDesc,
		LongDesc:      r.LongDesc,
		ClassMin:      r.ClassMin,
		ClassMax:      r.ClassMax,
		Level:         r.Level,
		Guidance:      r.Guidance,
		Subjects:      lists["subjects"],
		Tags:          lists["tags"],
		Tools:         lists["tools"],
		Prerequisites: lists["prerequisites"],
		DurationHrs:   r.DurationHrs,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}, nil
}

func (r stepRow) toModel() project.Step {
	return project.Step{
		ID:          r.ID,
		ProjectID:   r.ProjectID,
		Order:       r.Position,
		Title:       r.Title,
		Description: r.Description,
		Checklist:   []project.ChecklistItem{},
		Resources:   []project.Resource{},
	}
}

func (r checklistItemRow) toModel() project.ChecklistItem {
	return project.ChecklistItem{ID: r.ID, StepID: r.StepID, Order: r.Position, Text: r.Text}
}

type projectRepository struct {
	repository
}

var _ project.Repository = (*projectRepository)(nil) // interface compliance check

func NewProjectRepository(exec core.DBExecutor) *projectRepository {
	return &projectRepository{repository{exec: exec}}
}

func (repo projectRepository) QueryProjects(
	ctx context.Context,
	filter project.QueryFilter,
	page core.Page,
	exec ...core.DBExecutor,
) ([]project.Project, int, error) {
	ex := repo.getExec(exec)

	where := sq.And{}
	if filter.ClassNum > 0 {
		where = append(where, sq.LtOrEq{"class_min": filter.ClassNum}, sq.GtOrEq{"class_max": filter.ClassNum})
	}
	if filter.Level != "" {
		where = append(where, sq.Eq{"level": filter.Level})
	}
	if filter.Guidance != "" {
		where = append(where, sq.Eq{"guidance": filter.Guidance})
	}
	if filter.Search != "" {
		val := "%" + core.CleanString(filter.Search, true /* lower */) + "%"
		where = append(where, sq.Or{
			sq.Expr("LOWER(title) LIKE ?", val),
			sq.Expr("LOWER(short_desc) LIKE ?", val),
		})
	}

	query, args, err := toSQL(ex, sq.Select("COUNT(*)").From("projects").Where(where))
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err = sqlx.GetContext(ctx, ex, &total, query, args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting projects")
	}

	query, args, err = toSQL(ex, sq.Select(projectColumns).From("projects").Where(where).
		OrderBy("updated_at DESC", "id").
		Limit(page.Limit()).
		Offset(page.Offset()))
	if err != nil {
		return nil, 0, err
	}
	var rows []projectRow
	if err = sqlx.SelectContext(ctx, ex, &rows, query, args...); err != nil {
		return nil, 0, errors.Wrap(err, "querying projects")
	}

	projects := make([]project.Project, 0, len(rows))
	for _, r := range rows {
		proj, err := r.toModel()
		if err != nil {
			return nil, 0, err
		}
		projects = append(projects, proj)
	}
	return projects, total, nil
}

func (repo projectRepository) GetProject(ctx context.Context, filter project.GetFilter, exec ...core.DBExecutor) (project.Project, error) {
	ex := repo.getExec(exec)

	where := sq.Eq{}
	switch {
	case filter.ID != "":
		where["id"] = filter.ID
	case filter.Slug != "":
		where["slug"] = filter.Slug
	default:
		return project.Project{}, project.ErrNotFound
	}

	query, args, err := toSQL(ex, sq.Select(projectColumns).From("projects").Where(where))
	if err != nil {
		return project.Project{}, err
	}
	var row projectRow
	if err = sqlx.GetContext(ctx, ex, &row, query, args...); err != nil {
		return project.Project{}, trapNoRowsErr(err, project.ErrNotFound, "getting project")
	}
	return row.toModel()
}

func (repo projectRepository) GetSteps(ctx context.Context, projectID string, exec ...core.DBExecutor) ([]project.Step, error) {
	ex := repo.getExec(exec)

	var stepRows []stepRow
	err := sqlx.SelectContext(ctx, ex, &stepRows, ex.Rebind(
		`SELECT id, project_id, position, title, description FROM steps WHERE project_id = ? ORDER BY position`), projectID)
	if err != nil {
		return nil, errors.Wrap(err, "querying steps")
	}

	var itemRows []checklistItemRow
	err = sqlx.SelectContext(ctx, ex, &itemRows, ex.Rebind(
		`SELECT ci.id, ci.step_id, ci.position, ci.text
		FROM checklist_items ci JOIN steps s ON s.id = ci.step_id
		WHERE s.project_id = ? ORDER BY ci.position`), projectID)
	if err != nil {
		return nil, errors.Wrap(err, "querying checklist items")
	}

	var resRows []resourceRow
	err = sqlx.SelectContext(ctx, ex, &resRows, ex.Rebind(
		`SELECT r.id, r.step_id, r.position, r.title, r.url, r.resource_type
		FROM resources r JOIN steps s ON s.id = r.step_id
		WHERE s.project_id = ? ORDER BY r.position`), projectID)
	if err != nil {
		return nil, errors.Wrap(err, "querying resources")
	}

	steps := make([]project.Step, 0, len(stepRows))
	idx := make(map[string]int, len(stepRows))
	for i, r := range stepRows {
		steps = append(steps, r.toModel())
		idx[r.ID] = i
	}
	for _, r := range itemRows {
		if i, ok := idx[r.StepID]; ok {
			steps[i].Checklist = append(steps[i].Checklist, r.toModel())
		}
	}
	for _, r := range resRows {
		if i, ok := idx[r.StepID]; ok {
			steps[i].Resources = append(steps[i].Resources, project.Resource{
				ID:     r.ID,
				StepID: r.StepID,
				Title:  r.Title,
				URL:    r.URL,
				Type:   r.Type,
			})
		}
	}
	return steps, nil
}

func (repo projectRepository) GetStep(ctx context.Context, stepID string, exec ...core.DBExecutor) (project.Step, error) {
	ex := repo.getExec(exec)
	var row stepRow
	err := sqlx.GetContext(ctx, ex, &row, ex.Rebind(
		`SELECT id, project_id, position, title, description FROM steps WHERE id = ?`), stepID)
	if err != nil {
		return project.Step{}, trapNoRowsErr(err, project.ErrStepNotFound, "getting step")
	}
	return row.toModel(), nil
}

func (repo projectRepository) CountSteps(ctx context.Context, projectID string, exec ...core.DBExecutor) (int, error) {
	ex := repo.getExec(exec)
	var n int
	err := sqlx.GetContext(ctx, ex, &n, ex.Rebind(`SELECT COUNT(*) FROM steps WHERE project_id = ?`), projectID)
	return n, errors.Wrap(err, "counting steps")
}

func (repo projectRepository) GetChecklistItem(ctx context.Context, itemID string, exec ...core.DBExecutor) (project.ChecklistItem, error) {
	ex := repo.getExec(exec)
	var row checklistItemRow
	err := sqlx.GetContext(ctx, ex, &row, ex.Rebind(
		`SELECT id, step_id, position, text FROM checklist_items WHERE id = ?`), itemID)
	if err != nil {
		return project.ChecklistItem{}, trapNoRowsErr(err, project.ErrChecklistItemNotFound, "getting checklist item")
	}
	return row.toModel(), nil
}

func (repo projectRepository) GetSubmissionSpec(ctx context.Context, projectID string, exec ...core.DBExecutor) (*project.SubmissionSpec, error) {
	ex := repo.getExec(exec)
	var row submissionSpecRow
	err := sqlx.GetContext(ctx, ex, &row, ex.Rebind(
		`SELECT project_id, spec_type, instruction, allowed_types FROM submission_specs WHERE project_id = ?`), projectID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrap(err, "getting submission spec")
	}
	allowed, err := unmarshalList(row.AllowedTypes, "allowed_types")
	if err != nil {
		return nil, err
	}
	return &project.SubmissionSpec{
		Type:         row.Type,
		Instruction:  row.Instruction,
		AllowedTypes: allowed,
	}, nil
}

// UpsertProject inserts proj, or updates the project with the same slug keeping its ID & creation time.
func (repo projectRepository) UpsertProject(ctx context.Context, proj project.Project, exec ...core.DBExecutor) (project.Project, error) {
	ex := repo.getExec(exec)

	existing, err := repo.GetProject(ctx, project.GetFilter{Slug: proj.Slug}, ex)
	switch {
	case err == nil:
		proj.ID = existing.ID
		proj.CreatedAt = existing.CreatedAt
		_, err = ex.ExecContext(ctx, ex.Rebind(
			`UPDATE projects SET title = ?, short_desc = ?, long_desc = ?, class_min = ?, class_max = ?, level = ?,
			guidance = ?, subjects = ?, tags = ?, tools = ?, prerequisites = ?, duration_hrs = ?, updated_at = ?
			WHERE id = ?`),
			proj.Title, proj.ShortDesc, proj.LongDesc, proj.ClassMin, proj.ClassMax, proj.Level,
			proj.Guidance, marshalList(proj.Subjects), marshalList(proj.Tags), marshalList(proj.Tools),
			marshalList(proj.Prerequisites), proj.DurationHrs, proj.UpdatedAt.UTC(),
			proj.ID)
		if err != nil {
			return project.Project{}, errors.Wrap(err, "updating project")
		}
	case core.IsNotFound(err):
		proj.ID = newID()
		_, err = ex.ExecContext(ctx, ex.Rebind(
			`INSERT INTO projects (`+projectColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			proj.ID, proj.Slug, proj.Title, proj.ShortDesc, proj.LongDesc, proj.ClassMin, proj.ClassMax, proj.Level,
			proj.Guidance, marshalList(proj.Subjects), marshalList(proj.Tags), marshalList(proj.Tools),
			marshalList(proj.Prerequisites), proj.DurationHrs, proj.CreatedAt.UTC(), proj.UpdatedAt.UTC())
		if err != nil {
			return project.Project{}, errors.Wrap(err, "inserting project")
		}
	default:
		return project.Project{}, err
	}
	return repo.GetProject(ctx, project.GetFilter{ID: proj.ID}, ex)
}

// SyncCurriculum makes the project steps match steps, by position.
// Dropped steps & checklist items are deleted along with their progress; resources & submission spec are replaced.
func (repo projectRepository) SyncCurriculum(
	ctx context.Context,
	projectID string,
	steps []project.ImportStep,
	spec *project.ImportSubSpec,
	exec ...core.DBExecutor,
) error {
	ex := repo.getExec(exec)

	var existing []stepRow
	err := sqlx.SelectContext(ctx, ex, &existing, ex.Rebind(
		`SELECT id, project_id, position, title, description FROM steps WHERE project_id = ?`), projectID)
	if err != nil {
		return errors.Wrap(err, "querying existing steps")
	}
	stepIDs := make(map[int]string, len(existing))
	for _, s := range existing {
		stepIDs[s.Position] = s.ID
	}

	kept := make(map[string]bool, len(steps))
	for _, s := range steps {
		id, ok := stepIDs[s.Order]
		if ok {
			_, err = ex.ExecContext(ctx, ex.Rebind(`UPDATE steps SET title = ?, description = ? WHERE id = ?`),
				s.Title, s.Description, id)
		} else {
			id = newID()
			_, err = ex.ExecContext(ctx, ex.Rebind(
				`INSERT INTO steps (id, project_id, position, title, description) VALUES (?, ?, ?, ?, ?)`),
				id, projectID, s.Order, s.Title, s.Description)
		}
		if err != nil {
			return errors.Wrapf(err, "saving step %d", s.Order)
		}
		kept[id] = true

		if err = repo.syncChecklist(ctx, ex, id, s.Checklist); err != nil {
			return err
		}
		if err = repo.replaceResources(ctx, ex, id, s.Resources); err != nil {
			return err
		}
	}

	for _, s := range existing {
		if kept[s.ID] {
			continue
		}
		if err = repo.deleteStep(ctx, ex, s.ID); err != nil {
			return err
		}
	}

	if _, err = ex.ExecContext(ctx, ex.Rebind(`DELETE FROM submission_specs WHERE project_id = ?`), projectID); err != nil {
		return errors.Wrap(err, "deleting submission spec")
	}
	if spec != nil {
		_, err = ex.ExecContext(ctx, ex.Rebind(
			`INSERT INTO submission_specs (project_id, spec_type, instruction, allowed_types) VALUES (?, ?, ?, ?)`),
			projectID, spec.Type, spec.Instruction, marshalList(spec.AllowedTypes))
		if err != nil {
			return errors.Wrap(err, "inserting submission spec")
		}
	}
	return nil
}

func (repo projectRepository) syncChecklist(ctx context.Context, ex core.DBExecutor, stepID string, items []project.ImportChecklistItem) error {
	var existing []checklistItemRow
	err := sqlx.SelectContext(ctx, ex, &existing, ex.Rebind(
		`SELECT id, step_id, position, text FROM checklist_items WHERE step_id = ?`), stepID)
	if err != nil {
		return errors.Wrap(err, "querying existing checklist items")
	}
	itemIDs := make(map[int]string, len(existing))
	for _, item := range existing {
		itemIDs[item.Position] = item.ID
	}

	kept := make(map[string]bool, len(items))
	for _, item := range items {
		id, ok := itemIDs[item.Order]
		if ok {
			_, err = ex.ExecContext(ctx, ex.Rebind(`UPDATE checklist_items SET text = ? WHERE id = ?`), item.Text, id)
		} else {
			id = newID()
			_, err = ex.ExecContext(ctx, ex.Rebind(
				`INSERT INTO checklist_items (id, step_id, position, text) VALUES (?, ?, ?, ?)`),
				id, stepID, item.Order, item.Text)
		}
		if err != nil {
			return errors.Wrapf(err, "saving checklist item %d", item.Order)
		}
		kept[id] = true
	}

	for _, item := range existing {
		if kept[item.ID] {
			continue
		}
		if _, err = ex.ExecContext(ctx, ex.Rebind(`DELETE FROM enrollment_progress WHERE checklist_id = ?`), item.ID); err != nil {
			return errors.Wrap(err, "deleting checklist item progress")
		}
		if _, err = ex.ExecContext(ctx, ex.Rebind(`DELETE FROM checklist_items WHERE id = ?`), item.ID); err != nil {
			return errors.Wrap(err, "deleting checklist item")
		}
	}
	return nil
}

func (repo projectRepository) replaceResources(ctx context.Context, ex core.DBExecutor, stepID string, resources []project.ImportResource) error {
	if _, err := ex.ExecContext(ctx, ex.Rebind(`DELETE FROM resources WHERE step_id = ?`), stepID); err != nil {
		return errors.Wrap(err, "deleting resources")
	}
	for i, r := range resources {
		_, err := ex.ExecContext(ctx, ex.Rebind(
			`INSERT INTO resources (id, step_id, position, title, url, resource_type) VALUES (?, ?, ?, ?, ?, ?)`),
			newID(), stepID, i+1, r.Title, r.URL, r.Type)
		if err != nil {
			return errors.Wrap(err, "inserting resource")
		}
	}
	return nil
}

func (repo projectRepository) deleteStep(ctx context.Context, ex core.DBExecutor, stepID string) error {
	stmts := []struct{ query, msg string }{
		{`DELETE FROM enrollment_progress WHERE step_id = ?`, "deleting step progress"},
		{`DELETE FROM checklist_items WHERE step_id = ?`, "deleting step checklist items"},
		{`DELETE FROM resources WHERE step_id = ?`, "deleting step resources"},
		{`DELETE FROM steps WHERE id = ?`, "deleting step"},
	}
	for _, stmt := range stmts {
		if _, err := ex.ExecContext(ctx, ex.Rebind(stmt.query), stepID); err != nil {
			return errors.Wrap(err, stmt.msg)
		}
	}
	return nil
}
