package project

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/studylab/core"
)

var (
	// errors
	ErrNotFound              = core.NewNotFoundError("project not found")
	ErrStepNotFound          = core.NewNotFoundError("step not found")
	ErrChecklistItemNotFound = core.NewNotFoundError("checklist item not found")
)

type (
	GetFilter struct {
		ID   string
		Slug string
	}

	Repository interface {
		// QueryProjects applies AND operation on available QueryFilter fields and returns the page plus the total count.
		// QueryFilter.Search does a case-insensitive match on one of Project.Title or Project.ShortDesc.
		QueryProjects(ctx context.Context, filter QueryFilter, page core.Page, exec ...core.DBExecutor) ([]Project, int, error)
		GetProject(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (Project, error)
		// GetSteps returns the project steps ordered by Order, with their checklist items & resources.
		GetSteps(ctx context.Context, projectID string, exec ...core.DBExecutor) ([]Step, error)
		GetStep(ctx context.Context, stepID string, exec ...core.DBExecutor) (Step, error)
		CountSteps(ctx context.Context, projectID string, exec ...core.DBExecutor) (int, error)
		GetChecklistItem(ctx context.Context, itemID string, exec ...core.DBExecutor) (ChecklistItem, error)
		// GetSubmissionSpec returns nil when the project requires no submission.
		GetSubmissionSpec(ctx context.Context, projectID string, exec ...core.DBExecutor) (*SubmissionSpec, error)
		UpsertProject(ctx context.Context, proj Project, exec ...core.DBExecutor) (Project, error)
		SyncCurriculum(ctx context.Context, projectID string, steps []ImportStep, spec *ImportSubSpec, exec ...core.DBExecutor) error
	}

	Service struct {
		db   core.DB
		repo Repository
	}
)

func NewService(db core.DB, repo Repository) *Service {
	return &Service{db: db, repo: repo}
}

func (svc *Service) List(ctx context.Context, filter QueryFilter, page core.Page) (ListResult, error) {
	filter.Clean()
	page.Clean()
	projects, total, err := svc.repo.QueryProjects(ctx, filter, page)
	if err != nil {
		return ListResult{}, err
	}
	if projects == nil {
		projects = []Project{}
	}
	return ListResult{Data: projects, Pagination: core.NewPagination(page, total)}, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Project, error) {
	return svc.repo.GetProject(ctx, GetFilter{ID: id})
}

func (svc *Service) GetBySlug(ctx context.Context, slug string) (Detail, error) {
	proj, err := svc.repo.GetProject(ctx, GetFilter{Slug: core.CleanString(slug, true /* lower */)})
	if err != nil {
		return Detail{}, err
	}
	return svc.detail(ctx, proj)
}

func (svc *Service) detail(ctx context.Context, proj Project) (Detail, error) {
	steps, err := svc.repo.GetSteps(ctx, proj.ID)
	if err != nil {
		return Detail{}, errors.Wrap(err, "getting steps")
	}
	spec, err := svc.repo.GetSubmissionSpec(ctx, proj.ID)
	if err != nil {
		return Detail{}, errors.Wrap(err, "getting submission spec")
	}
	return Detail{Project: proj, Steps: steps, Submission: spec}, nil
}

// Steps returns the ordered curriculum of a project.
func (svc *Service) Steps(ctx context.Context, projectID string) ([]Step, error) {
	return svc.repo.GetSteps(ctx, projectID)
}

func (svc *Service) SubmissionSpec(ctx context.Context, projectID string) (*SubmissionSpec, error) {
	return svc.repo.GetSubmissionSpec(ctx, projectID)
}

// Import creates or updates the project identified by ip.Slug, along with its curriculum.
// ip must have been validated.
func (svc *Service) Import(ctx context.Context, ip ImportProject) (Detail, error) {
	now := time.Now().UTC()
	proj := Project{
		Slug:          ip.Slug,
		Title:         ip.Title,
		ShortDesc:     core.CleanString(ip.ShortDesc),
		LongDesc:      core.CleanString(ip.LongDesc),
		ClassMin:      ip.ClassRange.Min,
		ClassMax:      ip.ClassRange.Max,
		Level:         ip.Level,
		Guidance:      ip.Guidance,
		Subjects:      ip.Subjects,
		Tags:          ip.Tags,
		Tools:         ip.Tools,
		Prerequisites: ip.Prerequisites,
		DurationHrs:   ip.DurationHrs,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if proj, err = svc.repo.UpsertProject(ctx, proj, tx); err != nil {
			return errors.Wrap(err, "upserting project")
		}
		return errors.Wrap(svc.repo.SyncCurriculum(ctx, proj.ID, ip.Steps, ip.Submission, tx), "syncing curriculum")
	})
	if err != nil {
		return Detail{}, err
	}
	return svc.detail(ctx, proj)
}
