package enrollment

import (
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/studylab/core"
	"github.com/trezcool/studylab/core/project"
)

// Enrollment is one learner's attempt at one Project.
type Enrollment struct {
	ID               string      `json:"id"`
	ProjectID        string      `json:"projectId"`
	Email            string      `json:"email"`
	Name             string      `json:"name"`
	School           string      `json:"school"`
	ClassNum         int         `json:"classNum"`
	UserID           null.String `json:"userId"`
	GroupID          null.String `json:"groupId"`
	CreatedAt        time.Time   `json:"createdAt"` // UTC
	LastActivityAt   null.Time   `json:"lastActivityAt"`
	CompletedAt      null.Time   `json:"completedAt"`
	TimeSpentMinutes int         `json:"timeSpentMinutes"`
}

// Progress is a completion fact keyed by (EnrollmentID, StepID, ChecklistID).
// A null ChecklistID records step-level completion.
type Progress struct {
	ID           string
	EnrollmentID string
	StepID       string
	ChecklistID  null.String
	Completed    bool
	UpdatedAt    time.Time
}

func (p Progress) IsStepLevel() bool { return !p.ChecklistID.Valid }

type Submission struct {
	ID           string    `json:"id"`
	EnrollmentID string    `json:"-"`
	URLOrText    string    `json:"urlOrText"`
	CreatedAt    time.Time `json:"createdAt"` // UTC
}

type (
	ProjectSummary struct {
		Slug     string `json:"slug"`
		Title    string `json:"title"`
		Level    string `json:"level"`
		Guidance string `json:"guidance"`
	}

	ChecklistProgress struct {
		project.ChecklistItem
		Completed bool `json:"completed"`
	}

	StepProgress struct {
		ID          string              `json:"id"`
		Order       int                 `json:"order"`
		Title       string              `json:"title"`
		Description string              `json:"description"`
		Completed   bool                `json:"completed"`
		Checklist   []ChecklistProgress `json:"checklist"`
		Resources   []project.Resource  `json:"resources"`
	}

	Detail struct {
		Enrollment           Enrollment     `json:"enrollment"`
		Project              ProjectSummary `json:"project"`
		Steps                []StepProgress `json:"steps"`
		CompletionPercentage int            `json:"completionPercentage"`
	}

	ProgressSummary struct {
		CompletedSteps       int `json:"completedSteps"`
		TotalSteps           int `json:"totalSteps"`
		CompletionPercentage int `json:"completionPercentage"`
		CompletedChecklists  int `json:"completedChecklists"`
		TotalChecklists      int `json:"totalChecklists"`
	}

	// Duplicates lists the enrollments of a user that reconciliation would remove.
	Duplicates struct {
		UserID string
		Keep   Enrollment
		Remove []Enrollment
	}
)

// Percentage returns round(100 * completed / total), or 0 when total is 0.
func Percentage(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(completed) / float64(total)))
}

// completedSteps counts the distinct steps with a completed step-level progress row.
// Checklist rows never count.
func completedSteps(progress []Progress) map[string]bool {
	done := make(map[string]bool)
	for _, p := range progress {
		if p.Completed && p.IsStepLevel() {
			done[p.StepID] = true
		}
	}
	return done
}

func completedChecklists(progress []Progress) map[string]bool {
	done := make(map[string]bool)
	for _, p := range progress {
		if p.Completed && !p.IsStepLevel() {
			done[p.ChecklistID.String] = true
		}
	}
	return done
}

// NewEnrollment contains information needed to enroll in a Project.
type NewEnrollment struct {
	ProjectSlug string `json:"projectSlug" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	Name        string `json:"name" validate:"required"`
	School      string `json:"school" validate:"required"`
	ClassNum    int    `json:"classNum" validate:"required,min=1,max=12"`
}

func (ne *NewEnrollment) Validate(validate *validator.Validate) error {
	ne.ProjectSlug = core.CleanString(ne.ProjectSlug, true /* lower */)
	ne.Email = core.CleanString(ne.Email, true /* lower */)
	ne.Name = core.CleanString(ne.Name)
	ne.School = core.CleanString(ne.School)
	return validate.Struct(ne)
}

type CompletionUpdate struct {
	Completed *bool `json:"completed" validate:"required"`
}

func (cu CompletionUpdate) Validate(validate *validator.Validate) error { return validate.Struct(cu) }

type NewSubmission struct {
	URLOrText string `json:"urlOrText" validate:"required,max=10000"`
}

func (ns *NewSubmission) Validate(validate *validator.Validate) error {
	ns.URLOrText = core.CleanString(ns.URLOrText)
	return validate.Struct(ns)
}
