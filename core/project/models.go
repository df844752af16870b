package project

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/studylab/core"
)

// Levels
const (
	LevelBeginner     = "BEGINNER"
	LevelIntermediate = "INTERMEDIATE"
	LevelAdvanced     = "ADVANCED"
)

// Submission types
const (
	SubmissionLink = "LINK"
	SubmissionText = "TEXT"
	SubmissionFile = "FILE"
)

type (
	Project struct {
		ID            string    `json:"id"`
		Slug          string    `json:"slug"`
		Title         string    `json:"title"`
		ShortDesc     string    `json:"shortDesc"`
		LongDesc      string    `json:"longDesc,omitempty"`
		ClassMin      int       `json:"classMin"`
		ClassMax      int       `json:"classMax"`
		Level         string    `json:"level"`
		Guidance      string    `json:"guidance"`
		Subjects      []string  `json:"subjects"`
		Tags          []string  `json:"tags"`
		Tools         []string  `json:"tools,omitempty"`
		Prerequisites []string  `json:"prerequisites,omitempty"`
		DurationHrs   float64   `json:"durationHrs,omitempty"`
		CreatedAt     time.Time `json:"createdAt"` // UTC
		UpdatedAt     time.Time `json:"updatedAt"` // UTC
	}

	Step struct {
		ID          string          `json:"id"`
		ProjectID   string          `json:"-"`
		Order       int             `json:"order"`
		Title       string          `json:"title"`
		Description string          `json:"description"`
		Checklist   []ChecklistItem `json:"checklist"`
		Resources   []Resource      `json:"resources"`
	}

	ChecklistItem struct {
		ID     string `json:"id"`
		StepID string `json:"-"`
		Order  int    `json:"order"`
		Text   string `json:"text"`
	}

	Resource struct {
		ID     string `json:"id"`
		StepID string `json:"-"`
		Title  string `json:"title"`
		URL    string `json:"url"`
		Type   string `json:"type,omitempty"`
	}

	SubmissionSpec struct {
		Type         string   `json:"type"`
		Instruction  string   `json:"instruction"`
		AllowedTypes []string `json:"allowedTypes"`
	}

	// Detail is a Project with its ordered curriculum.
	Detail struct {
		Project
		Steps      []Step          `json:"steps"`
		Submission *SubmissionSpec `json:"submission,omitempty"`
	}

	ListResult struct {
		Data []Project `json:"data"`
		core.Pagination
	}
)

// AllowsExtension reports whether a file extension (without dot) may be submitted.
// An empty AllowedTypes list allows everything.
func (s SubmissionSpec) AllowsExtension(ext string) bool {
	if len(s.AllowedTypes) == 0 {
		return true
	}
	ext = core.CleanString(ext, true /* lower */)
	for _, t := range s.AllowedTypes {
		if core.CleanString(t, true /* lower */) == ext {
			return true
		}
	}
	return false
}

type QueryFilter struct {
	ClassNum int    `query:"class"`
	Level    string `query:"level"`
	Guidance string `query:"guidance"`
	Search   string `query:"q"`
}

func (qf *QueryFilter) Clean() {
	qf.Level = core.CleanString(qf.Level)
	qf.Guidance = core.CleanString(qf.Guidance)
	qf.Search = core.CleanString(qf.Search)
}

// ImportProject is the document accepted by Import (JSON or YAML).
type ImportProject struct {
	Slug          string         `json:"slug" yaml:"slug" validate:"required,slug"`
	Title         string         `json:"title" yaml:"title" validate:"required"`
	ShortDesc     string         `json:"shortDesc" yaml:"shortDesc"`
	LongDesc      string         `json:"longDesc" yaml:"longDesc"`
	ClassRange    ClassRange     `json:"classRange" yaml:"classRange"`
	Level         string         `json:"level" yaml:"level" validate:"required,oneof=BEGINNER INTERMEDIATE ADVANCED"`
	Guidance      string         `json:"guidance" yaml:"guidance" validate:"required"`
	Subjects      []string       `json:"subjects" yaml:"subjects"`
	Tags          []string       `json:"tags" yaml:"tags"`
	Tools         []string       `json:"tools" yaml:"tools"`
	Prerequisites []string       `json:"prerequisites" yaml:"prerequisites"`
	DurationHrs   float64        `json:"durationHrs" yaml:"durationHrs" validate:"gte=0"`
	Steps         []ImportStep   `json:"steps" yaml:"steps" validate:"dive"`
	Submission    *ImportSubSpec `json:"submission" yaml:"submission"`
}

type ClassRange struct {
	Min int `json:"min" yaml:"min" validate:"min=1"`
	Max int `json:"max" yaml:"max" validate:"gtefield=Min"`
}

type ImportStep struct {
	Order       int                   `json:"order" yaml:"order" validate:"min=1"`
	Title       string                `json:"title" yaml:"title" validate:"required"`
	Description string                `json:"description" yaml:"description"`
	Checklist   []ImportChecklistItem `json:"checklist" yaml:"checklist" validate:"dive"`
	Resources   []ImportResource      `json:"resources" yaml:"resources" validate:"dive"`
}

type ImportChecklistItem struct {
	Order int    `json:"order" yaml:"order" validate:"min=1"`
	Text  string `json:"text" yaml:"text" validate:"required"`
}

type ImportResource struct {
	Title string `json:"title" yaml:"title" validate:"required"`
	URL   string `json:"url" yaml:"url" validate:"required,url"`
	Type  string `json:"type" yaml:"type"`
}

type ImportSubSpec struct {
	Type         string   `json:"type" yaml:"type" validate:"required,oneof=LINK TEXT FILE"`
	Instruction  string   `json:"instruction" yaml:"instruction"`
	AllowedTypes []string `json:"allowedTypes" yaml:"allowedTypes"`
}

func (ip *ImportProject) Validate(validate *validator.Validate) error {
	ip.Slug = core.CleanString(ip.Slug, true /* lower */)
	ip.Title = core.CleanString(ip.Title)
	ip.Level = core.CleanString(ip.Level)
	ip.Guidance = core.CleanString(ip.Guidance)
	if err := validate.Struct(ip); err != nil {
		return err
	}

	seen := make(map[int]bool, len(ip.Steps))
	for _, s := range ip.Steps {
		if seen[s.Order] {
			return core.NewValidationError(nil, core.FieldError{Field: "steps", Error: "step orders must be unique"})
		}
		seen[s.Order] = true

		seenItems := make(map[int]bool, len(s.Checklist))
		for _, item := range s.Checklist {
			if seenItems[item.Order] {
				return core.NewValidationError(nil, core.FieldError{Field: "checklist", Error: "checklist item orders must be unique within a step"})
			}
			seenItems[item.Order] = true
		}
	}
	return nil
}
