package activity

import (
	"math"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/studylab/core"
)

// Activity types
const (
	TypeEnrollmentCreated  = "ENROLLMENT_CREATED"
	TypePageView           = "PAGE_VIEW"
	TypeStepCompleted      = "STEP_COMPLETED"
	TypeChecklistCompleted = "CHECKLIST_COMPLETED"
	TypeSubmissionCreated  = "SUBMISSION_CREATED"
	TypeSessionStart       = "SESSION_START"
	TypeSessionEnd         = "SESSION_END"
)

var AllTypes = []string{
	TypeEnrollmentCreated,
	TypePageView,
	TypeStepCompleted,
	TypeChecklistCompleted,
	TypeSubmissionCreated,
	TypeSessionStart,
	TypeSessionEnd,
}

func IsValidType(typ string) bool {
	for _, t := range AllTypes {
		if t == typ {
			return true
		}
	}
	return false
}

type Activity struct {
	ID           string                 `json:"id"`
	EnrollmentID string                 `json:"enrollmentId"`
	Type         string                 `json:"activityType"`
	Metadata     map[string]interface{} `json:"metadata"`
	CreatedAt    time.Time              `json:"createdAt"` // UTC
}

// RecentActivity is an Activity along with who did it, on which project.
type RecentActivity struct {
	Activity
	Email        string `json:"email"`
	Name         string `json:"name"`
	ProjectSlug  string `json:"projectSlug"`
	ProjectTitle string `json:"projectTitle"`
}

type Summary struct {
	ActivityCounts   map[string]int `json:"activityCounts"`
	TotalActivities  int            `json:"totalActivities"`
	TimeSpentMinutes int            `json:"timeSpentMinutes"`
	FirstActivity    null.Time      `json:"firstActivity"`
	LastActivity     null.Time      `json:"lastActivity"`
}

const (
	defaultQueryLimit  = 50
	maxQueryLimit      = 500
	defaultRecentLimit = 20
	maxRecentLimit     = 100
)

type QueryFilter struct {
	EnrollmentID string    `query:"enrollmentId"`
	Type         string    `query:"activityType"`
	From         time.Time `query:"startDate"`
	To           time.Time `query:"endDate"`
	Limit        int       `query:"limit"`
	Offset       int       `query:"offset"`
}

func (qf *QueryFilter) Clean() {
	qf.EnrollmentID = core.CleanString(qf.EnrollmentID)
	qf.Type = core.CleanString(qf.Type)
	if qf.Limit <= 0 {
		qf.Limit = defaultQueryLimit
	} else if qf.Limit > maxQueryLimit {
		qf.Limit = maxQueryLimit
	}
	if qf.Offset < 0 {
		qf.Offset = 0
	}
}

// NewActivity contains information needed to log an Activity.
type NewActivity struct {
	EnrollmentID string                 `json:"enrollmentId" validate:"required"`
	Type         string                 `json:"activityType" validate:"required,activitytype"`
	Metadata     map[string]interface{} `json:"metadata"`
}

func (na *NewActivity) Validate(validate *validator.Validate) error {
	na.EnrollmentID = core.CleanString(na.EnrollmentID)
	na.Type = core.CleanString(na.Type)
	return validate.Struct(na)
}

// SessionMinutes sums the duration of closed sessions, in minutes.
// A SESSION_START opens a session only when none is open; a SESSION_END closes the open one.
// A session still open at the end is discarded.
func SessionMinutes(activities []Activity) float64 {
	acts := make([]Activity, len(activities))
	copy(acts, activities)
	sort.SliceStable(acts, func(i, j int) bool { return acts[i].CreatedAt.Before(acts[j].CreatedAt) })

	var (
		total float64
		start *time.Time
	)
	for i := range acts {
		switch acts[i].Type {
		case TypeSessionStart:
			if start == nil {
				start = &acts[i].CreatedAt
			}
		case TypeSessionEnd:
			if start != nil {
				total += acts[i].CreatedAt.Sub(*start).Minutes()
				start = nil
			}
		}
	}
	return total
}

func roundMinutes(m float64) int {
	return int(math.Round(m))
}
