package group

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/studylab/core"
)

// Group is a team of at most two: its leader (a User) and an optional second member,
// stored as plain contact fields.
type Group struct {
	ID                   string      `json:"id"`
	TeamLeaderID         string      `json:"teamLeaderId"`
	SecondMemberName     null.String `json:"secondMemberName"`
	SecondMemberEmail    null.String `json:"secondMemberEmail"`
	SecondMemberPhone    null.String `json:"secondMemberPhone"`
	SecondMemberSchool   null.String `json:"secondMemberSchool"`
	SecondMemberClassNum null.Int    `json:"secondMemberClassNum"`
	CreatedAt            time.Time   `json:"createdAt"` // UTC
	UpdatedAt            time.Time   `json:"updatedAt"` // UTC
}

func (g Group) HasSecondMember() bool {
	return g.SecondMemberName.Valid && g.SecondMemberName.String != ""
}

// SecondMember contains the contact details of a group's second member.
type SecondMember struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phoneNumber" validate:"omitempty,e164"`
	School   string `json:"school"`
	ClassNum int    `json:"classNum" validate:"omitempty,min=1,max=12"`
}

func (sm *SecondMember) Validate(validate *validator.Validate) error {
	sm.Name = core.CleanString(sm.Name)
	sm.Email = core.CleanString(sm.Email, true /* lower */)
	sm.Phone = core.CleanString(sm.Phone)
	sm.School = core.CleanString(sm.School)
	return validate.Struct(sm)
}
