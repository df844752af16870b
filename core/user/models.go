package user

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/studylab/core"
	"github.com/trezcool/studylab/core/enrollment"
	"github.com/trezcool/studylab/core/group"
	"github.com/trezcool/studylab/core/project"
)

const passwordHashCost = 12

type User struct {
	ID           string    `json:"id"`
	PhoneNumber  string    `json:"phoneNumber"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	School       string    `json:"school"`
	ClassNum     null.Int  `json:"classNum"`
	IsAdmin      bool      `json:"isAdmin"`
	IsActive     bool      `json:"isActive"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"` // UTC
	UpdatedAt    time.Time `json:"updatedAt"` // UTC
	LastLogin    null.Time `json:"lastLogin"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), passwordHashCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

type (
	// ProfileEnrollment is an enrollment as shown on its owner's profile.
	ProfileEnrollment struct {
		enrollment.Enrollment
		Project  project.Project            `json:"project"`
		Group    *group.Group               `json:"group"`
		Progress enrollment.ProgressSummary `json:"progress"`
	}

	Profile struct {
		User        User                `json:"user"`
		Enrollments []ProfileEnrollment `json:"enrollments"`
	}

	ListResult struct {
		Data []User `json:"data"`
		core.Pagination
	}
)

// NewUser contains information needed to register a User from one of their enrollments.
type NewUser struct {
	EnrollmentID string `json:"enrollmentId" validate:"required"`
	PhoneNumber  string `json:"phoneNumber" validate:"required,e164"`
	Password     string `json:"password" validate:"required"`
	Name         string `json:"name"`
	School       string `json:"school"`
	ClassNum     int    `json:"classNum" validate:"omitempty,min=1,max=12"`
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.EnrollmentID = core.CleanString(nu.EnrollmentID)
	nu.PhoneNumber = core.CleanString(nu.PhoneNumber)
	nu.Name = core.CleanString(nu.Name)
	nu.School = core.CleanString(nu.School)
	return validate.Struct(nu)
}

// NewAccount contains information needed to create a User without an enrollment, e.g. an admin.
type NewAccount struct {
	PhoneNumber     string `json:"phoneNumber" validate:"required,e164"`
	Email           string `json:"email" validate:"omitempty,email"`
	Name            string `json:"name" validate:"required"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
	IsAdmin         bool   `json:"isAdmin"`
}

func (na *NewAccount) Validate(validate *validator.Validate) error {
	na.PhoneNumber = core.CleanString(na.PhoneNumber)
	na.Email = core.CleanString(na.Email, true /* lower */)
	na.Name = core.CleanString(na.Name)
	return validate.Struct(na)
}

type Credentials struct {
	PhoneNumber string `json:"phoneNumber" validate:"required"`
	Password    string `json:"password" validate:"required"`
}

func (c *Credentials) Validate(validate *validator.Validate) error {
	c.PhoneNumber = core.CleanString(c.PhoneNumber)
	return validate.Struct(c)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"passwordConfirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

type QueryFilter struct {
	Search      string    `query:"search"`
	ProjectID   string    `query:"projectId"`
	ClassNum    int       `query:"classNum"`
	CreatedFrom time.Time `query:"createdFrom"`
	CreatedTo   time.Time `query:"createdTo"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.ProjectID = core.CleanString(qf.ProjectID)
}
