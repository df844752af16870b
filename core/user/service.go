package user

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/studylab/core"
	"github.com/trezcool/studylab/core/enrollment"
	"github.com/trezcool/studylab/core/group"
	"github.com/trezcool/studylab/core/project"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("user not found")
	ErrPhoneExists        = errors.New("user account already exists for this phone number, please login instead")
	ErrInvalidCredentials = core.NewValidationError(errors.New("invalid credentials"))
	ErrAccountDeactivated = errors.New("account deactivated")
)

const passwordResetTemplate = "password_reset"

type (
	GetFilter struct {
		ID          string
		PhoneNumber string
	}

	Repository interface {
		// CreateUser fails with ErrPhoneExists when the phone number is taken.
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields and returns the page plus the total count.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Email or User.PhoneNumber.
		QueryUsers(ctx context.Context, filter QueryFilter, page core.Page, exec ...core.DBExecutor) ([]User, int, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		SetLastLogin(ctx context.Context, id string, at time.Time, exec ...core.DBExecutor) error
	}

	Service struct {
		db          core.DB
		repo        Repository
		enrollments *enrollment.Service
		projects    *project.Service
		groups      *group.Service
		mailSvc     core.EmailService
		tokens      tokenGenerator
	}
)

func NewService(
	conf *core.Config,
	db core.DB,
	repo Repository,
	enrollments *enrollment.Service,
	projects *project.Service,
	groups *group.Service,
	mailSvc core.EmailService,
) *Service {
	return &Service{
		db:          db,
		repo:        repo,
		enrollments: enrollments,
		projects:    projects,
		groups:      groups,
		mailSvc:     mailSvc,
		tokens:      newTokenGenerator(conf.SecretKey, conf.PasswordResetTimeout),
	}
}

func phoneExistsErr() error {
	return core.NewValidationError(ErrPhoneExists, core.FieldError{Field: "phoneNumber", Error: ErrPhoneExists.Error()})
}

// createUserErr maps a concurrent registration of the same phone number to the error of checkPhoneUniqueness.
func createUserErr(err error) error {
	if errors.Is(err, ErrPhoneExists) {
		return phoneExistsErr()
	}
	return errors.Wrap(err, "creating user")
}

func (svc *Service) checkPhoneUniqueness(ctx context.Context, phone string, exec ...core.DBExecutor) error {
	_, err := svc.repo.GetUser(ctx, GetFilter{PhoneNumber: phone}, exec...)
	switch {
	case err == nil:
		return phoneExistsErr()
	case core.IsNotFound(err):
		return nil
	default:
		return errors.Wrap(err, "checking phone number uniqueness")
	}
}

// Register creates a User from one of their enrollments, then links every enrollment made with the same email to them.
func (svc *Service) Register(ctx context.Context, nu NewUser) (User, error) {
	enr, err := svc.enrollments.Get(ctx, nu.EnrollmentID)
	if err != nil {
		return User{}, err
	}

	now := time.Now().UTC()
	usr := User{
		PhoneNumber: nu.PhoneNumber,
		Email:       enr.Email,
		Name:        nu.Name,
		School:      nu.School,
		ClassNum:    null.NewInt(nu.ClassNum, nu.ClassNum > 0),
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if usr.Name == "" {
		usr.Name = enr.Name
	}
	if usr.School == "" {
		usr.School = enr.School
	}
	if !usr.ClassNum.Valid && enr.ClassNum > 0 {
		usr.ClassNum = null.IntFrom(enr.ClassNum)
	}
	if err = usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}

	err = core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if err := svc.checkPhoneUniqueness(ctx, usr.PhoneNumber, tx); err != nil {
			return err
		}
		if usr, err = svc.repo.CreateUser(ctx, usr, tx); err != nil {
			return createUserErr(err)
		}
		_, err := svc.enrollments.LinkEmailToUser(ctx, usr.Email, usr.ID, tx)
		return errors.Wrap(err, "linking enrollments")
	})
	if err != nil {
		return User{}, err
	}
	return usr, nil
}

// CreateAccount creates a User that is not tied to an enrollment.
func (svc *Service) CreateAccount(ctx context.Context, na NewAccount) (User, error) {
	if err := svc.checkPhoneUniqueness(ctx, na.PhoneNumber); err != nil {
		return User{}, err
	}

	now := time.Now().UTC()
	usr := User{
		PhoneNumber: na.PhoneNumber,
		Email:       na.Email,
		Name:        na.Name,
		IsAdmin:     na.IsAdmin,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := usr.SetPassword(na.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, createUserErr(err)
	}
	return usr, nil
}

// Authenticate checks the credentials of an active User, and records the login.
func (svc *Service) Authenticate(ctx context.Context, creds Credentials) (User, error) {
	usr, err := svc.repo.GetUser(ctx, GetFilter{PhoneNumber: creds.PhoneNumber})
	if err != nil {
		if core.IsNotFound(err) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, errors.Wrap(err, "getting user by phone number")
	}
	if err = usr.CheckPassword(creds.Password); err != nil {
		return User{}, ErrInvalidCredentials
	}
	if !usr.IsActive {
		return User{}, ErrAccountDeactivated
	}

	now := time.Now().UTC()
	if err = svc.repo.SetLastLogin(ctx, usr.ID, now); err != nil {
		return User{}, errors.Wrap(err, "setting last login")
	}
	usr.LastLogin = null.TimeFrom(now)
	return usr, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByPhoneNumber(ctx context.Context, phone string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{PhoneNumber: core.CleanString(phone)})
}

// Profile returns the User with their enrollments.
// Duplicate enrollments are reconciled first, so at most one enrollment is returned.
func (svc *Service) Profile(ctx context.Context, id string) (Profile, error) {
	usr, err := svc.repo.GetUser(ctx, GetFilter{ID: id})
	if err != nil {
		return Profile{}, err
	}
	if _, err = svc.enrollments.ReconcileDuplicates(ctx, usr.ID); err != nil {
		return Profile{}, errors.Wrap(err, "reconciling duplicate enrollments")
	}

	enrs, err := svc.enrollments.ListByUser(ctx, usr.ID)
	if err != nil {
		return Profile{}, errors.Wrap(err, "listing enrollments")
	}
	prof := Profile{User: usr, Enrollments: make([]ProfileEnrollment, 0, len(enrs))}
	for _, enr := range enrs {
		pe := ProfileEnrollment{Enrollment: enr}
		if pe.Project, err = svc.projects.GetByID(ctx, enr.ProjectID); err != nil {
			return Profile{}, errors.Wrap(err, "getting enrollment project")
		}
		if enr.GroupID.Valid {
			grp, err := svc.groups.Get(ctx, enr.GroupID.String)
			if err == nil {
				pe.Group = &grp
			} else if !core.IsNotFound(err) {
				return Profile{}, errors.Wrap(err, "getting enrollment group")
			}
		}
		if pe.Progress, err = svc.enrollments.Progress(ctx, enr); err != nil {
			return Profile{}, errors.Wrap(err, "getting enrollment progress")
		}
		prof.Enrollments = append(prof.Enrollments, pe)
	}
	return prof, nil
}

func (svc *Service) List(ctx context.Context, filter QueryFilter, page core.Page) (ListResult, error) {
	filter.Clean()
	page.Clean()
	users, total, err := svc.repo.QueryUsers(ctx, filter, page)
	if err != nil {
		return ListResult{}, err
	}
	if users == nil {
		users = []User{}
	}
	return ListResult{Data: users, Pagination: core.NewPagination(page, total)}, nil
}

// SetPassword changes the password of the User owning phone.
func (svc *Service) SetPassword(ctx context.Context, phone, pwd string) (User, error) {
	usr, err := svc.GetByPhoneNumber(ctx, phone)
	if err != nil {
		return User{}, err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// RequestPasswordReset emails a password reset link to the User owning phone, if they have an email.
func (svc *Service) RequestPasswordReset(ctx context.Context, phone string) error {
	usr, err := svc.GetByPhoneNumber(ctx, phone)
	if err != nil {
		return err
	}
	if !usr.IsActive || usr.Email == "" || svc.mailSvc == nil {
		return nil
	}

	token, err := svc.tokens.makeToken(usr)
	if err != nil {
		return errors.Wrap(err, "making password reset token")
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: passwordResetTemplate,
		TemplateData: map[string]string{
			"Name":  usr.Name,
			"UID":   EncodeUID(usr),
			"Token": token,
		},
	})
	return nil
}

// ResetPassword sets a new password using a token sent by RequestPasswordReset.
func (svc *Service) ResetPassword(ctx context.Context, rp ResetUserPassword) error {
	invalidErr := core.NewValidationError(errors.New("invalid token or uid"))

	id, err := decodeUID(rp.UID)
	if err != nil {
		return invalidErr
	}
	usr, err := svc.repo.GetUser(ctx, GetFilter{ID: id})
	if err != nil {
		if core.IsNotFound(err) {
			return invalidErr
		}
		return errors.Wrap(err, "getting user")
	}
	if err = svc.tokens.verifyToken(usr, rp.Token); err != nil {
		return core.NewValidationError(err)
	}

	if err = usr.SetPassword(rp.Password); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return err
}
