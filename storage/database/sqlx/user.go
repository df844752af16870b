package sqlxrepos

import (
	"context"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/studylab/core"
	"github.com/trezcool/studylab/core/user"
)

var userColumns = []string{
	"id", "phone_number", "email", "name", "school", "class_num", "is_admin", "is_active",
	"password_hash", "created_at", "updated_at", "last_login",
}

type userRow struct {
	ID           string    `db:"id"`
	PhoneNumber  string    `db:"phone_number"`
	Email        string    `db:"email"`
	Name         string    `db:"name"`
	School       string    `db:"school"`
	ClassNum     null.Int  `db:"class_num"`
	IsAdmin      bool      `db:"is_admin"`
	IsActive     bool      `db:"is_active"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
	LastLogin    null.Time `db:"last_login"`
}

func (r userRow) toModel() user.User {
	usr := user.User{
		ID:           r.ID,
		PhoneNumber:  r.PhoneNumber,
		Email:        r.Email,
		Name:         r.Name,
		School:       r.School,
		ClassNum:     r.ClassNum,
		IsAdmin:      r.IsAdmin,
		IsActive:     r.IsActive,
		PasswordHash: []byte(r.PasswordHash),
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		LastLogin:    r.LastLogin,
	}
	if usr.LastLogin.Valid {
		usr.LastLogin.Time = usr.LastLogin.Time.UTC()
	}
	return usr
}

type userRepository struct {
	repository
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{repository{exec: exec}}
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	ex := repo.getExec(exec)
	usr.ID = newID()
	query, args, err := toSQL(ex, sq.Insert("users").Columns(userColumns...).Values(
		usr.ID, usr.PhoneNumber, usr.Email, usr.Name, usr.School, usr.ClassNum, usr.IsAdmin, usr.IsActive,
		string(usr.PasswordHash), usr.CreatedAt.UTC(), usr.UpdatedAt.UTC(), usr.LastLogin,
	))
	if err != nil {
		return user.User{}, err
	}
	if _, err = ex.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrPhoneExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return repo.GetUser(ctx, user.GetFilter{ID: usr.ID}, ex)
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	ex := repo.getExec(exec)
	q := sq.Select(userColumns...).From("users")
	switch {
	case filter.ID != "":
		q = q.Where(sq.Eq{"id": filter.ID})
	case filter.PhoneNumber != "":
		q = q.Where(sq.Eq{"phone_number": filter.PhoneNumber})
	default:
		return user.User{}, user.ErrNotFound
	}

	query, args, err := toSQL(ex, q)
	if err != nil {
		return user.User{}, err
	}
	var row userRow
	if err = sqlx.GetContext(ctx, ex, &row, query, args...); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "getting user")
	}
	return row.toModel(), nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter, page core.Page, exec ...core.DBExecutor) ([]user.User, int, error) {
	ex := repo.getExec(exec)

	where := sq.And{}
	if filter.Search != "" {
		term := "%" + strings.ToLower(filter.Search) + "%"
		where = append(where, sq.Or{
			sq.Like{"LOWER(name)": term},
			sq.Like{"LOWER(email)": term},
			sq.Like{"phone_number": term},
		})
	}
	if filter.ProjectID != "" {
		where = append(where, sq.Expr(
			"EXISTS (SELECT 1 FROM enrollments e WHERE e.user_id = users.id AND e.project_id = ?)", filter.ProjectID))
	}
	if filter.ClassNum > 0 {
		where = append(where, sq.Eq{"class_num": filter.ClassNum})
	}
	if !filter.CreatedFrom.IsZero() {
		where = append(where, sq.GtOrEq{"created_at": filter.CreatedFrom.UTC()})
	}
	if !filter.CreatedTo.IsZero() {
		where = append(where, sq.LtOrEq{"created_at": filter.CreatedTo.UTC()})
	}

	query, args, err := toSQL(ex, sq.Select("COUNT(*)").From("users").Where(where))
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err = sqlx.GetContext(ctx, ex, &total, query, args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting users")
	}

	q := sq.Select(userColumns...).From("users").Where(where).
		OrderBy("created_at DESC", "id").
		Limit(page.Limit()).
		Offset(page.Offset())
	if query, args, err = toSQL(ex, q); err != nil {
		return nil, 0, err
	}
	var rows []userRow
	if err = sqlx.SelectContext(ctx, ex, &rows, query, args...); err != nil {
		return nil, 0, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toModel())
	}
	return users, total, nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	ex := repo.getExec(exec)
	query, args, err := toSQL(ex, sq.Update("users").SetMap(map[string]interface{}{
		"phone_number":  usr.PhoneNumber,
		"email":         usr.Email,
		"name":          usr.Name,
		"school":        usr.School,
		"class_num":     usr.ClassNum,
		"is_admin":      usr.IsAdmin,
		"is_active":     usr.IsActive,
		"password_hash": string(usr.PasswordHash),
		"updated_at":    usr.UpdatedAt.UTC(),
	}).Where(sq.Eq{"id": usr.ID}))
	if err != nil {
		return user.User{}, err
	}

	res, err := ex.ExecContext(ctx, query, args...)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	n, err := affectedRows(res, "updating user")
	if err != nil {
		return user.User{}, err
	}
	if n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.GetUser(ctx, user.GetFilter{ID: usr.ID}, ex)
}

func (repo userRepository) SetLastLogin(ctx context.Context, id string, at time.Time, exec ...core.DBExecutor) error {
	ex := repo.getExec(exec)
	res, err := ex.ExecContext(ctx, ex.Rebind(`UPDATE users SET last_login = ? WHERE id = ?`), at.UTC(), id)
	if err != nil {
		return errors.Wrap(err, "setting last login")
	}
	n, err := affectedRows(res, "setting last login")
	if err != nil {
		return err
	}
	if n == 0 {
		return user.ErrNotFound
	}
	return nil
}
