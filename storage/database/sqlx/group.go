package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/studylab/core"
	"github.com/trezcool/studylab/core/group"
)

const groupColumns = "id, team_leader_id, second_member_name, second_member_email, second_member_phone, " +
	"second_member_school, second_member_class_num, created_at, updated_at"

type groupRow struct {
	ID                   string      `db:"id"`
	TeamLeaderID         string      `db:"team_leader_id"`
	SecondMemberName     null.String `db:"second_member_name"`
	SecondMemberEmail    null.String `db:"second_member_email"`
	SecondMemberPhone    null.String `db:"second_member_phone"`
	SecondMemberSchool   null.String `db:"second_member_school"`
	SecondMemberClassNum null.Int    `db:"second_member_class_num"`
	CreatedAt            time.Time   `db:"created_at"`
	UpdatedAt            time.Time   `db:"updated_at"`
}

func (r groupRow) toModel() group.Group {
	return group.Group{
		ID:                   r.ID,
		TeamLeaderID:         r.TeamLeaderID,
		SecondMemberName:     r.SecondMemberName,
		SecondMemberEmail:    r.SecondMemberEmail,
		SecondMemberPhone:    r.SecondMemberPhone,
		SecondMemberSchool:   r.SecondMemberSchool,
		SecondMemberClassNum: r.SecondMemberClassNum,
		CreatedAt:            r.CreatedAt.UTC(),
		UpdatedAt:            r.UpdatedAt.UTC(),
	}
}

type groupRepository struct {
	repository
}

var _ group.Repository = (*groupRepository)(nil) // interface compliance check

func NewGroupRepository(exec core.DBExecutor) *groupRepository {
	return &groupRepository{repository{exec: exec}}
}

func (repo groupRepository) CreateGroup(ctx context.Context, grp group.Group, exec ...core.DBExecutor) (group.Group, error) {
	ex := repo.getExec(exec)
	grp.ID = newID()
	_, err := ex.ExecContext(ctx, ex.Rebind(`INSERT INTO project_groups (`+groupColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		grp.ID, grp.TeamLeaderID, grp.SecondMemberName, grp.SecondMemberEmail, grp.SecondMemberPhone,
		grp.SecondMemberSchool, grp.SecondMemberClassNum, grp.CreatedAt.UTC(), grp.UpdatedAt.UTC())
	if err != nil {
		return group.Group{}, errors.Wrap(err, "inserting group")
	}
	return repo.GetGroup(ctx, grp.ID, ex)
}

func (repo groupRepository) GetGroup(ctx context.Context, id string, exec ...core.DBExecutor) (group.Group, error) {
	ex := repo.getExec(exec)
	var row groupRow
	err := sqlx.GetContext(ctx, ex, &row, ex.Rebind(`SELECT `+groupColumns+` FROM project_groups WHERE id = ?`), id)
	if err != nil {
		return group.Group{}, trapNoRowsErr(err, group.ErrNotFound, "getting group")
	}
	return row.toModel(), nil
}

func (repo groupRepository) QueryGroupsByLeader(ctx context.Context, leaderID string, exec ...core.DBExecutor) ([]group.Group, error) {
	ex := repo.getExec(exec)
	var rows []groupRow
	err := sqlx.SelectContext(ctx, ex, &rows, ex.Rebind(
		`SELECT `+groupColumns+` FROM project_groups WHERE team_leader_id = ? ORDER BY created_at DESC`), leaderID)
	if err != nil {
		return nil, errors.Wrap(err, "querying groups")
	}
	groups := make([]group.Group, 0, len(rows))
	for _, r := range rows {
		groups = append(groups, r.toModel())
	}
	return groups, nil
}

func (repo groupRepository) SetSecondMember(
	ctx context.Context,
	id string,
	member group.SecondMember,
	at time.Time,
	exec ...core.DBExecutor,
) (bool, error) {
	ex := repo.getExec(exec)
	res, err := ex.ExecContext(ctx, ex.Rebind(
		`UPDATE project_groups
		SET second_member_name = ?, second_member_email = ?, second_member_phone = ?,
			second_member_school = ?, second_member_class_num = ?, updated_at = ?
		WHERE id = ? AND (second_member_name IS NULL OR second_member_name = '')`),
		member.Name,
		null.NewString(member.Email, member.Email != ""),
		null.NewString(member.Phone, member.Phone != ""),
		null.NewString(member.School, member.School != ""),
		null.NewInt(member.ClassNum, member.ClassNum > 0),
		at.UTC(),
		id)
	if err != nil {
		return false, errors.Wrap(err, "updating group second member")
	}
	n, err := affectedRows(res, "updating group second member")
	return n > 0, err
}

func (repo groupRepository) DeleteGroup(ctx context.Context, id string, exec ...core.DBExecutor) error {
	ex := repo.getExec(exec)
	_, err := ex.ExecContext(ctx, ex.Rebind(`DELETE FROM project_groups WHERE id = ?`), id)
	return errors.Wrap(err, "deleting group")
}
