package group

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/studylab/core"
)

var (
	// errors
	ErrNotFound        = core.NewNotFoundError("group not found")
	ErrHasSecondMember = core.NewConflictError("this group already has a second member")
)

type (
	Repository interface {
		CreateGroup(ctx context.Context, grp Group, exec ...core.DBExecutor) (Group, error)
		GetGroup(ctx context.Context, id string, exec ...core.DBExecutor) (Group, error)
		QueryGroupsByLeader(ctx context.Context, leaderID string, exec ...core.DBExecutor) ([]Group, error)
		// SetSecondMember sets the second member fields only if the group has no second member yet.
		// It reports whether a row was updated.
		SetSecondMember(ctx context.Context, id string, member SecondMember, at time.Time, exec ...core.DBExecutor) (bool, error)
		// DeleteGroup succeeds when the group is already gone.
		DeleteGroup(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create creates a Group led by leaderID, optionally with its second member.
func (svc *Service) Create(ctx context.Context, leaderID string, member *SecondMember, exec ...core.DBExecutor) (Group, error) {
	now := time.Now().UTC()
	grp := Group{
		TeamLeaderID: leaderID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if member != nil {
		grp.SecondMemberName = nullString(member.Name)
		grp.SecondMemberEmail = nullString(member.Email)
		grp.SecondMemberPhone = nullString(member.Phone)
		grp.SecondMemberSchool = nullString(member.School)
		grp.SecondMemberClassNum = null.NewInt(member.ClassNum, member.ClassNum > 0)
	}
	return svc.repo.CreateGroup(ctx, grp, exec...)
}

func (svc *Service) Get(ctx context.Context, id string) (Group, error) {
	return svc.repo.GetGroup(ctx, id)
}

func (svc *Service) ListByLeader(ctx context.Context, leaderID string) ([]Group, error) {
	groups, err := svc.repo.QueryGroupsByLeader(ctx, leaderID)
	if err != nil {
		return nil, err
	}
	if groups == nil {
		groups = []Group{}
	}
	return groups, nil
}

// AddSecondMember fills the group's second member slot.
// It fails with ErrHasSecondMember, leaving the group untouched, when the slot is already taken.
func (svc *Service) AddSecondMember(ctx context.Context, id string, member SecondMember) (Group, error) {
	updated, err := svc.repo.SetSecondMember(ctx, id, member, time.Now().UTC())
	if err != nil {
		return Group{}, errors.Wrap(err, "setting second member")
	}
	if !updated {
		if _, err = svc.repo.GetGroup(ctx, id); err != nil {
			return Group{}, err
		}
		return Group{}, ErrHasSecondMember
	}
	return svc.repo.GetGroup(ctx, id)
}

func (svc *Service) HasSecondMember(ctx context.Context, id string) (bool, error) {
	grp, err := svc.repo.GetGroup(ctx, id)
	if err != nil {
		return false, err
	}
	return grp.HasSecondMember(), nil
}

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}
