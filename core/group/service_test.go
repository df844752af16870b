package group_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/studylab/core"
	"github.com/trezcool/studylab/core/group"
	testutil "github.com/trezcool/studylab/tests"
)

func TestService_AddSecondMember(t *testing.T) {
	app := testutil.NewApp(t)
	ctx := context.Background()
	leader := testutil.CreateUser(t, app.UserRepo, "Leader", "+243810000001", "leader@test.cd", "", false, true)

	grp, err := app.Groups.Create(ctx, leader.ID, nil)
	require.NoError(t, err)
	assert.False(t, grp.HasSecondMember())

	grp, err = app.Groups.AddSecondMember(ctx, grp.ID, group.SecondMember{Name: "Friend", Email: "friend@test.cd", ClassNum: 7})
	require.NoError(t, err)
	assert.True(t, grp.HasSecondMember())
	assert.Equal(t, "Friend", grp.SecondMemberName.String)
	assert.Equal(t, 7, grp.SecondMemberClassNum.Int)

	// the slot is taken: conflict, and the group is untouched
	_, err = app.Groups.AddSecondMember(ctx, grp.ID, group.SecondMember{Name: "Intruder"})
	assert.True(t, core.IsConflict(err), "got %v", err)
	got, err := app.Groups.Get(ctx, grp.ID)
	require.NoError(t, err)
	assert.Equal(t, "Friend", got.SecondMemberName.String)

	_, err = app.Groups.AddSecondMember(ctx, "nope", group.SecondMember{Name: "Friend"})
	assert.True(t, core.IsNotFound(err), "got %v", err)
}

func TestService_AddSecondMember_Concurrent(t *testing.T) {
	app := testutil.NewApp(t)
	ctx := context.Background()
	leader := testutil.CreateUser(t, app.UserRepo, "Leader", "+243810000001", "leader@test.cd", "", false, true)
	grp, err := app.Groups.Create(ctx, leader.ID, nil)
	require.NoError(t, err)

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
		refused int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("Friend %d", i)
			_, err := app.Groups.AddSecondMember(ctx, grp.ID, group.SecondMember{Name: name})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, name)
			case core.IsConflict(err):
				refused++
			default:
				t.Errorf("AddSecondMember() unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	require.Len(t, winners, 1)
	assert.Equal(t, workers-1, refused)
	got, err := app.Groups.Get(ctx, grp.ID)
	require.NoError(t, err)
	assert.Equal(t, winners[0], got.SecondMemberName.String)
}

func TestService_Create(t *testing.T) {
	app := testutil.NewApp(t)
	ctx := context.Background()
	leader := testutil.CreateUser(t, app.UserRepo, "Leader", "+243810000001", "leader@test.cd", "", false, true)

	grp, err := app.Groups.Create(ctx, leader.ID, &group.SecondMember{Name: "Friend", Phone: "+243810000009"})
	require.NoError(t, err)
	has, err := app.Groups.HasSecondMember(ctx, grp.ID)
	require.NoError(t, err)
	assert.True(t, has)
	assert.False(t, grp.SecondMemberEmail.Valid)

	_, err = app.Groups.Create(ctx, leader.ID, nil)
	require.NoError(t, err)
	groups, err := app.Groups.ListByLeader(ctx, leader.ID)
	require.NoError(t, err)
	assert.Len(t, groups, 2)
}

func TestSecondMember_Validate(t *testing.T) {
	app := testutil.NewApp(t)

	tests := []struct {
		name    string
		member  group.SecondMember
		wantErr bool
	}{
		{name: "name only", member: group.SecondMember{Name: " Friend "}},
		{name: "full", member: group.SecondMember{Name: "Friend", Email: "F@test.cd", Phone: "+243810000009", School: "S", ClassNum: 12}},
		{name: "no name", member: group.SecondMember{Email: "f@test.cd"}, wantErr: true},
		{name: "bad email", member: group.SecondMember{Name: "Friend", Email: "nope"}, wantErr: true},
		{name: "bad phone", member: group.SecondMember{Name: "Friend", Phone: "0810000009"}, wantErr: true},
		{name: "bad class", member: group.SecondMember{Name: "Friend", ClassNum: 13}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.member.Validate(app.Validate)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
