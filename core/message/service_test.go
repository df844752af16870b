package message_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/studylab/core"
	"github.com/trezcool/studylab/core/message"
	testutil "github.com/trezcool/studylab/tests"
)

func TestService_Visibility(t *testing.T) {
	app := testutil.NewApp(t)
	ctx := context.Background()
	admin := testutil.CreateUser(t, app.UserRepo, "Admin", "+243810000000", "admin@test.cd", "", true, true)
	alice := testutil.CreateUser(t, app.UserRepo, "Alice", "+243810000001", "alice@test.cd", "", false, true)
	bob := testutil.CreateUser(t, app.UserRepo, "Bob", "+243810000002", "", "", false, true)

	ann, err := app.Messages.CreateAnnouncement(ctx, admin.ID, message.NewAnnouncement{Title: "Welcome", Content: "Hello all"})
	require.NoError(t, err)
	direct, err := app.Messages.CreateDirect(ctx, admin.ID, message.NewDirect{RecipientID: alice.ID, Title: "Hi", Content: "Hi Alice"})
	require.NoError(t, err)
	sys, err := app.Messages.CreateSystem(ctx, bob.ID, "Done", "Well done")
	require.NoError(t, err)
	assert.False(t, sys.SenderID.Valid)

	ids := func(res message.ListResult) []string {
		out := make([]string, 0, len(res.Data))
		for _, m := range res.Data {
			out = append(out, m.ID)
		}
		return out
	}

	aliceMsgs, err := app.Messages.ListForUser(ctx, alice.ID, core.Page{})
	require.NoError(t, err)
	assert.Equal(t, []string{direct.ID, ann.ID}, ids(aliceMsgs))
	assert.Equal(t, 2, aliceMsgs.Total)

	bobMsgs, err := app.Messages.ListForUser(ctx, bob.ID, core.Page{})
	require.NoError(t, err)
	assert.Equal(t, []string{sys.ID, ann.ID}, ids(bobMsgs))

	for _, usr := range []string{alice.ID, bob.ID} {
		n, err := app.Messages.UnreadCount(ctx, usr)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	}

	// bob may not read alice's direct message
	_, err = app.Messages.MarkAsRead(ctx, direct.ID, bob.ID)
	assert.True(t, core.IsAccessDenied(err), "got %v", err)

	_, err = app.Messages.MarkAsRead(ctx, "nope", bob.ID)
	assert.True(t, core.IsNotFound(err), "got %v", err)
}

func TestService_MarkAsRead(t *testing.T) {
	app := testutil.NewApp(t)
	ctx := context.Background()
	admin := testutil.CreateUser(t, app.UserRepo, "Admin", "+243810000000", "admin@test.cd", "", true, true)
	alice := testutil.CreateUser(t, app.UserRepo, "Alice", "+243810000001", "alice@test.cd", "", false, true)
	bob := testutil.CreateUser(t, app.UserRepo, "Bob", "+243810000002", "bob@test.cd", "", false, true)

	ann, err := app.Messages.CreateAnnouncement(ctx, admin.ID, message.NewAnnouncement{Title: "Welcome", Content: "Hello all"})
	require.NoError(t, err)

	alreadyRead, err := app.Messages.MarkAsRead(ctx, ann.ID, alice.ID)
	require.NoError(t, err)
	assert.False(t, alreadyRead)
	alreadyRead, err = app.Messages.MarkAsRead(ctx, ann.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, alreadyRead)

	n, err := app.Messages.UnreadCount(ctx, alice.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = app.Messages.UnreadCount(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "reads are per user")

	msgs, err := app.Messages.ListForUser(ctx, alice.ID, core.Page{})
	require.NoError(t, err)
	require.Len(t, msgs.Data, 1)
	assert.True(t, msgs.Data[0].IsRead)
	assert.True(t, msgs.Data[0].ReadAt.Valid)

	t.Run("concurrent", func(t *testing.T) {
		const workers = 10
		var (
			wg    sync.WaitGroup
			mu    sync.Mutex
			fresh int
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				alreadyRead, err := app.Messages.MarkAsRead(ctx, ann.ID, bob.ID)
				assert.NoError(t, err)
				if err == nil && !alreadyRead {
					mu.Lock()
					fresh++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, fresh)

		all, err := app.Messages.ListAll(ctx, message.QueryFilter{}, core.Page{})
		require.NoError(t, err)
		require.Len(t, all.Data, 1)
		assert.Equal(t, 2, all.Data[0].ReadCount)
	})
}

func TestService_Notify(t *testing.T) {
	app := testutil.NewApp(t)
	ctx := context.Background()
	admin := testutil.CreateUser(t, app.UserRepo, "Admin", "+243810000000", "admin@test.cd", "", true, true)
	alice := testutil.CreateUser(t, app.UserRepo, "Alice", "+243810000001", "alice@test.cd", "", false, true)
	noEmail := testutil.CreateUser(t, app.UserRepo, "Bob", "+243810000002", "", "", false, true)

	_, err := app.Messages.CreateDirect(ctx, admin.ID, message.NewDirect{RecipientID: alice.ID, Title: "Hi", Content: "<b>Hi</b> Alice<script>x()</script>"})
	require.NoError(t, err)
	_, err = app.Messages.CreateDirect(ctx, admin.ID, message.NewDirect{RecipientID: noEmail.ID, Title: "Hi", Content: "Hi Bob"})
	require.NoError(t, err)
	_, err = app.Messages.CreateAnnouncement(ctx, admin.ID, message.NewAnnouncement{Title: "All", Content: "Hello"})
	require.NoError(t, err)

	sent := app.Mail.Sent()
	require.Len(t, sent, 1, "only personal messages to users with an email are notified")
	assert.Equal(t, "alice@test.cd", sent[0].To[0].Address)
	assert.Equal(t, "Hi", sent[0].Subject)
	assert.NotContains(t, sent[0].TemplateData.(map[string]string)["Content"], "<script>")

	_, err = app.Messages.CreateDirect(ctx, admin.ID, message.NewDirect{RecipientID: "nope", Title: "Hi", Content: "?"})
	assert.ErrorIs(t, err, message.ErrRecipientNotFound)
}

func TestService_ListAll(t *testing.T) {
	app := testutil.NewApp(t)
	ctx := context.Background()
	admin := testutil.CreateUser(t, app.UserRepo, "Admin", "+243810000000", "admin@test.cd", "", true, true)
	alice := testutil.CreateUser(t, app.UserRepo, "Alice", "+243810000001", "alice@test.cd", "", false, true)

	for i := 0; i < 3; i++ {
		_, err := app.Messages.CreateAnnouncement(ctx, admin.ID, message.NewAnnouncement{Title: "A", Content: "a"})
		require.NoError(t, err)
	}
	_, err := app.Messages.CreateSystem(ctx, alice.ID, "S", "s")
	require.NoError(t, err)

	all, err := app.Messages.ListAll(ctx, message.QueryFilter{}, core.Page{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, all.Data, 2)
	assert.Equal(t, 4, all.Total)
	assert.Equal(t, 2, all.TotalPages)

	sys, err := app.Messages.ListAll(ctx, message.QueryFilter{Type: message.TypeSystem}, core.Page{})
	require.NoError(t, err)
	require.Len(t, sys.Data, 1)
	assert.Equal(t, message.TypeSystem, sys.Data[0].Type)
}

func TestQueryFilter_Validate(t *testing.T) {
	app := testutil.NewApp(t)

	assert.NoError(t, app.Validate.Struct(message.QueryFilter{}))
	assert.NoError(t, app.Validate.Struct(message.QueryFilter{Type: message.TypeDirect}))
	assert.Error(t, app.Validate.Struct(message.QueryFilter{Type: "SPAM"}))
}
