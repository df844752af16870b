package core

import (
	"context"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPage_Clean(t *testing.T) {
	tests := []struct {
		name string
		page Page
		want Page
	}{
		{name: "zero", page: Page{}, want: Page{Page: 1, PageSize: DefaultPageSize}},
		{name: "negative", page: Page{Page: -2, PageSize: -1}, want: Page{Page: 1, PageSize: DefaultPageSize}},
		{name: "too big", page: Page{Page: 3, PageSize: 1000}, want: Page{Page: 3, PageSize: MaxPageSize}},
		{name: "valid", page: Page{Page: 2, PageSize: 5}, want: Page{Page: 2, PageSize: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.page.Clean()
			assert.Equal(t, tt.want, tt.page)
		})
	}

	p := Page{Page: 3, PageSize: 10}
	assert.Equal(t, uint64(20), p.Offset())
	assert.Equal(t, uint64(10), p.Limit())
}

func TestNewPagination(t *testing.T) {
	assert.Equal(t, Pagination{Page: 1, PageSize: 10, Total: 0, TotalPages: 0}, NewPagination(Page{Page: 1, PageSize: 10}, 0))
	assert.Equal(t, Pagination{Page: 2, PageSize: 10, Total: 21, TotalPages: 3}, NewPagination(Page{Page: 2, PageSize: 10}, 21))
}

func TestRunInTx(t *testing.T) {
	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	_, err = db.ExecContext(ctx, "CREATE TABLE items (name TEXT NOT NULL)")
	require.NoError(t, err)

	count := func() (n int) {
		require.NoError(t, db.GetContext(ctx, &n, "SELECT COUNT(*) FROM items"))
		return n
	}
	insert := func(ex DBExecutor, name string) error {
		_, err := ex.ExecContext(ctx, "INSERT INTO items (name) VALUES (?)", name)
		return err
	}

	errBoom := errors.New("boom")
	err = RunInTx(ctx, db, func(tx DBExecutor) error {
		if err := insert(tx, "a"); err != nil {
			return err
		}
		return errBoom
	})
	assert.Equal(t, errBoom, err)
	assert.Equal(t, 0, count(), "rolled back")

	err = RunInTx(ctx, db, func(tx DBExecutor) error {
		if err := insert(tx, "a"); err != nil {
			return err
		}
		// a failing savepoint keeps the outer transaction usable
		spErr := Savepoint(ctx, tx, "sp_b", func() error {
			if err := insert(tx, "b"); err != nil {
				return err
			}
			return errBoom
		})
		assert.Equal(t, errBoom, spErr)
		return insert(tx, "c")
	})
	require.NoError(t, err)

	var names []string
	require.NoError(t, db.SelectContext(ctx, &names, "SELECT name FROM items ORDER BY name"))
	assert.Equal(t, []string{"a", "c"}, names)

	assert.Panics(t, func() {
		_ = RunInTx(ctx, db, func(tx DBExecutor) error {
			_ = insert(tx, "d")
			panic("oops")
		})
	})
	assert.Equal(t, 2, count())
}
