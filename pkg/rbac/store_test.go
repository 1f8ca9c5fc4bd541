package rbac

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock
}

func TestStore_PermsByUserID(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	store := NewStore(db)

	mock.ExpectQuery("SELECT DISTINCT rp.perm").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"perm"}).
			AddRow("user:list").
			AddRow("user:edit").
			AddRow("role:list"))

	perms, err := store.PermsByUserID(context.Background(), 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"user:list", "user:edit", "role:list"}, perms)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_PermsByUserID_Empty(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	store := NewStore(db)

	mock.ExpectQuery("SELECT DISTINCT rp.perm").
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"perm"}))

	perms, err := store.PermsByUserID(context.Background(), 2)
	require.NoError(t, err)
	assert.Empty(t, perms)
}

func TestStore_SetRolePerms(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	store := NewStore(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM role_perms").
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO role_perms").
		WithArgs(int64(3), "user:list").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO role_perms").
		WithArgs(int64(3), "user:edit").
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	err := store.SetRolePerms(context.Background(), 3, []Permission{"user:list", "user:edit"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetRole_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	store := NewStore(db)

	mock.ExpectQuery("SELECT id, name, remark").
		WithArgs(int64(9)).
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetRole(context.Background(), 9)
	assert.ErrorIs(t, err, ErrNotFound)
}
