package loginlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stewardhq/steward/pkg/observability"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock
}

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func TestStore_Insert(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	store := NewStore(db)

	uid := int64(1)
	mock.ExpectQuery("INSERT INTO login_logs").
		WithArgs(&uid, "admin", StatusSuccess, "login success", "10.0.0.1", "curl/8.0", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))

	e := &Entry{UserID: &uid, Username: "admin", Status: StatusSuccess, Msg: "login success", IP: "10.0.0.1", UserAgent: "curl/8.0"}
	require.NoError(t, store.Insert(context.Background(), e))
	assert.Equal(t, int64(5), e.ID)
	assert.False(t, e.LoginTime.IsZero())
}

func TestStore_Insert_NilUserID(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	store := NewStore(db)

	mock.ExpectQuery("INSERT INTO login_logs").
		WithArgs(nil, "ghost", StatusFailure, "incorrect username or password", "10.0.0.2", "", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(6))

	e := &Entry{Username: "ghost", Status: StatusFailure, Msg: "incorrect username or password", IP: "10.0.0.2"}
	require.NoError(t, store.Insert(context.Background(), e))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_DeleteOlderThan(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	store := NewStore(db)

	cutoff := time.Now().AddDate(0, 0, -90)
	mock.ExpectExec("DELETE FROM login_logs").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 120))

	n, err := store.DeleteOlderThan(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(120), n)
}

func TestRecorder_WritesAsync(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	store := NewStore(db)

	mock.ExpectQuery("INSERT INTO login_logs").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	rec := NewRecorder(context.Background(), store, testLogger())
	rec.Record(Entry{Username: "admin", Status: StatusSuccess, Msg: "login success", IP: "10.0.0.1"})
	require.NoError(t, rec.Close())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecorder_SwallowsStoreFailure(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	store := NewStore(db)

	mock.ExpectQuery("INSERT INTO login_logs").
		WillReturnError(sql.ErrConnDone)

	rec := NewRecorder(context.Background(), store, testLogger())
	// Must not panic or surface the error
	rec.Record(Entry{Username: "admin", Status: StatusFailure, Msg: "account disabled", IP: "10.0.0.1"})
	require.NoError(t, rec.Close())
}

func TestHandlers_List(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM login_logs").
		WithArgs("%admin%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT id, user_id, username").
		WithArgs("%admin%", 10, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "username", "status", "msg", "ip", "user_agent", "login_time"}).
			AddRow(1, 1, "admin", StatusSuccess, "login success", "10.0.0.1", "curl/8.0", time.Now()))

	h := NewHandlers(NewStore(db), testLogger())

	req := httptest.NewRequest("GET", "/api/system/login-logs?username=admin", nil)
	recw := httptest.NewRecorder()
	h.List(recw, req)

	require.Equal(t, 200, recw.Code)
	var res struct {
		Code int `json:"code"`
		Data []struct {
			Username string `json:"username"`
		} `json:"data"`
		Page struct {
			Total int64 `json:"total"`
		} `json:"page"`
	}
	require.NoError(t, json.Unmarshal(recw.Body.Bytes(), &res))
	assert.Equal(t, 200, res.Code)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "admin", res.Data[0].Username)
	assert.Equal(t, int64(1), res.Page.Total)
}
