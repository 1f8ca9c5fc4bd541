package session

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stewardhq/steward/pkg/observability"
)

func setupHandlersTest(t *testing.T) (*Handlers, sqlmock.Sqlmock, func()) {
	t.Helper()
	reg, mock, _, _, cleanup := setupRegistryTest(t, fakeTokenReader{})
	logger := observability.NewLogger(observability.ErrorLevel, nil)
	return NewHandlers(reg, logger), mock, cleanup
}

func TestHandlers_List(t *testing.T) {
	h, mock, cleanup := setupHandlersTest(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM sessions").
		WithArgs("%%", "%%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT id, user_id, username").
		WithArgs("%%", "%%", 10, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "username", "nickname", "ip", "location", "browser", "os", "status", "start_time", "last_time", "expire_time"}).
			AddRow("abc123", 1, "admin", "Admin", "10.0.0.1", "Internal Network", "Chrome", "Linux", StatusOnline, now, now, now.Add(time.Hour)))

	req := httptest.NewRequest("GET", "/api/system/online-users", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)

	require.Equal(t, 200, rec.Code)
	var res struct {
		Code int `json:"code"`
		Data []struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 200, res.Code)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "admin", res.Data[0].Username)
}

func TestHandlers_Kickout(t *testing.T) {
	h, mock, cleanup := setupHandlersTest(t)
	defer cleanup()

	mock.ExpectExec("DELETE FROM sessions WHERE id").
		WithArgs("abc123").
		WillReturnResult(sqlmock.NewResult(0, 1))

	router := mux.NewRouter()
	router.HandleFunc("/api/system/online-users/{sessionId}", h.Kickout).Methods("DELETE")

	req := httptest.NewRequest("DELETE", "/api/system/online-users/abc123", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	var res struct {
		Code int `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 200, res.Code)
}

func TestHandlers_BatchKickout_EmptyBody(t *testing.T) {
	h, _, cleanup := setupHandlersTest(t)
	defer cleanup()

	req := httptest.NewRequest("POST", "/api/system/online-users/kickout", strings.NewReader(`{"sessionIds":[]}`))
	rec := httptest.NewRecorder()
	h.BatchKickout(rec, req)

	var res struct {
		Code int `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 1001, res.Code)
}

func TestHandlers_BatchKickout(t *testing.T) {
	h, mock, cleanup := setupHandlersTest(t)
	defer cleanup()

	mock.ExpectExec("DELETE FROM sessions WHERE id").
		WithArgs("s1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM sessions WHERE id").
		WithArgs("s2").
		WillReturnResult(sqlmock.NewResult(0, 1))

	req := httptest.NewRequest("POST", "/api/system/online-users/kickout", strings.NewReader(`{"sessionIds":["s1","s2"]}`))
	rec := httptest.NewRecorder()
	h.BatchKickout(rec, req)

	var res struct {
		Code int            `json:"code"`
		Data map[string]int `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 200, res.Code)
	assert.Equal(t, 2, res.Data["kicked"])
}
