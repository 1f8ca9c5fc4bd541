package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) Result {
	t.Helper()
	var res Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("Failed to decode response body: %v", err)
	}
	return res
}

func TestWriteSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccess(rec, map[string]string{"token": "abc"})

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	res := decodeResult(t, rec)
	if res.Code != CodeSuccess {
		t.Errorf("code = %d, want %d", res.Code, CodeSuccess)
	}
	if res.Msg != "success" {
		t.Errorf("msg = %q", res.Msg)
	}
	if res.Timestamp == 0 {
		t.Error("timestamp should be set")
	}
}

func TestWriteCode_HTTPStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		code       int
		wantStatus int
	}{
		{"unauthorized maps to 401", CodeUnauthorized, http.StatusUnauthorized},
		{"forbidden maps to 403", CodeForbidden, http.StatusForbidden},
		{"param error stays 200", CodeParamError, http.StatusOK},
		{"biz error stays 200", CodeBizError, http.StatusOK},
		{"rate limit stays 200", CodeRateLimited, http.StatusOK},
		{"system error stays 200", CodeSystemError, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest("POST", "/api/login", nil)
			WriteCode(rec, req, tt.code, "boom")

			if rec.Code != tt.wantStatus {
				t.Errorf("HTTP status = %d, want %d", rec.Code, tt.wantStatus)
			}
			res := decodeResult(t, rec)
			if res.Code != tt.code {
				t.Errorf("body code = %d, want %d", res.Code, tt.code)
			}
			if res.Path != "/api/login" {
				t.Errorf("path = %q", res.Path)
			}
		})
	}
}

func TestWriteSystemError_GenericMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/system/online-users", nil)
	WriteSystemError(rec, req)

	res := decodeResult(t, rec)
	if res.Code != CodeSystemError {
		t.Errorf("code = %d, want %d", res.Code, CodeSystemError)
	}
	if res.Msg != "system error, please try again later" {
		t.Errorf("msg = %q", res.Msg)
	}
}

func TestWritePaged(t *testing.T) {
	rec := httptest.NewRecorder()
	WritePaged(rec, []string{"a", "b"}, Page{PageNum: 2, PageSize: 10, Total: 42})

	res := decodeResult(t, rec)
	if res.Page == nil {
		t.Fatal("page metadata missing")
	}
	if res.Page.Total != 42 || res.Page.PageNum != 2 {
		t.Errorf("page = %+v", res.Page)
	}
}
