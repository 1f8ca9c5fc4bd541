// Package httputil provides HTTP handler utilities: the uniform response
// envelope, request parsing, and the shared middleware stack.
package httputil

import (
	"encoding/json"
	"net/http"
	"time"
)

// Response codes carried in the envelope body. Codes below 1000 mirror HTTP
// statuses; codes 1000 and above are application-level and always travel with
// HTTP 200.
const (
	CodeSuccess      = 200
	CodeUnauthorized = 401
	CodeForbidden    = 403
	CodeParamError   = 1001
	CodeNotFound     = 1004
	CodeSystemError  = 1005
	CodeRateLimited  = 1006
	CodeBizError     = 2001
	CodeDuplicate    = 3001
	CodeDAOError     = 3002
)

// Result is the envelope wrapping every API response body
type Result struct {
	Code      int         `json:"code"`
	Msg       string      `json:"msg"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
	Path      string      `json:"path,omitempty"`
	Page      *Page       `json:"page,omitempty"`
}

// Page carries pagination metadata for list responses
type Page struct {
	PageNum  int   `json:"pageNum"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

func writeResult(w http.ResponseWriter, status int, res Result) {
	res.Timestamp = time.Now().UnixMilli()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(res)
}

// WriteSuccess writes a 200 envelope with data
func WriteSuccess(w http.ResponseWriter, data interface{}) {
	writeResult(w, http.StatusOK, Result{Code: CodeSuccess, Msg: "success", Data: data})
}

// WriteSuccessMessage writes a 200 envelope with a custom message and data
func WriteSuccessMessage(w http.ResponseWriter, msg string, data interface{}) {
	writeResult(w, http.StatusOK, Result{Code: CodeSuccess, Msg: msg, Data: data})
}

// WritePaged writes a 200 envelope with list data and pagination metadata
func WritePaged(w http.ResponseWriter, data interface{}, page Page) {
	writeResult(w, http.StatusOK, Result{Code: CodeSuccess, Msg: "success", Data: data, Page: &page})
}

// WriteCode writes an envelope with an application code and message. The HTTP
// status stays 200 for application-level codes so clients key off the body.
func WriteCode(w http.ResponseWriter, r *http.Request, code int, msg string) {
	status := http.StatusOK
	switch code {
	case CodeUnauthorized:
		status = http.StatusUnauthorized
	case CodeForbidden:
		status = http.StatusForbidden
	}
	writeResult(w, status, Result{Code: code, Msg: msg, Path: r.URL.Path})
}

// WriteParamError writes a 1001 parameter error
func WriteParamError(w http.ResponseWriter, r *http.Request, msg string) {
	WriteCode(w, r, CodeParamError, msg)
}

// WriteNotFound writes a 1004 not found error
func WriteNotFound(w http.ResponseWriter, r *http.Request, msg string) {
	WriteCode(w, r, CodeNotFound, msg)
}

// WriteSystemError writes a 1005 system error with a generic message,
// never leaking the underlying error to the client
func WriteSystemError(w http.ResponseWriter, r *http.Request) {
	WriteCode(w, r, CodeSystemError, "system error, please try again later")
}

// WriteRateLimited writes a 1006 rate limit rejection
func WriteRateLimited(w http.ResponseWriter, r *http.Request, msg string) {
	WriteCode(w, r, CodeRateLimited, msg)
}

// WriteBizError writes a 2001 business rule rejection
func WriteBizError(w http.ResponseWriter, r *http.Request, msg string) {
	WriteCode(w, r, CodeBizError, msg)
}

// WriteUnauthorized writes a 401 envelope
func WriteUnauthorized(w http.ResponseWriter, r *http.Request, msg string) {
	WriteCode(w, r, CodeUnauthorized, msg)
}

// WriteForbidden writes a 403 envelope
func WriteForbidden(w http.ResponseWriter, r *http.Request, msg string) {
	WriteCode(w, r, CodeForbidden, msg)
}
