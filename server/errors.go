package server

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/rushteam/tourkit/core"
)

// errorBody 是错误响应：error 为可读消息，code 为机器可读错误代码
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// statusFor 把领域错误代码映射为 HTTP 状态码
func statusFor(code string) int {
	switch code {
	case core.ErrorCodeInvalidRequest:
		return http.StatusBadRequest
	case core.ErrorCodeNotFound:
		return http.StatusNotFound
	case core.ErrorCodeUnavailable:
		return http.StatusServiceUnavailable
	case core.ErrorCodeSnapshotIncompatible:
		return http.StatusConflict
	case core.ErrorCodeNotSupported:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code := core.ErrorCode(err)
	msg := "internal error"
	if de := core.GetDomainError(err); de != nil {
		msg = de.Message
	}
	writeJSON(w, statusFor(code), errorBody{Error: msg, Code: code})
}
