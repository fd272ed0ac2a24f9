package tiktok

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// Sentinel errors, one per provider call. Use errors.Is to classify.
var (
	ErrAuthExchange = errors.New("tiktok: token exchange failed")
	ErrAuthRefresh  = errors.New("tiktok: token refresh failed")
	ErrInit         = errors.New("tiktok: upload init failed")
	ErrTransfer     = errors.New("tiktok: video transfer failed")
	ErrStatusFetch  = errors.New("tiktok: status fetch failed")
)

// APIError carries what the provider told us about a failed call.
type APIError struct {
	Op         string
	StatusCode int
	Code       string
	Message    string
	LogID      string
	Err        error
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("tiktok: %s: HTTP %d", e.Op, e.StatusCode)
	if e.Code != "" {
		msg += ": " + e.Code
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.LogID != "" {
		msg += " (log_id: " + e.LogID + ")"
	}
	return msg
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// providerError inspects a response body for the provider's error field.
// The token endpoint reports {"error": "invalid_grant", "error_description": ...};
// the content API always sends {"error": {"code": "ok", ...}} and only a
// non-"ok" code is a failure.
func providerError(body []byte) (code, message, logID string, failed bool) {
	errField := gjson.GetBytes(body, "error")
	logID = gjson.GetBytes(body, "log_id").String()

	switch {
	case !errField.Exists():
		return "", "", logID, false
	case errField.Type == gjson.String:
		if errField.String() == "" {
			return "", "", logID, false
		}
		return errField.String(), gjson.GetBytes(body, "error_description").String(), logID, true
	case errField.IsObject():
		code = errField.Get("code").String()
		if id := errField.Get("log_id").String(); id != "" {
			logID = id
		}
		if code == "" || code == "ok" {
			return "", "", logID, false
		}
		return code, errField.Get("message").String(), logID, true
	default:
		return errField.Raw, "", logID, errField.Bool()
	}
}

func checkResponse(op string, sentinel error, statusCode int, body []byte) error {
	code, message, logID, failed := providerError(body)
	if statusCode >= 200 && statusCode < 300 && !failed {
		return nil
	}

	if message == "" && code == "" {
		message = truncate(string(body), 512)
	}

	return &APIError{
		Op:         op,
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
		LogID:      logID,
		Err:        sentinel,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
