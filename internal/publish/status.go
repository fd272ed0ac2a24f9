package publish

import (
	"bytes"
	"strings"

	"github.com/tidwall/gjson"
)

// Result is the terminal state of one publish attempt.
type Result int

const (
	// Pending is not terminal; polling continues.
	Pending Result = iota
	Succeeded
	Failed
	TimedOut
)

func (r Result) String() string {
	switch r {
	case Pending:
		return "pending"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case TimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

var structuredStatus = map[string]Result{
	"PUBLISH_COMPLETE":    Succeeded,
	"SEND_TO_USER_INBOX":  Succeeded,
	"FAILED":              Failed,
	"PROCESSING_UPLOAD":   Pending,
	"PROCESSING_DOWNLOAD": Pending,
}

var (
	successMarkers = []string{"success", "published"}
	failureMarkers = []string{"fail", "error"}
)

// Classify maps a status payload to a Result. A recognised value in the
// "status" field decides first. Otherwise the serialized payload is searched
// case-insensitively, success markers before failure markers, so a payload
// mentioning "published" is Succeeded whatever other fields it carries.
//
// The substring pass misreads unrelated words (e.g. "errorcode_none" reads
// as Failed); it only runs when the status field is absent or unrecognised.
func Classify(payload []byte) Result {
	if status := gjson.GetBytes(payload, "status"); status.Type == gjson.String {
		if result, ok := structuredStatus[strings.ToUpper(status.String())]; ok {
			return result
		}
	}

	text := bytes.ToLower(payload)
	for _, marker := range successMarkers {
		if bytes.Contains(text, []byte(marker)) {
			return Succeeded
		}
	}
	for _, marker := range failureMarkers {
		if bytes.Contains(text, []byte(marker)) {
			return Failed
		}
	}

	return Pending
}
