package publish

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Result
	}{
		{name: "publishComplete", payload: `{"status":"PUBLISH_COMPLETE","publicaly_available_post_id":[1]}`, want: Succeeded},
		{name: "sentToInbox", payload: `{"status":"SEND_TO_USER_INBOX"}`, want: Succeeded},
		{name: "structuredFailed", payload: `{"status":"FAILED","fail_reason":"duration_check_failed"}`, want: Failed},
		{name: "processingUpload", payload: `{"status":"PROCESSING_UPLOAD","uploaded_bytes":100}`, want: Pending},
		{name: "processingIgnoresFailKey", payload: `{"status":"PROCESSING_DOWNLOAD","fail_reason":""}`, want: Pending},
		{name: "structuredFailedBeatsPublishedText", payload: `{"status":"FAILED","note":"published"}`, want: Failed},
		{name: "structuredProcessingBeatsPublishedText", payload: `{"status":"PROCESSING_UPLOAD","note":"published"}`, want: Pending},
		{name: "lowercaseStructured", payload: `{"status":"publish_complete"}`, want: Succeeded},
		{name: "fallbackPublished", payload: `{"state":"PUBLISH_STATUS: PUBLISHED"}`, want: Succeeded},
		{name: "fallbackUnknownStatusValue", payload: `{"status":"PUBLISH_STATUS: PUBLISHED"}`, want: Succeeded},
		{name: "fallbackSuccess", payload: `"Success"`, want: Succeeded},
		{name: "fallbackPublishedBeatsError", payload: `{"error":"none","note":"published"}`, want: Succeeded},
		{name: "fallbackPublishedWithOtherFields", payload: `{"a":1,"b":{"c":"Published"},"d":[true]}`, want: Succeeded},
		{name: "fallbackFail", payload: `{"state":"upload_failed"}`, want: Failed},
		{name: "fallbackError", payload: `{"state":"ERROR"}`, want: Failed},
		{name: "knownMisclassification", payload: `{"state":"errorcode_none"}`, want: Failed},
		{name: "fallbackProcessing", payload: `"PUBLISH_STATUS: PROCESSING"`, want: Pending},
		{name: "empty", payload: `{}`, want: Pending},
		{name: "nonStringStatus", payload: `{"status":3}`, want: Pending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify([]byte(tt.payload)))
		})
	}
}

func TestClassifyIsStable(t *testing.T) {
	payload := []byte(`{"x":"PUBLISHED","y":"processing"}`)
	first := Classify(payload)
	for i := 0; i < 3; i++ {
		assert.Equal(t, first, Classify(payload))
	}
	assert.Equal(t, Succeeded, first)
}

func TestResultString(t *testing.T) {
	assert.Equal(t, "succeeded", Succeeded.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "timed_out", TimedOut.String())
	assert.Equal(t, "pending", Pending.String())
	assert.Equal(t, "unknown", Result(42).String())
}
