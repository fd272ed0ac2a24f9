package tiktok

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"
)

const (
	sourceFileUpload  = "FILE_UPLOAD"
	PrivacySelfOnly   = "SELF_ONLY"
	singleChunkCount  = 1
	maxErrorBodyBytes = 512
)

type InitRequest struct {
	Title        string
	PrivacyLevel string
	VideoSize    int64
}

// Session is the server-assigned handle for one publish attempt. It is
// never persisted.
type Session struct {
	PublishID string `json:"publish_id"`
	UploadURL string `json:"upload_url"`
}

type postInfo struct {
	Title          string `json:"title"`
	PrivacyLevel   string `json:"privacy_level"`
	DisableDuet    bool   `json:"disable_duet"`
	DisableComment bool   `json:"disable_comment"`
	DisableStitch  bool   `json:"disable_stitch"`
}

type sourceInfo struct {
	Source          string `json:"source"`
	VideoSize       int64  `json:"video_size"`
	ChunkSize       int64  `json:"chunk_size"`
	TotalChunkCount int    `json:"total_chunk_count"`
}

type initBody struct {
	PostInfo   postInfo   `json:"post_info"`
	SourceInfo sourceInfo `json:"source_info"`
}

type initResponse struct {
	Data Session `json:"data"`
}

// InitUpload opens an upload session declaring the whole file as one chunk.
func (c *Client) InitUpload(ctx context.Context, accessToken string, req InitRequest) (*Session, error) {
	privacy := req.PrivacyLevel
	if privacy == "" {
		privacy = PrivacySelfOnly
	}

	payload := initBody{
		PostInfo: postInfo{
			Title:        req.Title,
			PrivacyLevel: privacy,
		},
		SourceInfo: sourceInfo{
			Source:          sourceFileUpload,
			VideoSize:       req.VideoSize,
			ChunkSize:       req.VideoSize,
			TotalChunkCount: singleChunkCount,
		},
	}

	status, body, err := c.postJSON(ctx, c.http, initPath, accessToken, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInit, err)
	}
	if err := checkResponse("init upload", ErrInit, status, body); err != nil {
		return nil, err
	}

	var resp initResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %v", ErrInit, err)
	}
	if resp.Data.PublishID == "" || resp.Data.UploadURL == "" {
		return nil, fmt.Errorf("%w: response missing publish_id or upload_url", ErrInit)
	}

	return &resp.Data, nil
}

// UploadVideo PUTs the whole file to the session's upload URL. The upload
// URL is pre-authorized, so no bearer token is sent.
func (c *Client) UploadVideo(ctx context.Context, uploadURL string, video io.Reader, size int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, video)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransfer, err)
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", videoContentType)
	if size > 0 {
		req.Header.Set("Content-Range", fmt.Sprintf("bytes 0-%d/%d", size-1, size))
	}

	status, body, err := do(c.http, req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransfer, err)
	}
	if status < 200 || status >= 300 {
		return &APIError{
			Op:         "upload video",
			StatusCode: status,
			Message:    truncate(string(body), maxErrorBodyBytes),
			Err:        ErrTransfer,
		}
	}

	return nil
}

// FetchStatus returns the opaque status payload for publishID: the response's
// "data" object, or the whole body when there is none.
func (c *Client) FetchStatus(ctx context.Context, accessToken, publishID string) (json.RawMessage, error) {
	payload := map[string]string{"publish_id": publishID}

	status, body, err := c.postJSON(ctx, c.retry, statusPath, accessToken, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStatusFetch, err)
	}
	if err := checkResponse("fetch status", ErrStatusFetch, status, body); err != nil {
		return nil, err
	}

	if data := gjson.GetBytes(body, "data"); data.Exists() {
		return json.RawMessage(data.Raw), nil
	}
	return json.RawMessage(body), nil
}
