package replication

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/getlantern/zenodb/common"
	"github.com/getlantern/zenodb/errkind"
)

// Uploader sends one batch to a replica and reports the response status.
// Production code wires this to net/http; tests substitute a fake.
type Uploader interface {
	Upload(ctx context.Context, addr string, body []byte) (statusCode int, respBody []byte, err error)
}

// httpUploader is the production Uploader: a synchronous POST to
// http://{addr}/tsdb/replicate with the fixed headers and content type
// the replication protocol mandates.
type httpUploader struct {
	client  *http.Client
	timeout time.Duration
}

// NewHTTPUploader builds an Uploader backed by net/http, using timeout as
// the per-request transport-level timeout, configured externally rather
// than hardcoded.
func NewHTTPUploader(timeout time.Duration) Uploader {
	return &httpUploader{
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

func (u *httpUploader) Upload(ctx context.Context, addr string, body []byte) (int, []byte, error) {
	url := fmt.Sprintf("http://%s/tsdb/replicate", addr)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Host", addr)
	req.Header.Set("Content-Type", "application/fnord-msg")

	resp, err := u.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, respBody, nil
}

// encodeBatch serializes a RecordEnvelopeList for the wire. JSON is used
// rather than a protobuf/msgpack codec for this kind of internal envelope
// list — see DESIGN.md.
func encodeBatch(batch *RecordEnvelopeList) ([]byte, error) {
	return json.Marshal(batch)
}

// uploadBatchTo uploads batch to replica and raises a Runtime error
// unless the response is exactly 201 Created.
func uploadBatchTo(ctx context.Context, uploader Uploader, replica common.ReplicaRef, batch *RecordEnvelopeList) error {
	body, err := encodeBatch(batch)
	if err != nil {
		return errkind.Wrap(errkind.Runtime, err)
	}

	status, respBody, err := uploader.Upload(ctx, replica.Addr, body)
	if err != nil {
		return errkind.RuntimeErrorf("replicate to %s: %v", replica.Addr, err)
	}
	if status != http.StatusCreated {
		return errkind.RuntimeErrorf("received non-201 response from %s: %d: %s", replica.Addr, status, string(respBody))
	}
	return nil
}
