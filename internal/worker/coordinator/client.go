// Package coordinator is the render node's HTTP client for the coordinator.
package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"renderfarm/internal/httpkit"
	"renderfarm/internal/pkg/errors"
	"renderfarm/internal/pkg/middleware"
	"renderfarm/internal/scheduler"
)

type HTTPClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// DownloadSource fetches the job's source asset into dst.
func (c *HTTPClient) DownloadSource(ctx context.Context, dst string) error {
	const op = "coordinator.DownloadSource"

	res, err := c.do(ctx, op, http.MethodGet, "/frames", "", nil, "")
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.Wrap(err, op, "create source directory")
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".*.part")
	if err != nil {
		return errors.Wrap(err, op, "create source file")
	}
	defer os.Remove(tmp.Name())

	_, err = io.Copy(tmp, res.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return errors.WrapWithCode(err, errors.CodeUnavailable, op, "download source")
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return errors.Wrap(err, op, "store source")
	}
	return nil
}

// RequestTask asks for up to count frames under a new worker identity.
func (c *HTTPClient) RequestTask(ctx context.Context, count int) (scheduler.Task, error) {
	const op = "coordinator.RequestTask"

	path := "/tasks?count=" + strconv.Itoa(count)
	res, err := c.do(ctx, op, http.MethodPost, path, "", nil, "")
	if err != nil {
		return scheduler.Task{}, err
	}
	defer res.Body.Close()
	return decodeTask(op, res)
}

// Submit uploads a rendered frame. A NoWorkAvailable error means the frame
// was accepted but the pool had nothing left to hand out.
func (c *HTTPClient) Submit(ctx context.Context, workerID scheduler.WorkerID, frame scheduler.FrameID, path string) (scheduler.Task, error) {
	const op = "coordinator.Submit"

	f, err := os.Open(path)
	if err != nil {
		return scheduler.Task{}, errors.Wrap(err, op, "open rendered frame").WithField("frame_id", frame)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("frame", filepath.Base(path))
		if err == nil {
			_, err = io.Copy(part, f)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	q := url.Values{"frame_id": {strconv.FormatUint(frame, 10)}}
	res, err := c.do(ctx, op, http.MethodPut, "/tasks?"+q.Encode(), workerID, pr, mw.FormDataContentType())
	if err != nil {
		pr.CloseWithError(err)
		return scheduler.Task{}, err
	}
	defer res.Body.Close()
	return decodeTask(op, res)
}

// Heartbeat renews the worker's lease.
func (c *HTTPClient) Heartbeat(ctx context.Context, workerID scheduler.WorkerID) error {
	const op = "coordinator.Heartbeat"

	res, err := c.do(ctx, op, http.MethodPost, "/workers/alive", workerID, nil, "")
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, res.Body)
	return res.Body.Close()
}

// Status returns the coordinator's scheduling snapshot.
func (c *HTTPClient) Status(ctx context.Context) (scheduler.Snapshot, error) {
	const op = "coordinator.Status"

	res, err := c.do(ctx, op, http.MethodGet, "/status", "", nil, "")
	if err != nil {
		return scheduler.Snapshot{}, err
	}
	defer res.Body.Close()

	var snap scheduler.Snapshot
	if err := json.NewDecoder(res.Body).Decode(&snap); err != nil {
		return scheduler.Snapshot{}, errors.Wrap(err, op, "decode status")
	}
	return snap, nil
}

// do sends the request and turns transport failures and non-2xx responses
// into coded errors. On success the caller owns res.Body.
func (c *HTTPClient) do(ctx context.Context, op, method, path string, workerID scheduler.WorkerID, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, errors.Wrap(err, op, "build request")
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if workerID != "" {
		req.Header.Set(middleware.WorkerIDHeader, workerID)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeUnavailable, op, "coordinator unreachable")
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		defer res.Body.Close()
		return nil, decodeError(op, res)
	}
	return res, nil
}

func decodeTask(op string, res *http.Response) (scheduler.Task, error) {
	var task scheduler.Task
	if err := json.NewDecoder(res.Body).Decode(&task); err != nil {
		return scheduler.Task{}, errors.Wrap(err, op, "decode task")
	}
	return task, nil
}

// decodeError rebuilds the coordinator's coded error from its envelope, so
// callers can match it against the scheduler sentinels.
func decodeError(op string, res *http.Response) error {
	body, ok := httpkit.ReadErr(res.Body)
	if !ok {
		return errors.New(codeForStatus(res.StatusCode), fmt.Sprintf("coordinator http %d", res.StatusCode)).
			WithOp(op).
			WithField("status", res.StatusCode)
	}

	e := errors.New(errors.Code(body.Code), body.Message).
		WithOp(op).
		WithField("status", res.StatusCode)
	for k, v := range body.Details {
		e.WithField(k, v)
	}
	return e
}

func codeForStatus(status int) errors.Code {
	switch {
	case status == http.StatusBadRequest:
		return errors.CodeValidation
	case status == http.StatusUnauthorized:
		return errors.CodeUnauthorized
	case status == http.StatusNotFound:
		return errors.CodeNotFound
	case status == http.StatusConflict:
		return errors.CodeConflict
	case status >= 500:
		return errors.CodeUnavailable
	default:
		return errors.CodeInternal
	}
}
