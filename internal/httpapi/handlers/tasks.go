package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"renderfarm/internal/httpkit"
	"renderfarm/internal/models"
	"renderfarm/internal/pkg/errors"
	"renderfarm/internal/pkg/logger"
	"renderfarm/internal/pkg/middleware"
	"renderfarm/internal/ports"
	"renderfarm/internal/scheduler"
)

const maxFrameUpload = 512 << 20

// PostTask leases ?count=N frames (default 1) to a new worker.
func (h *Handler) PostTask(w http.ResponseWriter, r *http.Request) error {
	count := 1
	if raw := strings.TrimSpace(r.URL.Query().Get("count")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return errors.ValidationField("count", "count must be a positive integer").WithField("value", raw)
		}
		count = n
	}

	task, err := h.sched.RequestTask(count)
	if err != nil {
		return err
	}
	httpkit.WriteJSON(w, http.StatusOK, task)
	return nil
}

// PutTask accepts a rendered frame as multipart field "frame". ?frame_id
// names the frame; it may be left out when the task holds exactly one.
func (h *Handler) PutTask(w http.ResponseWriter, r *http.Request) error {
	const op = "handlers.PutTask"
	ctx := r.Context()

	workerID := r.Header.Get(middleware.WorkerIDHeader)
	if workerID == "" {
		return errors.New(errors.CodeUnauthorized, "missing x-worker-id header").WithOp(op)
	}

	var hint *scheduler.FrameID
	if raw := strings.TrimSpace(r.URL.Query().Get("frame_id")); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return errors.New(errors.CodeAmbiguousFrame, "frame_id must be an unsigned integer").
				WithOp(op).
				WithField("value", raw)
		}
		hint = &id
	}

	if err := r.ParseMultipartForm(maxFrameUpload); err != nil {
		return errors.ValidationField("frame", "invalid multipart form").WithOp(op)
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("frame")
	if err != nil {
		return errors.ValidationField("frame", "frame file is required").WithOp(op)
	}
	defer file.Close()

	frame, err := h.sched.ClaimFrame(workerID, hint)
	if err != nil {
		return err
	}
	log := h.log.FromContext(ctx).WithFrameID(frame)

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	out, err := h.sp.PutObject(ctx, ports.PutObjectInput{
		ObjectKey:   strconv.FormatUint(frame, 10),
		ContentType: contentType,
		Reader:      file,
		Size:        header.Size,
	})
	if err != nil {
		h.sched.AbandonFrame(workerID, frame)
		return errors.WrapWithCode(err, errors.CodePersistenceFailed, op, "frame persistence failed").
			WithField("frame_id", frame)
	}
	h.record(ctx, log, &models.FrameResult{
		FrameID:   frame,
		WorkerID:  workerID,
		Provider:  h.sp.Provider(),
		Location:  out.Location,
		SizeBytes: out.Size,
		StoredAt:  time.Now().UTC(),
	})

	task, err := h.sched.ConfirmFrame(workerID, frame)
	if err != nil {
		return err
	}
	log.Debug("frame stored", "location", out.Location, "size", out.Size)
	httpkit.WriteJSON(w, http.StatusOK, task)
	return nil
}

// record writes the ledger entry. The frame is already on storage, so a
// ledger failure is logged and the submission still succeeds.
func (h *Handler) record(ctx context.Context, log *logger.Logger, res *models.FrameResult) {
	if h.ledger == nil {
		return
	}
	if err := h.ledger.Record(ctx, res); err != nil {
		log.Warn("frame ledger write failed", "error", err.Error())
	}
}
