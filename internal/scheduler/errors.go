package scheduler

import (
	"renderfarm/internal/pkg/errors"
)

// Sentinels for errors.Is. Matching is by code, so the errors returned by
// the scheduler (which carry worker and frame fields) compare equal to these.
var (
	ErrNoWorkAvailable   = errors.New(errors.CodeNoWorkAvailable, "no frames available")
	ErrUnauthenticated   = errors.New(errors.CodeUnauthorized, "missing worker identity")
	ErrUnknownWorker     = errors.New(errors.CodeUnknownWorker, "unknown worker")
	ErrFrameNotOwned     = errors.New(errors.CodeFrameNotOwned, "frame not owned by worker")
	ErrAmbiguousFrame    = errors.New(errors.CodeAmbiguousFrame, "frame to submit is ambiguous or missing")
	ErrPersistenceFailed = errors.New(errors.CodePersistenceFailed, "frame persistence failed")
)

func errNoWork(op string) error {
	return errors.New(errors.CodeNoWorkAvailable, "no frames available").WithOp(op)
}

func errUnauthenticated(op string) error {
	return errors.New(errors.CodeUnauthorized, "missing worker identity").WithOp(op)
}

func errUnknownWorker(op string, workerID WorkerID) error {
	return errors.New(errors.CodeUnknownWorker, "no task for worker").
		WithOp(op).
		WithField("worker_id", workerID)
}

func errFrameNotOwned(op string, workerID WorkerID, frame FrameID) error {
	return errors.Newf(errors.CodeFrameNotOwned, "frame %d not owned by worker", frame).
		WithOp(op).
		WithField("worker_id", workerID).
		WithField("frame_id", frame)
}

func errAmbiguousFrame(op string, workerID WorkerID, outstanding int) error {
	return errors.New(errors.CodeAmbiguousFrame, "frame_id required when the task does not hold exactly one frame").
		WithOp(op).
		WithField("worker_id", workerID).
		WithField("outstanding", outstanding)
}
