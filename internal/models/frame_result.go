package models

import "time"

// FrameResult is one persisted frame in the result ledger.
type FrameResult struct {
	ID        string    `json:"id"`
	FrameID   uint64    `json:"frame_id"`
	WorkerID  string    `json:"worker_id"`
	Provider  string    `json:"provider"`
	Location  string    `json:"location"`
	SizeBytes int64     `json:"size_bytes"`
	StoredAt  time.Time `json:"stored_at"`
}
