package v1

import "time"

// Event v1 is pushed onto the build queue when every frame of a job has been
// stored. The builder consumes it and runs the build command.
//   - id: unique per completion, used to spot redeliveries
//   - frames_dir: where the frames were written (a folder id for gdrive)
//   - provider: storage provider that holds the frames
type Event struct {
	ID          string    `json:"id"`
	FrameCount  uint64    `json:"frame_count"`
	FramesDir   string    `json:"frames_dir"`
	Provider    string    `json:"provider"`
	CompletedAt time.Time `json:"completed_at"`
}
