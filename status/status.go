// Package status tracks per-file pipeline state and retry counters in a
// shared key-value store.
package status

import "time"

// Well-known pipeline states. Services may store additional states; these
// are the ones the stage runner and dashboards rely on.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusError      = "error"
	StatusUnknown    = "unknown"
)

// DefaultStages lists the processing stages whose retry counters are reset
// by ClearError. Override per store when a deployment adds stages.
var DefaultStages = []string{"metadata", "splitter", "packager", "organizer"}

// Record is the tracked state of one file moving through the pipeline.
type Record struct {
	Filename  string            `json:"filename"`
	Status    string            `json:"status"`
	LastError string            `json:"last_error,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
	UpdatedAt time.Time         `json:"updated_at,omitempty"`
}
