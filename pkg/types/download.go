package types

import "time"

// DownloadState is the lifecycle of a shard's artifact acquisition.
type DownloadState string

const (
	DownloadNotStarted DownloadState = "not_started"
	DownloadInProgress DownloadState = "in_progress"
	DownloadComplete   DownloadState = "complete"
	DownloadError      DownloadState = "error"
)

// DownloadStatus is the retained snapshot for a (shard, engine) pair.
type DownloadStatus struct {
	// Bytes currently present on disk.
	// example: 524288000
	DownloadedBytes int64 `json:"downloaded_bytes" example:"524288000"`
	// Expected total bytes of the allow-listed artifact set.
	// example: 1048576000
	TotalBytes int64 `json:"total_bytes" example:"1048576000"`
	// One of not_started, in_progress, complete, error.
	// example: in_progress
	Status DownloadState `json:"status" example:"in_progress"`
}

// Fraction returns the present fraction in [0,1].
func (d DownloadStatus) Fraction() float64 {
	if d.Status == DownloadComplete {
		return 1
	}
	if d.TotalBytes <= 0 {
		return 0
	}
	f := float64(d.DownloadedBytes) / float64(d.TotalBytes)
	if f > 1 {
		return 1
	}
	return f
}

// ProgressEvent is published on every monitor sample and on terminal states.
type ProgressEvent struct {
	ModelID         string        `json:"model_id"`
	DownloadedBytes int64         `json:"downloaded_bytes"`
	TotalBytes      int64         `json:"total_bytes"`
	Status          DownloadState `json:"status"`
	Timestamp       time.Time     `json:"timestamp"`
	// Average transfer speed since the acquisition started.
	SpeedBps float64 `json:"speed_bps,omitempty"`
	// Estimated seconds remaining at SpeedBps; zero when unknown.
	ETASeconds float64 `json:"eta_seconds,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// AsStatus projects the event onto the retained status snapshot.
func (e ProgressEvent) AsStatus() DownloadStatus {
	return DownloadStatus{DownloadedBytes: e.DownloadedBytes, TotalBytes: e.TotalBytes, Status: e.Status}
}
