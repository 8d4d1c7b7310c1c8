package storage

import (
	"context"
	"errors"
	"time"
)

// ErrCaptureNotFound is returned when no capture row exists for an ID
var ErrCaptureNotFound = errors.New("capture not found")

// Outcome tags recorded per capture attempt
const (
	OutcomeOK             = "ok"
	OutcomeAuthFailed     = "auth_failed"
	OutcomeCommandFailed  = "command_failed"
	OutcomeNoImage        = "no_image"
	OutcomeDownloadFailed = "download_failed"
	OutcomeError          = "error"
)

// CaptureRecord is one history row per capture attempt
type CaptureRecord struct {
	ID         string    `json:"id"`
	DeviceID   string    `json:"device_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Outcome    string    `json:"outcome"`
	ImagePath  string    `json:"image_path,omitempty"`
	PromptPath string    `json:"prompt_path,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Storage defines the interface for capture history persistence
type Storage interface {
	SaveCapture(ctx context.Context, rec *CaptureRecord) error
	GetCapture(ctx context.Context, id string) (*CaptureRecord, error)
	ListCaptures(ctx context.Context, limit int) ([]*CaptureRecord, error)

	// Lifecycle
	Close() error
}
