package streaming

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"appguard-lab/internal/domain/models"
)

// EventType represents the type of scan event
type EventType string

const (
	EventTypeScanProgress  EventType = "scan_progress"
	EventTypeScanCompleted EventType = "scan_completed"
)

// subjectRoot prefixes every subject published by this service
const subjectRoot = "scans"

// ScanEvent is a real-time update about a full device scan
type ScanEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	ScanID   string `json:"scan_id"`
	DeviceID string `json:"device_id"`

	Progress *models.ScanProgress `json:"progress,omitempty"`
	Summary  *models.ScanSummary  `json:"summary,omitempty"`
}

// NewProgressEvent wraps a per-app progress update
func NewProgressEvent(deviceID string, p models.ScanProgress) *ScanEvent {
	return &ScanEvent{
		ID:        uuid.New().String(),
		Type:      EventTypeScanProgress,
		Timestamp: time.Now(),
		ScanID:    p.ScanID.String(),
		DeviceID:  deviceID,
		Progress:  &p,
	}
}

// NewCompletedEvent wraps the final summary of a scan
func NewCompletedEvent(s *models.ScanSummary) *ScanEvent {
	return &ScanEvent{
		ID:        uuid.New().String(),
		Type:      EventTypeScanCompleted,
		Timestamp: time.Now(),
		ScanID:    s.ScanID.String(),
		DeviceID:  s.DeviceID,
		Summary:   s,
	}
}

// IsFinal reports whether no further events follow for this scan
func (e *ScanEvent) IsFinal() bool {
	return e.Type == EventTypeScanCompleted
}

// Subject returns the NATS subject, e.g. scans.progress.pixel-7
func (e *ScanEvent) Subject() string {
	kind := "progress"
	if e.Type == EventTypeScanCompleted {
		kind = "completed"
	}
	return subjectRoot + "." + kind + "." + subjectToken(e.DeviceID)
}

// subjectToken makes an id safe to use as a single subject token
func subjectToken(s string) string {
	if s == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, s)
}

// Subscription filters scan events. Empty fields match everything.
type Subscription struct {
	ScanID   string      `json:"scan_id,omitempty"`
	DeviceID string      `json:"device_id,omitempty"`
	Types    []EventType `json:"types,omitempty"`
}

// Matches checks if an event matches the subscription
func (s *Subscription) Matches(event *ScanEvent) bool {
	if s == nil {
		return true
	}
	if s.ScanID != "" && s.ScanID != event.ScanID {
		return false
	}
	if s.DeviceID != "" && s.DeviceID != event.DeviceID {
		return false
	}
	if len(s.Types) > 0 {
		for _, t := range s.Types {
			if t == event.Type {
				return true
			}
		}
		return false
	}
	return true
}

// subject narrows the NATS filter subject where possible
func (s *Subscription) subject() string {
	if s == nil || s.DeviceID == "" {
		return subjectRoot + ".>"
	}
	return subjectRoot + ".*." + subjectToken(s.DeviceID)
}
