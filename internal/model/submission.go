// Package model contains simple struct definitions shared across packages.
package model

import "time"

// Status describes the moderation lifecycle of a submission.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether s permits no further transition.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// CanTransition reports whether a submission may move from one status to
// another. Only pending submissions may be moderated; approved and rejected
// are terminal.
func CanTransition(from, to Status) bool {
	return from == StatusPending && to.Terminal()
}

// Submission holds the persisted metadata of one competition entry. Thumbnail
// fields are independently optional: an empty string means the derivative was
// never produced, which never invalidates the record.
type Submission struct {
	ID              int64     `json:"id"`
	Artist          string    `json:"artist"`
	Title           string    `json:"title"`
	FileURL         string    `json:"fileUrl"`
	Status          Status    `json:"status"`
	DurationSeconds int       `json:"durationSeconds,omitempty"`
	ThumbnailWide   string    `json:"thumbnailWide,omitempty"`
	ThumbnailSquare string    `json:"thumbnailSquare,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}
