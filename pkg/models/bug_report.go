package models

import (
	"time"

	"github.com/google/uuid"
)

// Attachment references an uploaded image. The bytes live with the uploader;
// only the reference is stored with the report.
type Attachment struct {
	Path         string `json:"path"`
	OriginalName string `json:"original_name"`
	Size         int64  `json:"size"`
	MimeType     string `json:"mime_type"`
}

// BugReport is a persisted report filed by a team against a target URL.
// Duplicate is computed once at insertion and never recomputed.
type BugReport struct {
	ID          uuid.UUID    `db:"id"          json:"id"`
	Seq         int64        `db:"seq"         json:"-"`
	Team        string       `db:"team"        json:"team"`
	Email       string       `db:"email"       json:"email"`
	URL         string       `db:"url"         json:"url"`
	Description string       `db:"description" json:"description"`
	TestSteps   string       `db:"test_steps"  json:"test_steps,omitempty"`
	Images      []Attachment `db:"images"      json:"images"`
	Duplicate   bool         `db:"duplicate"   json:"duplicate"`
	CreatedAt   time.Time    `db:"created_at"  json:"created_at"`
}

// NewReport is a validated submission that has not been classified or stored yet.
type NewReport struct {
	Team        string
	Email       string
	URL         string
	Description string
	TestSteps   string
	Images      []Attachment
}
