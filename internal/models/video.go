// Package models provides data model definitions for the Keepsake core.
package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// MaxSegmentSeconds bounds the length of a trim window.
const MaxSegmentSeconds = 300.0

// ID is a wrapper around string for entity identifier type safety.
type ID string

// Value implements driver.Valuer for ID.
func (id ID) Value() (driver.Value, error) {
	return string(id), nil
}

// Scan implements sql.Scanner for ID.
func (id *ID) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*id = ""
	case string:
		*id = ID(v)
	case []byte:
		*id = ID(v)
	default:
		return fmt.Errorf("cannot scan %T into ID", value)
	}
	return nil
}

// String returns the string representation of the ID.
func (id ID) String() string {
	return string(id)
}

// Video represents a trimmed memory clip and its metadata row.
type Video struct {
	ID          ID      `db:"id" json:"id"`
	URI         string  `db:"uri" json:"uri"`
	Thumbnail   string  `db:"thumbnail" json:"thumbnail"`
	Duration    float64 `db:"duration" json:"duration"`
	CreatedAt   int64   `db:"created_at" json:"created_at"`
	Title       string  `db:"title" json:"title"`
	Description string  `db:"description" json:"description,omitempty"`
	StartTime   float64 `db:"start_time" json:"start_time"`
	EndTime     float64 `db:"end_time" json:"end_time"`
	CategoryID  ID      `db:"category_id" json:"category_id"`
}

// TableName returns the table name for Video.
func (Video) TableName() string {
	return "videos"
}

// CreatedAtTime returns the CreatedAt as time.Time.
func (v *Video) CreatedAtTime() time.Time {
	return time.Unix(v.CreatedAt, 0)
}

// ValidateWindow checks a trim window against the segment invariants:
// 0 <= start < end and end-start within MaxSegmentSeconds.
func ValidateWindow(start, end float64) error {
	if start < 0 {
		return fmt.Errorf("start time %.3f is negative", start)
	}
	if end <= start {
		return fmt.Errorf("end time %.3f must be greater than start time %.3f", end, start)
	}
	if end-start > MaxSegmentSeconds {
		return fmt.Errorf("segment length %.3f exceeds maximum %.0f seconds", end-start, MaxSegmentSeconds)
	}
	return nil
}
