package model

import "time"

// CleanupFilterSupport declares which optional filters a cleanup category
// accepts. Passing an unsupported filter is a validation error.
type CleanupFilterSupport struct {
	Company bool `json:"company"`
	User    bool `json:"user"`
	Date    bool `json:"date"`
}

// CleanupCategory is a static, pre-classified class of deletable data.
type CleanupCategory struct {
	ID             string               `json:"id"`
	Name           string               `json:"name"`
	Description    string               `json:"description"`
	Dangerous      bool                 `json:"dangerous"`
	Icon           string               `json:"icon"`
	SupportsFilter CleanupFilterSupport `json:"supports_filters"`
	Table          string               `json:"-"`
	Scope          string               `json:"-"`
}

// CleanupLog records one cleanup execution, written exactly once per
// invocation whether the delete succeeded or failed.
type CleanupLog struct {
	ID              int64     `json:"id"`
	CleanupCategory string    `json:"cleanup_category"`
	RecordsDeleted  int64     `json:"records_deleted"`
	Success         bool      `json:"success"`
	ErrorDetails    string    `json:"error_details,omitempty"`
	ExecutedAt      time.Time `json:"executed_at"`
	Notes           string    `json:"notes,omitempty"`
}
