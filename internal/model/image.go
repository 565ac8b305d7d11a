package model

import (
	"path/filepath"
	"strings"
	"time"
)

// Image is the stored metadata of an uploaded file.
// Its ID is also the vector record ID in the similarity index.
type Image struct {
	ID               string     `json:"id"`
	OwnerID          string     `json:"owner_id"`
	Filename         string     `json:"filename"`
	Path             string     `json:"-"`
	ContentType      string     `json:"content_type"`
	Size             int64      `json:"size"`
	Caption          *string    `json:"caption,omitempty"`
	AIProcessed      bool       `json:"ai_processed"`
	AIProcessingTime *int64     `json:"ai_processing_time_ms,omitempty"`
	IndexedAt        *time.Time `json:"indexed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// IsOwnedBy reports whether the image belongs to userID.
func (i *Image) IsOwnedBy(userID string) bool {
	return userID != "" && i.OwnerID == userID
}

// CaptionText returns the caption or an empty string.
func (i *Image) CaptionText() string {
	if i.Caption == nil {
		return ""
	}
	return *i.Caption
}

// Extension returns the lowercase file extension of the original filename.
func (i *Image) Extension() string {
	return strings.ToLower(filepath.Ext(i.Filename))
}
