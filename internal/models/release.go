package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ReleaseStatus is the lifecycle state of a release.
type ReleaseStatus string

const (
	ReleaseStatusDraft     ReleaseStatus = "draft"
	ReleaseStatusScheduled ReleaseStatus = "scheduled"
	ReleaseStatusPublished ReleaseStatus = "published"
	ReleaseStatusArchived  ReleaseStatus = "archived"
)

// DisplayType controls how the widget presents a release.
type DisplayType string

const (
	DisplayTypeModal     DisplayType = "modal"
	DisplayTypeBanner    DisplayType = "banner"
	DisplayTypeChangelog DisplayType = "changelog"
)

// Release is a changelog/announcement entry with scheduling and targeting.
type Release struct {
	ID           uuid.UUID       `json:"id"`
	ProjectID    uuid.UUID       `json:"projectId"`
	Title        string          `json:"title"`
	Slug         string          `json:"slug"`
	Status       ReleaseStatus   `json:"status"`
	DisplayType  DisplayType     `json:"displayType"`
	ShowOnce     bool            `json:"showOnce"`
	PublishAt    *int64          `json:"publishAt,omitempty"`
	UnpublishAt  *int64          `json:"unpublishAt,omitempty"`
	TargetTraits json.RawMessage `json:"targetTraits,omitempty"`
	ContentMd    string          `json:"contentMd"`
	ContentHTML  string          `json:"contentHtml"`
	ContentAI    *string         `json:"contentAi,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// LiveAt reports whether the release should be shown to end users at the given epoch second.
func (r *Release) LiveAt(now int64) bool {
	switch r.Status {
	case ReleaseStatusPublished:
	case ReleaseStatusScheduled:
		if r.PublishAt == nil {
			return false
		}
	default:
		return false
	}
	if r.PublishAt != nil && *r.PublishAt > now {
		return false
	}
	if r.UnpublishAt != nil && *r.UnpublishAt <= now {
		return false
	}
	return true
}

// ReleaseStats aggregates SDK events for one release.
type ReleaseStats struct {
	ReleaseID   uuid.UUID `json:"releaseId"`
	Views       int64     `json:"views"`
	Dismissals  int64     `json:"dismissals"`
	Clicks      int64     `json:"clicks"`
	UniqueUsers int64     `json:"uniqueUsers"`
}
