package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Checklist is an ordered onboarding list shown by the widget.
type Checklist struct {
	ID           uuid.UUID       `json:"id"`
	ProjectID    uuid.UUID       `json:"projectId"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	IsActive     bool            `json:"isActive"`
	TargetTraits json.RawMessage `json:"targetTraits,omitempty"`
	Items        []ChecklistItem `json:"items"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// ChecklistItem is one step; TrackEvent correlates end-user analytics events with the step.
type ChecklistItem struct {
	ID          uuid.UUID `json:"id"`
	ChecklistID uuid.UUID `json:"checklistId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ActionURL   *string   `json:"actionUrl,omitempty"`
	TrackEvent  string    `json:"trackEvent"`
	SortOrder   int       `json:"sortOrder"`
}
