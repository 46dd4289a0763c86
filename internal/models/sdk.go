package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// WidgetPosition is where the widget launcher is anchored.
type WidgetPosition string

const (
	PositionBottomRight WidgetPosition = "bottom-right"
	PositionBottomLeft  WidgetPosition = "bottom-left"
	PositionTopRight    WidgetPosition = "top-right"
	PositionTopLeft     WidgetPosition = "top-left"
)

// SdkConfig holds one project's widget presentation settings.
type SdkConfig struct {
	ProjectID uuid.UUID       `json:"projectId"`
	Theme     json.RawMessage `json:"theme"`
	Position  WidgetPosition  `json:"position"`
	ZIndex    int             `json:"zIndex"`
	CustomCSS string          `json:"customCss"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// DefaultSdkConfig is served for projects that never saved a config.
func DefaultSdkConfig(projectID uuid.UUID) SdkConfig {
	return SdkConfig{
		ProjectID: projectID,
		Theme:     json.RawMessage(`{}`),
		Position:  PositionBottomRight,
		ZIndex:    2147483000,
	}
}

// SdkEventType is the kind of analytics event reported by the widget.
type SdkEventType string

const (
	SdkEventView              SdkEventType = "view"
	SdkEventDismiss           SdkEventType = "dismiss"
	SdkEventClick             SdkEventType = "click"
	SdkEventChecklistComplete SdkEventType = "checklist_complete"
)

// SdkTrackEvent is one analytics event sent by the widget.
type SdkTrackEvent struct {
	Type        SdkEventType    `json:"type"`
	EndUserID   string          `json:"endUserId"`
	ReleaseID   *uuid.UUID      `json:"releaseId,omitempty"`
	ChecklistID *uuid.UUID      `json:"checklistId,omitempty"`
	TrackEvent  string          `json:"trackEvent,omitempty"`
	Timestamp   *int64          `json:"timestamp,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

// SdkRelease is the end-user view of a release.
type SdkRelease struct {
	ID          uuid.UUID   `json:"id"`
	Title       string      `json:"title"`
	Slug        string      `json:"slug"`
	DisplayType DisplayType `json:"displayType"`
	ShowOnce    bool        `json:"showOnce"`
	ContentHTML string      `json:"contentHtml"`
	PublishAt   *int64      `json:"publishAt,omitempty"`
}

// SdkChecklistItem carries per-end-user completion.
type SdkChecklistItem struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ActionURL   *string   `json:"actionUrl,omitempty"`
	TrackEvent  string    `json:"trackEvent"`
	Completed   bool      `json:"completed"`
}

// SdkChecklist is the end-user view of a checklist.
type SdkChecklist struct {
	ID          uuid.UUID          `json:"id"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Items       []SdkChecklistItem `json:"items"`
}

// SdkPresentation is the subset of SdkConfig sent to the widget.
type SdkPresentation struct {
	Theme          json.RawMessage `json:"theme"`
	Position       WidgetPosition  `json:"position"`
	ZIndex         int             `json:"zIndex"`
	CustomCSS      string          `json:"customCss,omitempty"`
	RemoveBranding bool            `json:"removeBranding"`
}

// SdkInitResponse is returned to the widget on boot.
type SdkInitResponse struct {
	Releases  []SdkRelease    `json:"releases"`
	Config    SdkPresentation `json:"config"`
	Checklist *SdkChecklist   `json:"checklist,omitempty"`
}
