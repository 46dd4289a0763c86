package validation

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/releaselayer/backend/internal/models"
)

// MaxTrackBatch is the largest number of events accepted in one track call.
const MaxTrackBatch = 50

type trackEventInput struct {
	Type        string          `json:"type" validate:"required,oneof=view dismiss click checklist_complete"`
	EndUserID   string          `json:"endUserId" validate:"required,max=255"`
	ReleaseID   *string         `json:"releaseId,omitempty" validate:"omitempty,uuid"`
	ChecklistID *string         `json:"checklistId,omitempty" validate:"omitempty,uuid"`
	TrackEvent  string          `json:"trackEvent,omitempty" validate:"required_if=Type checklist_complete,max=100,track_event"`
	Timestamp   *int64          `json:"timestamp,omitempty" validate:"omitempty,min=0"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

// ParseTrackEvents validates a track payload: either a single event object or an array of
// 1 to MaxTrackBatch events.
func ParseTrackEvents(raw []byte) ([]models.SdkTrackEvent, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, Errors{{Message: "body must be an event object or an array of events"}}
	}
	var inputs []trackEventInput
	switch trimmed[0] {
	case '{':
		var one trackEventInput
		if errs := decodeErrors(json.Unmarshal(trimmed, &one)); errs != nil {
			return nil, errs
		}
		inputs = []trackEventInput{one}
	case '[':
		if errs := decodeErrors(json.Unmarshal(trimmed, &inputs)); errs != nil {
			return nil, errs
		}
		if len(inputs) == 0 || len(inputs) > MaxTrackBatch {
			return nil, Errors{{Message: fmt.Sprintf("must contain between 1 and %d events", MaxTrackBatch)}}
		}
	default:
		return nil, Errors{{Message: "body must be an event object or an array of events"}}
	}

	var errs Errors
	events := make([]models.SdkTrackEvent, 0, len(inputs))
	for i, in := range inputs {
		prefix := ""
		if trimmed[0] == '[' {
			prefix = fmt.Sprintf("[%d]", i)
		}
		if e := check(in, prefix); e != nil {
			errs = append(errs, e...)
			continue
		}
		if e := checkObject(in.Metadata, prefixed(prefix, "metadata")); e != nil {
			errs = append(errs, e...)
			continue
		}
		events = append(events, toTrackEvent(in))
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return events, nil
}

func toTrackEvent(in trackEventInput) models.SdkTrackEvent {
	ev := models.SdkTrackEvent{
		Type:       models.SdkEventType(in.Type),
		EndUserID:  in.EndUserID,
		TrackEvent: in.TrackEvent,
		Timestamp:  in.Timestamp,
		Metadata:   normalizeObject(in.Metadata),
	}
	if in.ReleaseID != nil {
		id := uuid.MustParse(*in.ReleaseID)
		ev.ReleaseID = &id
	}
	if in.ChecklistID != nil {
		id := uuid.MustParse(*in.ChecklistID)
		ev.ChecklistID = &id
	}
	return ev
}

// SdkInitInput is the body of POST /sdk/init.
type SdkInitInput struct {
	EndUserID string          `json:"endUserId" validate:"required,max=255"`
	Traits    json.RawMessage `json:"traits,omitempty"`
}

// ParseSdkInit validates a widget boot request.
func ParseSdkInit(raw []byte) (SdkInitInput, error) {
	var in SdkInitInput
	if errs := decodeObject(raw, &in); errs != nil {
		return in, errs
	}
	errs := check(in, "")
	errs = append(errs, checkObject(in.Traits, "traits")...)
	if len(errs) > 0 {
		return in, errs
	}
	in.Traits = normalizeObject(in.Traits)
	return in, nil
}

// UpdateSdkConfigInput is the partial body of PUT /sdk-config/:projectId.
type UpdateSdkConfigInput struct {
	Theme     json.RawMessage        `json:"theme,omitempty"`
	Position  *models.WidgetPosition `json:"position,omitempty" validate:"omitempty,oneof=bottom-right bottom-left top-right top-left"`
	ZIndex    *int                   `json:"zIndex,omitempty" validate:"omitempty,min=0,max=2147483647"`
	CustomCSS *string                `json:"customCss,omitempty" validate:"omitempty,max=20000"`
}

// ParseUpdateSdkConfig validates a widget presentation update.
func ParseUpdateSdkConfig(raw []byte) (UpdateSdkConfigInput, error) {
	var in UpdateSdkConfigInput
	if errs := decodeObject(raw, &in); errs != nil {
		return in, errs
	}
	errs := check(in, "")
	errs = append(errs, checkObject(in.Theme, "theme")...)
	if len(errs) > 0 {
		return in, errs
	}
	in.Theme = normalizeObject(in.Theme)
	return in, nil
}
