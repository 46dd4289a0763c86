package validation

import (
	"encoding/json"
	"strings"
)

// ChecklistItemInput is one item of a checklist body.
type ChecklistItemInput struct {
	Title       string  `json:"title" validate:"required,max=200"`
	Description string  `json:"description,omitempty" validate:"max=2000"`
	ActionURL   *string `json:"actionUrl,omitempty" validate:"omitempty,url"`
	TrackEvent  string  `json:"trackEvent" validate:"required,max=100,track_event"`
}

// CreateChecklistInput is the body of POST /projects/:id/checklists. Items keep their order.
type CreateChecklistInput struct {
	Title        string               `json:"title" validate:"required,max=200"`
	Description  string               `json:"description,omitempty" validate:"max=2000"`
	IsActive     *bool                `json:"isActive,omitempty"`
	TargetTraits json.RawMessage      `json:"targetTraits,omitempty"`
	Items        []ChecklistItemInput `json:"items" validate:"max=50,dive"`
}

// ParseCreateChecklist validates a new checklist.
func ParseCreateChecklist(raw []byte) (CreateChecklistInput, error) {
	var in CreateChecklistInput
	if errs := decodeObject(raw, &in); errs != nil {
		return in, errs
	}
	in.Title = strings.TrimSpace(in.Title)
	trimItemTitles(in.Items)
	errs := check(in, "")
	errs = append(errs, checkObject(in.TargetTraits, "targetTraits")...)
	if len(errs) > 0 {
		return in, errs
	}
	if in.IsActive == nil {
		in.IsActive = boolPtr(true)
	}
	if in.Items == nil {
		in.Items = []ChecklistItemInput{}
	}
	in.TargetTraits = normalizeObject(in.TargetTraits)
	return in, nil
}

// UpdateChecklistInput is the partial body of PUT /checklists/:id.
// A non-nil Items replaces the whole item list.
type UpdateChecklistInput struct {
	Title        *string              `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Description  *string              `json:"description,omitempty" validate:"omitempty,max=2000"`
	IsActive     *bool                `json:"isActive,omitempty"`
	TargetTraits json.RawMessage      `json:"targetTraits,omitempty"`
	Items        []ChecklistItemInput `json:"items" validate:"omitempty,max=50,dive"`
}

// ParseUpdateChecklist validates a partial checklist update.
func ParseUpdateChecklist(raw []byte) (UpdateChecklistInput, error) {
	var in UpdateChecklistInput
	if errs := decodeObject(raw, &in); errs != nil {
		return in, errs
	}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		in.Title = &title
	}
	trimItemTitles(in.Items)
	errs := check(in, "")
	errs = append(errs, checkObject(in.TargetTraits, "targetTraits")...)
	if len(errs) > 0 {
		return in, errs
	}
	in.TargetTraits = normalizeObject(in.TargetTraits)
	return in, nil
}

func trimItemTitles(items []ChecklistItemInput) {
	for i := range items {
		items[i].Title = strings.TrimSpace(items[i].Title)
	}
}
