package validation

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/releaselayer/backend/internal/models"
)

// CreateReleaseInput is the body of POST /projects/:id/releases.
// After a successful parse DisplayType, ShowOnce and Status are always set.
type CreateReleaseInput struct {
	Title        string               `json:"title" validate:"required,max=200"`
	Slug         string               `json:"slug" validate:"required,max=100,slug"`
	ContentMd    string               `json:"contentMd" validate:"required"`
	DisplayType  models.DisplayType   `json:"displayType,omitempty" validate:"omitempty,oneof=modal banner changelog"`
	ShowOnce     *bool                `json:"showOnce,omitempty"`
	PublishAt    *int64               `json:"publishAt,omitempty" validate:"omitempty,min=0"`
	UnpublishAt  *int64               `json:"unpublishAt,omitempty" validate:"omitempty,min=0"`
	TargetTraits json.RawMessage      `json:"targetTraits,omitempty"`
	Status       models.ReleaseStatus `json:"status,omitempty" validate:"omitempty,oneof=draft scheduled published archived"`
}

// ParseCreateRelease validates a new release and applies defaults.
func ParseCreateRelease(raw []byte) (CreateReleaseInput, error) {
	var in CreateReleaseInput
	if errs := decodeObject(raw, &in); errs != nil {
		return in, errs
	}
	in.Title = strings.TrimSpace(in.Title)
	errs := check(in, "")
	errs = append(errs, checkObject(in.TargetTraits, "targetTraits")...)
	errs = append(errs, ValidateSchedule(in.PublishAt, in.UnpublishAt)...)
	if in.Status == models.ReleaseStatusScheduled && in.PublishAt == nil {
		errs = append(errs, FieldError{Field: "publishAt", Message: "is required for scheduled releases"})
	}
	if len(errs) > 0 {
		return in, errs
	}
	if in.DisplayType == "" {
		in.DisplayType = models.DisplayTypeModal
	}
	if in.ShowOnce == nil {
		in.ShowOnce = boolPtr(true)
	}
	if in.Status == "" {
		in.Status = models.ReleaseStatusDraft
	}
	in.TargetTraits = normalizeObject(in.TargetTraits)
	return in, nil
}

// UpdateReleaseInput is the partial body of PUT/PATCH /releases/:id. Nil fields are left unchanged.
// An explicit null for publishAt, unpublishAt or targetTraits clears the stored value and sets the
// matching Clear flag.
type UpdateReleaseInput struct {
	Title        *string               `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Slug         *string               `json:"slug,omitempty" validate:"omitempty,min=1,max=100,slug"`
	ContentMd    *string               `json:"contentMd,omitempty" validate:"omitempty,min=1"`
	DisplayType  *models.DisplayType   `json:"displayType,omitempty" validate:"omitempty,oneof=modal banner changelog"`
	ShowOnce     *bool                 `json:"showOnce,omitempty"`
	PublishAt    *int64                `json:"publishAt,omitempty" validate:"omitempty,min=0"`
	UnpublishAt  *int64                `json:"unpublishAt,omitempty" validate:"omitempty,min=0"`
	TargetTraits json.RawMessage       `json:"targetTraits,omitempty"`
	Status       *models.ReleaseStatus `json:"status,omitempty" validate:"omitempty,oneof=draft scheduled published archived"`

	ClearPublishAt    bool `json:"-"`
	ClearUnpublishAt  bool `json:"-"`
	ClearTargetTraits bool `json:"-"`
}

// MarshalJSON writes cleared fields back as explicit nulls.
func (in UpdateReleaseInput) MarshalJSON() ([]byte, error) {
	type plain UpdateReleaseInput
	raw, err := json.Marshal(plain(in))
	if err != nil || !(in.ClearPublishAt || in.ClearUnpublishAt || in.ClearTargetTraits) {
		return raw, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	null := json.RawMessage("null")
	if in.ClearPublishAt {
		fields["publishAt"] = null
	}
	if in.ClearUnpublishAt {
		fields["unpublishAt"] = null
	}
	if in.ClearTargetTraits {
		fields["targetTraits"] = null
	}
	return json.Marshal(fields)
}

// ParseUpdateRelease validates a partial release update.
func ParseUpdateRelease(raw []byte) (UpdateReleaseInput, error) {
	var in UpdateReleaseInput
	if errs := decodeObject(raw, &in); errs != nil {
		return in, errs
	}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		in.Title = &title
	}
	errs := check(in, "")
	errs = append(errs, checkObject(in.TargetTraits, "targetTraits")...)
	errs = append(errs, ValidateSchedule(in.PublishAt, in.UnpublishAt)...)
	if len(errs) > 0 {
		return in, errs
	}
	in.TargetTraits = normalizeObject(in.TargetTraits)
	nulls := nullFields(raw, "publishAt", "unpublishAt", "targetTraits")
	in.ClearPublishAt = nulls["publishAt"]
	in.ClearUnpublishAt = nulls["unpublishAt"]
	in.ClearTargetTraits = nulls["targetTraits"]
	return in, nil
}

// ValidateSchedule rejects an unpublish time that is not after the publish time.
// Either bound may be absent.
func ValidateSchedule(publishAt, unpublishAt *int64) Errors {
	if publishAt == nil || unpublishAt == nil {
		return nil
	}
	if *unpublishAt <= *publishAt {
		return Errors{{Field: "unpublishAt", Message: "must be after publishAt"}}
	}
	return nil
}

// RewriteReleaseInput is the body of POST /releases/:id/rewrite. Apply replaces the markdown
// with the rewritten text instead of only storing it as contentAi.
type RewriteReleaseInput struct {
	Tone  string `json:"tone,omitempty" validate:"omitempty,oneof=friendly professional concise"`
	Apply bool   `json:"apply,omitempty"`
}

// ParseRewriteRelease validates a rewrite request. An empty body is accepted.
func ParseRewriteRelease(raw []byte) (RewriteReleaseInput, error) {
	var in RewriteReleaseInput
	if len(bytes.TrimSpace(raw)) == 0 {
		return in, nil
	}
	if errs := decodeObject(raw, &in); errs != nil {
		return in, errs
	}
	if errs := check(in, ""); errs != nil {
		return in, errs
	}
	return in, nil
}
