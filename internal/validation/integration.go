package validation

import (
	"bytes"
	"encoding/json"

	"github.com/releaselayer/backend/internal/models"
)

// CreateIntegrationInput is the body of POST /projects/:id/integrations.
// After a successful parse Config holds the normalized config for Type and IsActive is set.
type CreateIntegrationInput struct {
	Type     models.IntegrationType `json:"type" validate:"required,oneof=github gitlab slack custom_webhook"`
	Config   json.RawMessage        `json:"config"`
	IsActive *bool                  `json:"isActive,omitempty"`
}

// ParseCreateIntegration validates a new integration, checking config against its type.
func ParseCreateIntegration(raw []byte) (CreateIntegrationInput, error) {
	var in CreateIntegrationInput
	if errs := decodeObject(raw, &in); errs != nil {
		return in, errs
	}
	errs := check(in, "")
	if len(bytes.TrimSpace(in.Config)) == 0 || bytes.Equal(bytes.TrimSpace(in.Config), []byte("null")) {
		errs = append(errs, FieldError{Field: "config", Message: "is required"})
	} else if cerrs := checkObject(in.Config, "config"); cerrs != nil {
		errs = append(errs, cerrs...)
	} else if len(errs) == 0 {
		cfg, cerrs := ParseIntegrationConfig(in.Type, in.Config)
		if cerrs != nil {
			errs = append(errs, cerrs...)
		}
		in.Config = cfg
	}
	if len(errs) > 0 {
		return in, errs
	}
	if in.IsActive == nil {
		in.IsActive = boolPtr(true)
	}
	return in, nil
}

// UpdateIntegrationInput is the partial body of PUT/PATCH /integrations/:id.
type UpdateIntegrationInput struct {
	Config   json.RawMessage `json:"config,omitempty"`
	IsActive *bool           `json:"isActive,omitempty"`
}

// ParseUpdateIntegration validates a partial update of an integration of type typ.
func ParseUpdateIntegration(raw []byte, typ models.IntegrationType) (UpdateIntegrationInput, error) {
	var in UpdateIntegrationInput
	if errs := decodeObject(raw, &in); errs != nil {
		return in, errs
	}
	in.Config = normalizeObject(in.Config)
	if in.Config == nil {
		return in, nil
	}
	if errs := checkObject(in.Config, "config"); errs != nil {
		return in, errs
	}
	cfg, errs := ParseIntegrationConfig(typ, in.Config)
	if errs != nil {
		return in, errs
	}
	in.Config = cfg
	return in, nil
}

// ParseIntegrationConfig validates config against the shape required by typ and returns
// it re-encoded without unknown keys.
func ParseIntegrationConfig(typ models.IntegrationType, config json.RawMessage) (json.RawMessage, Errors) {
	var target any
	switch typ {
	case models.IntegrationGitHub:
		target = &models.GitHubConfig{}
	case models.IntegrationGitLab:
		target = &models.GitLabConfig{}
	case models.IntegrationSlack:
		target = &models.SlackConfig{}
	case models.IntegrationCustomWebhook:
		target = &models.CustomWebhookConfig{}
	default:
		return nil, Errors{{Field: "type", Message: "must be one of: github, gitlab, slack, custom_webhook"}}
	}
	if errs := decodeObject(config, target); errs != nil {
		for i := range errs {
			errs[i].Field = prefixed("config", errs[i].Field)
		}
		return nil, errs
	}
	if errs := check(target, "config"); errs != nil {
		return nil, errs
	}
	out, err := json.Marshal(target)
	if err != nil {
		return nil, Errors{{Field: "config", Message: err.Error()}}
	}
	return out, nil
}

func prefixed(prefix, field string) string {
	if field == "" {
		return prefix
	}
	return prefix + "." + field
}
