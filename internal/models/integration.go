package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// IntegrationType discriminates the integration config shape.
type IntegrationType string

const (
	IntegrationGitHub        IntegrationType = "github"
	IntegrationGitLab        IntegrationType = "gitlab"
	IntegrationSlack         IntegrationType = "slack"
	IntegrationCustomWebhook IntegrationType = "custom_webhook"
)

// IntegrationTypes lists every supported integration kind.
var IntegrationTypes = []IntegrationType{
	IntegrationGitHub,
	IntegrationGitLab,
	IntegrationSlack,
	IntegrationCustomWebhook,
}

// Integration connects a project to an external system.
type Integration struct {
	ID        uuid.UUID       `json:"id"`
	ProjectID uuid.UUID       `json:"projectId"`
	Type      IntegrationType `json:"type"`
	Config    json.RawMessage `json:"config"`
	IsActive  bool            `json:"isActive"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// GitHubConfig is the config of a github integration.
type GitHubConfig struct {
	Repo   string `json:"repo" validate:"required,github_repo"`
	Branch string `json:"branch,omitempty" validate:"omitempty,max=255"`
	Token  string `json:"token,omitempty" validate:"omitempty,max=255"`
}

// GitLabConfig is the config of a gitlab integration.
type GitLabConfig struct {
	ProjectID string `json:"projectId" validate:"required,max=255"`
	Token     string `json:"token" validate:"required,max=255"`
	BaseURL   string `json:"baseUrl,omitempty" validate:"omitempty,url"`
}

// SlackConfig is the config of a slack integration.
type SlackConfig struct {
	WebhookURL string `json:"webhookUrl" validate:"required,url,startswith=https://"`
	Channel    string `json:"channel,omitempty" validate:"omitempty,max=80"`
}

// CustomWebhookConfig is the config of a custom_webhook integration.
type CustomWebhookConfig struct {
	URL    string   `json:"url" validate:"required,url"`
	Secret string   `json:"secret,omitempty" validate:"omitempty,max=255"`
	Events []string `json:"events,omitempty" validate:"omitempty,dive,oneof=release.published release.archived"`
}

// Webhook event names.
const (
	EventReleasePublished = "release.published"
	EventReleaseArchived  = "release.archived"
)

// Subscribed reports whether the webhook wants the event; an empty list means all events.
func (c CustomWebhookConfig) Subscribed(event string) bool {
	if len(c.Events) == 0 {
		return true
	}
	for _, e := range c.Events {
		if e == event {
			return true
		}
	}
	return false
}
