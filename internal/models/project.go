package models

import (
	"time"

	"github.com/google/uuid"
)

// DomainStatus tracks verification of a project's custom domain.
type DomainStatus string

const (
	DomainStatusNone    DomainStatus = "none"
	DomainStatusPending DomainStatus = "pending"
	DomainStatusActive  DomainStatus = "active"
	DomainStatusError   DomainStatus = "error"
)

// Project belongs to one organization and is addressed by the widget through its SDK key.
type Project struct {
	ID             uuid.UUID    `json:"id"`
	OrganizationID uuid.UUID    `json:"organizationId"`
	Name           string       `json:"name"`
	Slug           string       `json:"slug"`
	SdkKey         string       `json:"sdkKey"`
	CustomDomain   *string      `json:"customDomain,omitempty"`
	DomainStatus   DomainStatus `json:"domainStatus"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}
