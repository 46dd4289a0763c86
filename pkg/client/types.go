package client

import (
	"time"

	"github.com/releaselayer/backend/internal/models"
	"github.com/releaselayer/backend/internal/plans"
)

// UsageCounts is an organization's usage in the current period.
type UsageCounts struct {
	MAU         int64 `json:"mau"`
	Impressions int64 `json:"impressions"`
	Projects    int64 `json:"projects"`
	AIRewrites  int64 `json:"aiRewrites"`
}

// UsageReport pairs plan ceilings with current usage.
type UsageReport struct {
	Plan   models.Plan      `json:"plan"`
	Period string           `json:"period"`
	Limits plans.PlanLimits `json:"limits"`
	Usage  UsageCounts      `json:"usage"`
}

// AnalyticsSummary aggregates a project's widget events.
type AnalyticsSummary struct {
	Since                time.Time `json:"since"`
	Views                int64     `json:"views"`
	Dismissals           int64     `json:"dismissals"`
	Clicks               int64     `json:"clicks"`
	ChecklistCompletions int64     `json:"checklistCompletions"`
	UniqueUsers          int64     `json:"uniqueUsers"`
}

// AssetUpload is a presigned upload target for a release image.
type AssetUpload struct {
	UploadURL string    `json:"uploadUrl"`
	PublicURL string    `json:"publicUrl"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SyncResult reports a GitLab release import.
type SyncResult struct {
	Fetched  int `json:"fetched"`
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// TrackResult reports how many events the API accepted and how many it dropped for
// referencing another project's releases or checklists.
type TrackResult struct {
	Accepted int `json:"accepted"`
	Dropped  int `json:"dropped,omitempty"`
}
