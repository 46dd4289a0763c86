package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/releaselayer/backend/internal/models"
	"github.com/releaselayer/backend/internal/validation"
)

// Organizations

// ListOrganizations returns the organizations of the authenticated user.
func (c *Client) ListOrganizations(ctx context.Context) ([]models.Organization, error) {
	var out []models.Organization
	err := c.do(ctx, http.MethodGet, "/orgs", nil, nil, authToken, &out)
	return out, err
}

// CreateOrganization creates an organization owned by the caller.
func (c *Client) CreateOrganization(ctx context.Context, in validation.CreateOrganizationInput) (*models.Organization, error) {
	body, err := validated(in, validation.ParseCreateOrganization)
	if err != nil {
		return nil, err
	}
	var out models.Organization
	if err := c.do(ctx, http.MethodPost, "/orgs", nil, body, authToken, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetOrganization returns one organization.
func (c *Client) GetOrganization(ctx context.Context, orgID uuid.UUID) (*models.Organization, error) {
	var out models.Organization
	if err := c.do(ctx, http.MethodGet, idPath("/orgs/%s", orgID), nil, nil, authToken, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListMembers returns an organization's members.
func (c *Client) ListMembers(ctx context.Context, orgID uuid.UUID) ([]models.OrganizationUser, error) {
	var out []models.OrganizationUser
	err := c.do(ctx, http.MethodGet, idPath("/orgs/%s/members", orgID), nil, nil, authToken, &out)
	return out, err
}

// Usage returns plan limits and current usage.
func (c *Client) Usage(ctx context.Context, orgID uuid.UUID) (*UsageReport, error) {
	var out UsageReport
	if err := c.do(ctx, http.MethodGet, idPath("/orgs/%s/usage", orgID), nil, nil, authToken, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Projects

// ListProjects returns an organization's projects.
func (c *Client) ListProjects(ctx context.Context, orgID uuid.UUID) ([]models.Project, error) {
	var out []models.Project
	err := c.do(ctx, http.MethodGet, idPath("/orgs/%s/projects", orgID), nil, nil, authToken, &out)
	return out, err
}

// CreateProject creates a project.
func (c *Client) CreateProject(ctx context.Context, orgID uuid.UUID, in validation.CreateProjectInput) (*models.Project, error) {
	body, err := validated(in, validation.ParseCreateProject)
	if err != nil {
		return nil, err
	}
	return c.project(ctx, http.MethodPost, idPath("/orgs/%s/projects", orgID), body)
}

// GetProject returns one project.
func (c *Client) GetProject(ctx context.Context, projectID uuid.UUID) (*models.Project, error) {
	return c.project(ctx, http.MethodGet, idPath("/projects/%s", projectID), nil)
}

// UpdateProject changes a project's name or slug.
func (c *Client) UpdateProject(ctx context.Context, projectID uuid.UUID, in validation.UpdateProjectInput) (*models.Project, error) {
	body, err := validated(in, validation.ParseUpdateProject)
	if err != nil {
		return nil, err
	}
	return c.project(ctx, http.MethodPut, idPath("/projects/%s", projectID), body)
}

// DeleteProject deletes a project and its content.
func (c *Client) DeleteProject(ctx context.Context, projectID uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, idPath("/projects/%s", projectID), nil, nil, authToken, nil)
}

// SetDomain sets or, with an empty domain, clears a project's custom domain.
func (c *Client) SetDomain(ctx context.Context, projectID uuid.UUID, in validation.UpdateDomainInput) (*models.Project, error) {
	body, err := validated(in, validation.ParseUpdateDomain)
	if err != nil {
		return nil, err
	}
	return c.project(ctx, http.MethodPut, idPath("/projects/%s/domain", projectID), body)
}

// RotateSdkKey issues a new SDK key; the old one stops working.
func (c *Client) RotateSdkKey(ctx context.Context, projectID uuid.UUID) (*models.Project, error) {
	return c.project(ctx, http.MethodPost, idPath("/projects/%s/sdk-key/rotate", projectID), nil)
}

func (c *Client) project(ctx context.Context, method, path string, body []byte) (*models.Project, error) {
	var out models.Project
	if err := c.do(ctx, method, path, nil, body, authToken, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AssetUploadURL returns a presigned PUT for a release image.
func (c *Client) AssetUploadURL(ctx context.Context, projectID uuid.UUID, in validation.AssetUploadInput) (*AssetUpload, error) {
	body, err := validated(in, validation.ParseAssetUpload)
	if err != nil {
		return nil, err
	}
	var out AssetUpload
	if err := c.do(ctx, http.MethodPost, idPath("/projects/%s/assets/upload-url", projectID), nil, body, authToken, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ProjectAnalytics summarizes widget events of the last days (1-365, 0 for the server default).
func (c *Client) ProjectAnalytics(ctx context.Context, projectID uuid.UUID, days int) (*AnalyticsSummary, error) {
	var q url.Values
	if days > 0 {
		q = url.Values{"days": {strconv.Itoa(days)}}
	}
	var out AnalyticsSummary
	if err := c.do(ctx, http.MethodGet, idPath("/projects/%s/analytics", projectID), q, nil, authToken, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Releases

// ListReleases returns a project's releases, optionally filtered by status.
func (c *Client) ListReleases(ctx context.Context, projectID uuid.UUID, status models.ReleaseStatus) ([]models.Release, error) {
	var q url.Values
	if status != "" {
		q = url.Values{"status": {string(status)}}
	}
	var out []models.Release
	err := c.do(ctx, http.MethodGet, idPath("/projects/%s/releases", projectID), q, nil, authToken, &out)
	return out, err
}

// CreateRelease creates a release.
func (c *Client) CreateRelease(ctx context.Context, projectID uuid.UUID, in validation.CreateReleaseInput) (*models.Release, error) {
	body, err := validated(in, validation.ParseCreateRelease)
	if err != nil {
		return nil, err
	}
	return c.release(ctx, http.MethodPost, idPath("/projects/%s/releases", projectID), body)
}

// GetRelease returns one release.
func (c *Client) GetRelease(ctx context.Context, releaseID uuid.UUID) (*models.Release, error) {
	return c.release(ctx, http.MethodGet, idPath("/releases/%s", releaseID), nil)
}

// UpdateRelease applies a partial update.
func (c *Client) UpdateRelease(ctx context.Context, releaseID uuid.UUID, in validation.UpdateReleaseInput) (*models.Release, error) {
	body, err := validated(in, validation.ParseUpdateRelease)
	if err != nil {
		return nil, err
	}
	return c.release(ctx, http.MethodPatch, idPath("/releases/%s", releaseID), body)
}

// DeleteRelease deletes a release.
func (c *Client) DeleteRelease(ctx context.Context, releaseID uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, idPath("/releases/%s", releaseID), nil, nil, authToken, nil)
}

// PublishRelease publishes a release now.
func (c *Client) PublishRelease(ctx context.Context, releaseID uuid.UUID) (*models.Release, error) {
	return c.release(ctx, http.MethodPost, idPath("/releases/%s/publish", releaseID), nil)
}

// ArchiveRelease archives a release.
func (c *Client) ArchiveRelease(ctx context.Context, releaseID uuid.UUID) (*models.Release, error) {
	return c.release(ctx, http.MethodPost, idPath("/releases/%s/archive", releaseID), nil)
}

// RewriteRelease asks for an AI rewrite of the release content.
func (c *Client) RewriteRelease(ctx context.Context, releaseID uuid.UUID, in validation.RewriteReleaseInput) (*models.Release, error) {
	body, err := validated(in, validation.ParseRewriteRelease)
	if err != nil {
		return nil, err
	}
	return c.release(ctx, http.MethodPost, idPath("/releases/%s/rewrite", releaseID), body)
}

// ReleaseStats returns widget engagement for a release.
func (c *Client) ReleaseStats(ctx context.Context, releaseID uuid.UUID) (*models.ReleaseStats, error) {
	var out models.ReleaseStats
	if err := c.do(ctx, http.MethodGet, idPath("/releases/%s/stats", releaseID), nil, nil, authToken, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) release(ctx context.Context, method, path string, body []byte) (*models.Release, error) {
	var out models.Release
	if err := c.do(ctx, method, path, nil, body, authToken, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Checklists

// ListChecklists returns a project's checklists.
func (c *Client) ListChecklists(ctx context.Context, projectID uuid.UUID) ([]models.Checklist, error) {
	var out []models.Checklist
	err := c.do(ctx, http.MethodGet, idPath("/projects/%s/checklists", projectID), nil, nil, authToken, &out)
	return out, err
}

// CreateChecklist creates a checklist with its items.
func (c *Client) CreateChecklist(ctx context.Context, projectID uuid.UUID, in validation.CreateChecklistInput) (*models.Checklist, error) {
	body, err := validated(in, validation.ParseCreateChecklist)
	if err != nil {
		return nil, err
	}
	return c.checklist(ctx, http.MethodPost, idPath("/projects/%s/checklists", projectID), body)
}

// GetChecklist returns one checklist.
func (c *Client) GetChecklist(ctx context.Context, checklistID uuid.UUID) (*models.Checklist, error) {
	return c.checklist(ctx, http.MethodGet, idPath("/checklists/%s", checklistID), nil)
}

// UpdateChecklist applies a partial update; non-nil Items replaces the item list.
func (c *Client) UpdateChecklist(ctx context.Context, checklistID uuid.UUID, in validation.UpdateChecklistInput) (*models.Checklist, error) {
	body, err := validated(in, validation.ParseUpdateChecklist)
	if err != nil {
		return nil, err
	}
	return c.checklist(ctx, http.MethodPut, idPath("/checklists/%s", checklistID), body)
}

// DeleteChecklist deletes a checklist.
func (c *Client) DeleteChecklist(ctx context.Context, checklistID uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, idPath("/checklists/%s", checklistID), nil, nil, authToken, nil)
}

func (c *Client) checklist(ctx context.Context, method, path string, body []byte) (*models.Checklist, error) {
	var out models.Checklist
	if err := c.do(ctx, method, path, nil, body, authToken, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Integrations

// ListIntegrations returns a project's integrations with secrets masked.
func (c *Client) ListIntegrations(ctx context.Context, projectID uuid.UUID) ([]models.Integration, error) {
	var out []models.Integration
	err := c.do(ctx, http.MethodGet, idPath("/projects/%s/integrations", projectID), nil, nil, authToken, &out)
	return out, err
}

// CreateIntegration connects a project to an external system.
func (c *Client) CreateIntegration(ctx context.Context, projectID uuid.UUID, in validation.CreateIntegrationInput) (*models.Integration, error) {
	body, err := validated(in, validation.ParseCreateIntegration)
	if err != nil {
		return nil, err
	}
	return c.integration(ctx, http.MethodPost, idPath("/projects/%s/integrations", projectID), body)
}

// GetIntegration returns one integration.
func (c *Client) GetIntegration(ctx context.Context, integrationID uuid.UUID) (*models.Integration, error) {
	return c.integration(ctx, http.MethodGet, idPath("/integrations/%s", integrationID), nil)
}

// UpdateIntegration applies a partial update. typ is the integration's stored type, which
// decides the config shape.
func (c *Client) UpdateIntegration(ctx context.Context, integrationID uuid.UUID, typ models.IntegrationType, in validation.UpdateIntegrationInput) (*models.Integration, error) {
	body, err := validated(in, func(raw []byte) (validation.UpdateIntegrationInput, error) {
		return validation.ParseUpdateIntegration(raw, typ)
	})
	if err != nil {
		return nil, err
	}
	return c.integration(ctx, http.MethodPatch, idPath("/integrations/%s", integrationID), body)
}

// DeleteIntegration removes an integration.
func (c *Client) DeleteIntegration(ctx context.Context, integrationID uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, idPath("/integrations/%s", integrationID), nil, nil, authToken, nil)
}

// SyncIntegration imports GitLab releases as drafts.
func (c *Client) SyncIntegration(ctx context.Context, integrationID uuid.UUID) (*SyncResult, error) {
	var out SyncResult
	if err := c.do(ctx, http.MethodPost, idPath("/integrations/%s/sync", integrationID), nil, nil, authToken, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) integration(ctx context.Context, method, path string, body []byte) (*models.Integration, error) {
	var out models.Integration
	if err := c.do(ctx, method, path, nil, body, authToken, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SDK config

// GetSdkConfig returns a project's widget presentation settings.
func (c *Client) GetSdkConfig(ctx context.Context, projectID uuid.UUID) (*models.SdkConfig, error) {
	var out models.SdkConfig
	if err := c.do(ctx, http.MethodGet, idPath("/sdk-config/%s", projectID), nil, nil, authToken, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateSdkConfig applies a partial presentation update.
func (c *Client) UpdateSdkConfig(ctx context.Context, projectID uuid.UUID, in validation.UpdateSdkConfigInput) (*models.SdkConfig, error) {
	body, err := validated(in, validation.ParseUpdateSdkConfig)
	if err != nil {
		return nil, err
	}
	var out models.SdkConfig
	if err := c.do(ctx, http.MethodPut, idPath("/sdk-config/%s", projectID), nil, body, authToken, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Widget endpoints, authenticated with WithSDKKey.

// Init boots the widget for one end user.
func (c *Client) Init(ctx context.Context, in validation.SdkInitInput) (*models.SdkInitResponse, error) {
	body, err := validated(in, validation.ParseSdkInit)
	if err != nil {
		return nil, err
	}
	var out models.SdkInitResponse
	if err := c.do(ctx, http.MethodPost, "/sdk/init", nil, body, authSDK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Track sends up to validation.MaxTrackBatch analytics events.
func (c *Client) Track(ctx context.Context, events []models.SdkTrackEvent) (*TrackResult, error) {
	body, err := validated(events, validation.ParseTrackEvents)
	if err != nil {
		return nil, err
	}
	var out TrackResult
	if err := c.do(ctx, http.MethodPost, "/sdk/track", nil, body, authSDK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
