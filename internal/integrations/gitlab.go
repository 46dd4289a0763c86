package integrations

import (
	"context"
	"fmt"
	"strings"
	"time"

	gitlab "gitlab.com/gitlab-org/api/client-go"
	"go.uber.org/zap"

	"github.com/releaselayer/backend/internal/models"
)

const (
	gitlabPerPage  = 100
	gitlabMaxPages = 10
)

// ExternalRelease is a release read from a source control host.
type ExternalRelease struct {
	Tag         string
	Name        string
	Description string
	ReleasedAt  *time.Time
}

// GitLabSource lists releases of a GitLab project.
type GitLabSource struct {
	logger *zap.Logger
}

// NewGitLabSource creates a GitLab release source.
func NewGitLabSource(logger *zap.Logger) *GitLabSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GitLabSource{logger: logger}
}

func newGitLabClient(cfg models.GitLabConfig) (*gitlab.Client, error) {
	if cfg.BaseURL == "" {
		return gitlab.NewClient(cfg.Token)
	}
	apiURL := strings.TrimSuffix(cfg.BaseURL, "/") + "/api/v4"
	return gitlab.NewClient(cfg.Token, gitlab.WithBaseURL(apiURL))
}

// Releases returns the project's releases, newest first.
func (s *GitLabSource) Releases(ctx context.Context, cfg models.GitLabConfig) ([]ExternalRelease, error) {
	client, err := newGitLabClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating gitlab client: %w", err)
	}

	opts := &gitlab.ListReleasesOptions{
		ListOptions: gitlab.ListOptions{Page: 1, PerPage: gitlabPerPage},
	}
	var out []ExternalRelease
	for page := 0; page < gitlabMaxPages; page++ {
		batch, resp, err := client.Releases.ListReleases(cfg.ProjectID, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("listing gitlab releases: %w", err)
		}
		for _, r := range batch {
			out = append(out, ExternalRelease{
				Tag:         r.TagName,
				Name:        r.Name,
				Description: r.Description,
				ReleasedAt:  r.ReleasedAt,
			})
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		if page == gitlabMaxPages-1 {
			s.logger.Warn("gitlab release listing truncated",
				zap.String("gitlab_project", cfg.ProjectID),
				zap.Int("max_pages", gitlabMaxPages),
				zap.Int64("next_page", resp.NextPage),
			)
			break
		}
		opts.Page = resp.NextPage
	}
	s.logger.Debug("fetched gitlab releases", zap.String("gitlab_project", cfg.ProjectID), zap.Int("count", len(out)))
	return out, nil
}
