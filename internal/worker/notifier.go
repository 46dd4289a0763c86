package worker

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/releaselayer/backend/internal/models"
	"github.com/releaselayer/backend/pkg/database"
	"github.com/releaselayer/backend/pkg/queue"
)

// SignatureHeader carries the HMAC of a custom webhook body.
const SignatureHeader = "X-ReleaseLayer-Signature"

// ReleaseReader loads releases.
type ReleaseReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Release, error)
}

// IntegrationLister lists a project's active integrations of some types.
type IntegrationLister interface {
	ListActiveByProject(ctx context.Context, projectID uuid.UUID, types ...models.IntegrationType) ([]models.Integration, error)
}

// Notifier posts release events to slack and custom webhook integrations.
type Notifier struct {
	releases     ReleaseReader
	integrations IntegrationLister
	client       *http.Client
	logger       *zap.Logger
	now          func() time.Time
}

// NewNotifier creates a notifier. A nil client gets a 10s timeout client.
func NewNotifier(releases ReleaseReader, integrations IntegrationLister, client *http.Client, logger *zap.Logger) *Notifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{releases: releases, integrations: integrations, client: client, logger: logger, now: time.Now}
}

// WebhookRelease is the release part of a webhook body.
type WebhookRelease struct {
	ID          uuid.UUID            `json:"id"`
	Title       string               `json:"title"`
	Slug        string               `json:"slug"`
	Status      models.ReleaseStatus `json:"status"`
	DisplayType models.DisplayType   `json:"displayType"`
	ContentHTML string               `json:"contentHtml"`
	PublishAt   *int64               `json:"publishAt,omitempty"`
}

// WebhookBody is posted to custom webhooks.
type WebhookBody struct {
	Event     string         `json:"event"`
	ProjectID uuid.UUID      `json:"projectId"`
	Release   WebhookRelease `json:"release"`
	SentAt    int64          `json:"sentAt"`
}

type slackBody struct {
	Text    string `json:"text"`
	Channel string `json:"channel,omitempty"`
}

// Sign returns the signature header value of body for secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Notify delivers payload to every active slack and custom webhook integration of the
// release's project. Deliveries run concurrently; the first failure is returned.
func (n *Notifier) Notify(ctx context.Context, payload queue.ReleaseNotifyPayload) error {
	rel, err := n.releases.GetByID(ctx, payload.ReleaseID)
	if errors.Is(err, database.ErrNotFound) {
		n.logger.Info("release gone, dropping notification", zap.String("release_id", payload.ReleaseID.String()))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load release: %w", err)
	}
	targets, err := n.integrations.ListActiveByProject(ctx, payload.ProjectID,
		models.IntegrationSlack, models.IntegrationCustomWebhook)
	if err != nil {
		return fmt.Errorf("list integrations: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, in := range targets {
		in := in
		g.Go(func() error {
			var err error
			switch in.Type {
			case models.IntegrationSlack:
				err = n.slack(gctx, in, payload.Event, rel)
			case models.IntegrationCustomWebhook:
				err = n.webhook(gctx, in, payload.Event, rel)
			}
			if err != nil {
				return fmt.Errorf("integration %s: %w", in.ID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	n.logger.Info("release notification delivered",
		zap.String("release_id", rel.ID.String()),
		zap.String("event", payload.Event),
		zap.Int("targets", len(targets)),
	)
	return nil
}

func (n *Notifier) slack(ctx context.Context, in models.Integration, event string, rel *models.Release) error {
	var cfg models.SlackConfig
	if err := json.Unmarshal(in.Config, &cfg); err != nil {
		return fmt.Errorf("decode slack config: %w", err)
	}
	verb := "published"
	if event == models.EventReleaseArchived {
		verb = "archived"
	}
	body, err := json.Marshal(slackBody{
		Text:    fmt.Sprintf("Release %s: *%s*", verb, rel.Title),
		Channel: cfg.Channel,
	})
	if err != nil {
		return err
	}
	return n.post(ctx, cfg.WebhookURL, body, nil)
}

func (n *Notifier) webhook(ctx context.Context, in models.Integration, event string, rel *models.Release) error {
	var cfg models.CustomWebhookConfig
	if err := json.Unmarshal(in.Config, &cfg); err != nil {
		return fmt.Errorf("decode webhook config: %w", err)
	}
	if !cfg.Subscribed(event) {
		return nil
	}
	body, err := json.Marshal(WebhookBody{
		Event:     event,
		ProjectID: rel.ProjectID,
		Release: WebhookRelease{
			ID:          rel.ID,
			Title:       rel.Title,
			Slug:        rel.Slug,
			Status:      rel.Status,
			DisplayType: rel.DisplayType,
			ContentHTML: rel.ContentHTML,
			PublishAt:   rel.PublishAt,
		},
		SentAt: n.now().Unix(),
	})
	if err != nil {
		return err
	}
	headers := map[string]string{}
	if cfg.Secret != "" {
		headers[SignatureHeader] = Sign(cfg.Secret, body)
	}
	return n.post(ctx, cfg.URL, body, headers)
}

func (n *Notifier) post(ctx context.Context, url string, body []byte, headers map[string]string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "ReleaseLayer-Webhooks/1.0")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("post status: %d", resp.StatusCode)
	}
	return nil
}
