package worker_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/releaselayer/backend/internal/models"
	"github.com/releaselayer/backend/internal/worker"
	"github.com/releaselayer/backend/pkg/queue"
)

type captured struct {
	path      string
	body      []byte
	signature string
}

var _ = Describe("Notifier", func() {
	var (
		server    *httptest.Server
		mu        sync.Mutex
		requests  []captured
		status    int
		projectID uuid.UUID
		rel       *models.Release
		list      memIntegrations
	)

	BeforeEach(func() {
		requests = nil
		status = http.StatusOK
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			mu.Lock()
			requests = append(requests, captured{path: r.URL.Path, body: body, signature: r.Header.Get(worker.SignatureHeader)})
			mu.Unlock()
			w.WriteHeader(status)
		}))
		DeferCleanup(server.Close)

		projectID = uuid.New()
		rel = &models.Release{ID: uuid.New(), ProjectID: projectID, Title: "Dark mode", Slug: "dark-mode", Status: models.ReleaseStatusPublished}
		list = nil
	})

	integration := func(typ models.IntegrationType, cfg any) models.Integration {
		raw, err := json.Marshal(cfg)
		Expect(err).NotTo(HaveOccurred())
		return models.Integration{ID: uuid.New(), ProjectID: projectID, Type: typ, Config: raw, IsActive: true}
	}

	notify := func(event string) error {
		n := worker.NewNotifier(memReleases{rel.ID: rel}, list, server.Client(), nil)
		n.SetNow(func() time.Time { return time.Unix(1_790_000_000, 0) })
		return n.Notify(context.Background(), queue.ReleaseNotifyPayload{ReleaseID: rel.ID, ProjectID: projectID, Event: event})
	}

	byPath := func(path string) captured {
		mu.Lock()
		defer mu.Unlock()
		for _, r := range requests {
			if r.path == path {
				return r
			}
		}
		Fail("no request to " + path)
		return captured{}
	}

	It("signs custom webhook bodies with the configured secret", func() {
		list = memIntegrations{integration(models.IntegrationCustomWebhook, models.CustomWebhookConfig{URL: server.URL + "/hook", Secret: "topsecret"})}

		Expect(notify(models.EventReleasePublished)).To(Succeed())

		req := byPath("/hook")
		Expect(req.signature).To(Equal(worker.Sign("topsecret", req.body)))
		Expect(req.signature).To(HavePrefix("sha256="))
		var body worker.WebhookBody
		Expect(json.Unmarshal(req.body, &body)).To(Succeed())
		Expect(body.Event).To(Equal(models.EventReleasePublished))
		Expect(body.Release.Slug).To(Equal("dark-mode"))
		Expect(body.SentAt).To(Equal(int64(1_790_000_000)))
	})

	It("sends unsigned bodies without a secret", func() {
		list = memIntegrations{integration(models.IntegrationCustomWebhook, models.CustomWebhookConfig{URL: server.URL + "/open"})}
		Expect(notify(models.EventReleaseArchived)).To(Succeed())
		Expect(byPath("/open").signature).To(BeEmpty())
	})

	It("skips webhooks not subscribed to the event", func() {
		list = memIntegrations{integration(models.IntegrationCustomWebhook, models.CustomWebhookConfig{
			URL:    server.URL + "/hook",
			Events: []string{models.EventReleaseArchived},
		})}
		Expect(notify(models.EventReleasePublished)).To(Succeed())
		Expect(requests).To(BeEmpty())
	})

	It("posts a text message to slack", func() {
		list = memIntegrations{integration(models.IntegrationSlack, models.SlackConfig{WebhookURL: server.URL + "/slack", Channel: "#releases"})}

		Expect(notify(models.EventReleasePublished)).To(Succeed())

		var body map[string]string
		Expect(json.Unmarshal(byPath("/slack").body, &body)).To(Succeed())
		Expect(body["text"]).To(ContainSubstring("Dark mode"))
		Expect(body["channel"]).To(Equal("#releases"))
	})

	It("ignores other integration types and inactive ones", func() {
		inactive := integration(models.IntegrationSlack, models.SlackConfig{WebhookURL: server.URL + "/slack"})
		inactive.IsActive = false
		list = memIntegrations{
			integration(models.IntegrationGitHub, models.GitHubConfig{Repo: "acme/app"}),
			inactive,
		}
		Expect(notify(models.EventReleasePublished)).To(Succeed())
		Expect(requests).To(BeEmpty())
	})

	It("fails the job when a target rejects the delivery", func() {
		status = http.StatusInternalServerError
		list = memIntegrations{integration(models.IntegrationCustomWebhook, models.CustomWebhookConfig{URL: server.URL + "/hook"})}
		Expect(notify(models.EventReleasePublished)).To(MatchError(ContainSubstring("500")))
	})

	It("drops notifications for deleted releases", func() {
		list = memIntegrations{integration(models.IntegrationCustomWebhook, models.CustomWebhookConfig{URL: server.URL + "/hook"})}
		n := worker.NewNotifier(memReleases{}, list, server.Client(), nil)
		Expect(n.Notify(context.Background(), queue.ReleaseNotifyPayload{ReleaseID: uuid.New(), ProjectID: projectID})).To(Succeed())
		Expect(requests).To(BeEmpty())
	})
})
