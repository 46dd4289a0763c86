package client_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/releaselayer/backend/internal/models"
	"github.com/releaselayer/backend/internal/validation"
	"github.com/releaselayer/backend/pkg/client"
)

type seen struct {
	method string
	path   string
	query  string
	auth   string
	sdkKey string
	body   []byte
}

var _ = Describe("Client", func() {
	var (
		ctx      context.Context
		server   *httptest.Server
		last     *seen
		requests int
		reply    func(w http.ResponseWriter, r *http.Request)
		c        *client.Client
	)

	BeforeEach(func() {
		ctx = context.Background()
		last = nil
		requests = 0
		reply = func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"data":{}}`))
		}
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			requests++
			last = &seen{
				method: r.Method,
				path:   r.URL.Path,
				query:  r.URL.RawQuery,
				auth:   r.Header.Get("Authorization"),
				sdkKey: r.Header.Get(client.SDKKeyHeader),
				body:   body,
			}
			reply(w, r)
		}))
		DeferCleanup(server.Close)
		c = client.New(server.URL+"/", client.WithToken("jwt-token"), client.WithSDKKey("rl_pk_abc"), client.WithHTTPClient(server.Client()))
	})

	respond := func(status int, body string) {
		reply = func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(body))
		}
	}

	It("validates input before sending", func() {
		_, err := c.CreateRelease(ctx, uuid.New(), validation.CreateReleaseInput{Title: "x", Slug: "Bad Slug"})

		errs, ok := validation.AsErrors(err)
		Expect(ok).To(BeTrue())
		Expect(errs).NotTo(BeEmpty())
		Expect(requests).To(BeZero())
	})

	It("sends the normalized body with the bearer token and decodes data", func() {
		projectID := uuid.New()
		respond(http.StatusCreated, `{"data":{"id":"`+uuid.NewString()+`","title":"Dark mode","slug":"dark-mode","status":"draft"}}`)

		rel, err := c.CreateRelease(ctx, projectID, validation.CreateReleaseInput{
			Title:     "  Dark mode ",
			Slug:      "dark-mode",
			ContentMd: "Now with **dark** mode",
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(rel.Title).To(Equal("Dark mode"))
		Expect(last.method).To(Equal(http.MethodPost))
		Expect(last.path).To(Equal("/projects/" + projectID.String() + "/releases"))
		Expect(last.auth).To(Equal("Bearer jwt-token"))

		var sent map[string]any
		Expect(json.Unmarshal(last.body, &sent)).To(Succeed())
		Expect(sent).To(HaveKeyWithValue("title", "Dark mode"))
		Expect(sent).To(HaveKeyWithValue("displayType", "modal"))
		Expect(sent).To(HaveKeyWithValue("status", "draft"))
		Expect(sent).To(HaveKeyWithValue("showOnce", true))
	})

	It("returns an APIError with the server message", func() {
		respond(http.StatusPaymentRequired, `{"error":"project limit reached for your plan"}`)

		_, err := c.CreateProject(ctx, uuid.New(), validation.CreateProjectInput{Name: "Web", Slug: "web"})

		var apiErr *client.APIError
		Expect(err).To(BeAssignableToTypeOf(apiErr))
		Expect(client.IsStatus(err, http.StatusPaymentRequired)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("project limit reached"))
	})

	It("carries field errors from the server", func() {
		respond(http.StatusBadRequest, `{"error":"validation failed","fields":[{"field":"slug","message":"taken"}]}`)

		_, err := c.CreateOrganization(ctx, validation.CreateOrganizationInput{Name: "Acme", Slug: "acme"})

		apiErr, ok := err.(*client.APIError)
		Expect(ok).To(BeTrue())
		Expect(apiErr.Fields).To(ConsistOf(validation.FieldError{Field: "slug", Message: "taken"}))
	})

	It("handles 204 responses", func() {
		respond(http.StatusNoContent, "")
		Expect(c.DeleteProject(ctx, uuid.New())).To(Succeed())
		Expect(last.method).To(Equal(http.MethodDelete))
	})

	It("passes list filters as query parameters", func() {
		respond(http.StatusOK, `{"data":[]}`)
		list, err := c.ListReleases(ctx, uuid.New(), models.ReleaseStatusPublished)
		Expect(err).NotTo(HaveOccurred())
		Expect(list).To(BeEmpty())
		Expect(last.query).To(Equal("status=published"))
	})

	It("authenticates widget calls with the sdk key", func() {
		respond(http.StatusOK, `{"data":{"releases":[],"config":{"theme":{},"position":"bottom-right","zIndex":1,"removeBranding":false}}}`)

		resp, err := c.Init(ctx, validation.SdkInitInput{EndUserID: "u1", Traits: json.RawMessage(`{"plan":"pro"}`)})

		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Config.Position).To(Equal(models.PositionBottomRight))
		Expect(last.sdkKey).To(Equal("rl_pk_abc"))
		Expect(last.auth).To(BeEmpty())
	})

	It("sends track batches", func() {
		respond(http.StatusAccepted, `{"data":{"accepted":2}}`)
		releaseID := uuid.New()

		res, err := c.Track(ctx, []models.SdkTrackEvent{
			{Type: models.SdkEventView, EndUserID: "u1", ReleaseID: &releaseID},
			{Type: models.SdkEventChecklistComplete, EndUserID: "u1", TrackEvent: "team.invited"},
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(res.Accepted).To(Equal(2))
		Expect(last.path).To(Equal("/sdk/track"))
	})

	It("rejects an empty track batch locally", func() {
		_, err := c.Track(ctx, []models.SdkTrackEvent{})
		Expect(err).To(HaveOccurred())
		Expect(requests).To(BeZero())
	})

	It("checks integration config against the given type", func() {
		_, err := c.UpdateIntegration(ctx, uuid.New(), models.IntegrationSlack, validation.UpdateIntegrationInput{
			Config: json.RawMessage(`{"webhookUrl":"http://plain.example.com"}`),
		})
		Expect(err).To(HaveOccurred())
		Expect(requests).To(BeZero())
	})
})
