package integrations_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/releaselayer/backend/internal/integrations"
	"github.com/releaselayer/backend/internal/middleware"
	"github.com/releaselayer/backend/internal/models"
)

var _ = Describe("Handler", func() {
	var (
		store     *memStore
		source    *fakeSource
		importer  *memImporter
		plan      models.Plan
		router    *gin.Engine
		projectID uuid.UUID
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		store = newMemStore()
		source = &fakeSource{}
		importer = &memImporter{refs: map[string]bool{}}
		plan = models.PlanStarter
		projectID = uuid.New()
	})

	JustBeforeEach(func() {
		h := integrations.NewHandler(integrations.Deps{
			Store:    store,
			Plans:    fixedPlan(plan),
			Source:   source,
			Importer: importer,
			Renderer: passthroughRenderer{},
		})
		router = gin.New()
		router.Use(func(c *gin.Context) {
			c.Set(middleware.ContextOrganizationID, uuid.New())
			c.Next()
		})
		router.GET("/projects/:id/integrations", h.List)
		router.POST("/projects/:id/integrations", h.Create)
		router.GET("/integrations/:id", h.Get)
		router.PATCH("/integrations/:id", h.Update)
		router.DELETE("/integrations/:id", h.Delete)
		router.POST("/integrations/:id/sync", h.Sync)
	})

	do := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	dataOf := func(w *httptest.ResponseRecorder) models.Integration {
		var resp struct {
			Data models.Integration `json:"data"`
		}
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		return resp.Data
	}

	configOf := func(in models.Integration) map[string]any {
		var cfg map[string]any
		Expect(json.Unmarshal(in.Config, &cfg)).To(Succeed())
		return cfg
	}

	seed := func(typ models.IntegrationType, config string, active bool) *models.Integration {
		in := &models.Integration{ProjectID: projectID, Type: typ, Config: json.RawMessage(config), IsActive: active}
		Expect(store.Create(context.Background(), in)).To(Succeed())
		return in
	}

	Describe("Create", func() {
		It("stores the config and redacts secrets in the response", func() {
			w := do(http.MethodPost, "/projects/"+projectID.String()+"/integrations",
				`{"type":"custom_webhook","config":{"url":"https://hooks.example.com/rl","secret":"s3cr3t"}}`)

			Expect(w.Code).To(Equal(http.StatusCreated))
			created := dataOf(w)
			Expect(created.IsActive).To(BeTrue())
			Expect(configOf(created)).To(HaveKeyWithValue("secret", integrations.Mask))
			Expect(string(store.items[created.ID].Config)).To(ContainSubstring("s3cr3t"))
		})

		It("rejects config that does not match the type", func() {
			w := do(http.MethodPost, "/projects/"+projectID.String()+"/integrations",
				`{"type":"gitlab","config":{"projectId":"42"}}`)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(w.Body.String()).To(ContainSubstring("config.token"))
		})

		Context("on the free plan", func() {
			BeforeEach(func() { plan = models.PlanFree })

			It("returns 402", func() {
				w := do(http.MethodPost, "/projects/"+projectID.String()+"/integrations",
					`{"type":"slack","config":{"webhookUrl":"https://hooks.slack.com/services/x"}}`)
				Expect(w.Code).To(Equal(http.StatusPaymentRequired))
				Expect(store.items).To(BeEmpty())
			})
		})
	})

	Describe("Update", func() {
		It("keeps the stored secret when the mask is sent back", func() {
			in := seed(models.IntegrationGitLab, `{"projectId":"42","token":"glpat-abc"}`, true)

			w := do(http.MethodPatch, "/integrations/"+in.ID.String(),
				`{"config":{"projectId":"43","token":"********"}}`)

			Expect(w.Code).To(Equal(http.StatusOK))
			var stored models.GitLabConfig
			Expect(json.Unmarshal(store.items[in.ID].Config, &stored)).To(Succeed())
			Expect(stored.ProjectID).To(Equal("43"))
			Expect(stored.Token).To(Equal("glpat-abc"))
			Expect(configOf(dataOf(w))).To(HaveKeyWithValue("token", integrations.Mask))
		})

		It("validates against the stored type", func() {
			in := seed(models.IntegrationSlack, `{"webhookUrl":"https://hooks.slack.com/services/x"}`, true)

			w := do(http.MethodPatch, "/integrations/"+in.ID.String(), `{"config":{"webhookUrl":"http://insecure.example.com"}}`)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("toggles the active flag alone", func() {
			in := seed(models.IntegrationSlack, `{"webhookUrl":"https://hooks.slack.com/services/x"}`, true)

			w := do(http.MethodPatch, "/integrations/"+in.ID.String(), `{"isActive":false}`)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(store.items[in.ID].IsActive).To(BeFalse())
			Expect(string(store.items[in.ID].Config)).To(ContainSubstring("hooks.slack.com"))
		})
	})

	Describe("List", func() {
		It("redacts every integration", func() {
			seed(models.IntegrationGitHub, `{"repo":"acme/app","token":"ghp_x"}`, true)

			w := do(http.MethodGet, "/projects/"+projectID.String()+"/integrations", "")
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).NotTo(ContainSubstring("ghp_x"))
		})
	})

	Describe("Sync", func() {
		It("imports gitlab releases as drafts once", func() {
			in := seed(models.IntegrationGitLab, `{"projectId":"42","token":"glpat-abc"}`, true)
			source.releases = []integrations.ExternalRelease{
				{Tag: "v1.2.0", Name: "Faster search", Description: "Search is **faster**."},
				{Tag: "v1.1.0", Description: ""},
			}

			w := do(http.MethodPost, "/integrations/"+in.ID.String()+"/sync", "")
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(ContainSubstring(`"imported":2`))
			Expect(source.got.Token).To(Equal("glpat-abc"))
			Expect(importer.imported[0].Slug).To(Equal("v1-2-0"))
			Expect(importer.imported[0].Status).To(Equal(models.ReleaseStatusDraft))
			Expect(importer.imported[0].ContentHTML).To(ContainSubstring("faster"))
			Expect(importer.imported[1].Title).To(Equal("v1.1.0"))
			Expect(importer.imported[1].ContentMd).To(Equal("Release v1.1.0"))

			w = do(http.MethodPost, "/integrations/"+in.ID.String()+"/sync", "")
			Expect(w.Body.String()).To(ContainSubstring(`"skipped":2`))
			Expect(importer.imported).To(HaveLen(2))
		})

		It("cuts long multibyte names on character boundaries", func() {
			in := seed(models.IntegrationGitLab, `{"projectId":"42","token":"t"}`, true)
			source.releases = []integrations.ExternalRelease{
				{Tag: "v2.0.0", Name: "a" + strings.Repeat("é", 250)},
			}

			w := do(http.MethodPost, "/integrations/"+in.ID.String()+"/sync", "")
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(importer.imported).To(HaveLen(1))
			title := importer.imported[0].Title
			Expect(utf8.ValidString(title)).To(BeTrue())
			Expect(utf8.RuneCountInString(title)).To(Equal(200))
			Expect(title).To(HavePrefix("aé"))
		})

		It("rejects non-gitlab integrations", func() {
			in := seed(models.IntegrationSlack, `{"webhookUrl":"https://hooks.slack.com/services/x"}`, true)
			Expect(do(http.MethodPost, "/integrations/"+in.ID.String()+"/sync", "").Code).To(Equal(http.StatusBadRequest))
		})

		It("refuses inactive integrations", func() {
			in := seed(models.IntegrationGitLab, `{"projectId":"42","token":"t"}`, false)
			Expect(do(http.MethodPost, "/integrations/"+in.ID.String()+"/sync", "").Code).To(Equal(http.StatusConflict))
		})

		It("returns 502 when gitlab fails", func() {
			in := seed(models.IntegrationGitLab, `{"projectId":"42","token":"t"}`, true)
			source.err = errUpstream
			Expect(do(http.MethodPost, "/integrations/"+in.ID.String()+"/sync", "").Code).To(Equal(http.StatusBadGateway))
		})
	})

	It("deletes and then returns 404", func() {
		in := seed(models.IntegrationSlack, `{"webhookUrl":"https://hooks.slack.com/services/x"}`, true)
		Expect(do(http.MethodDelete, "/integrations/"+in.ID.String(), "").Code).To(Equal(http.StatusNoContent))
		Expect(do(http.MethodGet, "/integrations/"+in.ID.String(), "").Code).To(Equal(http.StatusNotFound))
	})
})
