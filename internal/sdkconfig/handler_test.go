package sdkconfig_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/releaselayer/backend/internal/middleware"
	"github.com/releaselayer/backend/internal/models"
	"github.com/releaselayer/backend/internal/sdkconfig"
)

type memStore struct {
	configs map[uuid.UUID]models.SdkConfig
}

func (m *memStore) Get(_ context.Context, projectID uuid.UUID) (*models.SdkConfig, error) {
	if cfg, ok := m.configs[projectID]; ok {
		return &cfg, nil
	}
	def := models.DefaultSdkConfig(projectID)
	return &def, nil
}

func (m *memStore) Upsert(_ context.Context, cfg *models.SdkConfig) error {
	m.configs[cfg.ProjectID] = *cfg
	return nil
}

type fixedPlan models.Plan

func (p fixedPlan) Plan(context.Context, uuid.UUID) (models.Plan, error) {
	return models.Plan(p), nil
}

type recordingCache struct {
	invalidated []uuid.UUID
}

func (r *recordingCache) Invalidate(_ context.Context, projectID uuid.UUID) error {
	r.invalidated = append(r.invalidated, projectID)
	return nil
}

var _ = Describe("Handler", func() {
	var (
		store     *memStore
		cache     *recordingCache
		plan      models.Plan
		router    *gin.Engine
		projectID uuid.UUID
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		store = &memStore{configs: map[uuid.UUID]models.SdkConfig{}}
		cache = &recordingCache{}
		plan = models.PlanFree
		projectID = uuid.New()
	})

	JustBeforeEach(func() {
		h := sdkconfig.NewHandler(store, fixedPlan(plan), cache, nil)
		router = gin.New()
		router.Use(func(c *gin.Context) {
			c.Set(middleware.ContextOrganizationID, uuid.New())
			c.Next()
		})
		router.GET("/sdk-config/:projectId", h.Get)
		router.PUT("/sdk-config/:projectId", h.Update)
	})

	do := func(method, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, "/sdk-config/"+projectID.String(), bytes.NewBufferString(body))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	It("serves defaults for a project without config", func() {
		w := do(http.MethodGet, "")
		Expect(w.Code).To(Equal(http.StatusOK))

		var resp struct {
			Data models.SdkConfig `json:"data"`
		}
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Data.Position).To(Equal(models.PositionBottomRight))
		Expect(resp.Data.ZIndex).To(Equal(2147483000))
	})

	It("merges a partial update and invalidates the snapshot", func() {
		w := do(http.MethodPut, `{"position":"top-left","theme":{"primary":"#111"}}`)

		Expect(w.Code).To(Equal(http.StatusOK))
		saved := store.configs[projectID]
		Expect(saved.Position).To(Equal(models.PositionTopLeft))
		Expect(string(saved.Theme)).To(MatchJSON(`{"primary":"#111"}`))
		Expect(saved.ZIndex).To(Equal(2147483000))
		Expect(cache.invalidated).To(ConsistOf(projectID))
	})

	It("rejects an unknown position", func() {
		Expect(do(http.MethodPut, `{"position":"middle"}`).Code).To(Equal(http.StatusBadRequest))
	})

	It("requires a plan with custom CSS", func() {
		w := do(http.MethodPut, `{"customCss":".rl{color:red}"}`)
		Expect(w.Code).To(Equal(http.StatusPaymentRequired))
		Expect(store.configs).To(BeEmpty())
	})

	It("allows clearing custom CSS on any plan", func() {
		Expect(do(http.MethodPut, `{"customCss":""}`).Code).To(Equal(http.StatusOK))
	})

	Context("on the growth plan", func() {
		BeforeEach(func() { plan = models.PlanGrowth })

		It("saves custom CSS", func() {
			Expect(do(http.MethodPut, `{"customCss":".rl{color:red}"}`).Code).To(Equal(http.StatusOK))
			Expect(store.configs[projectID].CustomCSS).To(Equal(".rl{color:red}"))
		})
	})
})
