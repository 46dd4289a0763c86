package checklists_test

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

	"github.com/releaselayer/backend/internal/checklists"
	"github.com/releaselayer/backend/internal/models"
	"github.com/releaselayer/backend/pkg/database"
)

type memStore struct {
	lists    map[uuid.UUID]*models.Checklist
	replaced bool
}

func (m *memStore) Create(_ context.Context, cl *models.Checklist) error {
	cl.ID = uuid.New()
	for i := range cl.Items {
		cl.Items[i].ID = uuid.New()
		cl.Items[i].ChecklistID = cl.ID
	}
	cp := *cl
	m.lists[cl.ID] = &cp
	return nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*models.Checklist, error) {
	cl, ok := m.lists[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *cl
	return &cp, nil
}

func (m *memStore) ListByProject(_ context.Context, projectID uuid.UUID) ([]models.Checklist, error) {
	out := []models.Checklist{}
	for _, cl := range m.lists {
		if cl.ProjectID == projectID {
			out = append(out, *cl)
		}
	}
	return out, nil
}

func (m *memStore) Update(_ context.Context, cl *models.Checklist, replaceItems bool) error {
	m.replaced = replaceItems
	cp := *cl
	m.lists[cl.ID] = &cp
	return nil
}

func (m *memStore) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.lists, id)
	return nil
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
		router    *gin.Engine
		projectID uuid.UUID
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		store = &memStore{lists: map[uuid.UUID]*models.Checklist{}}
		cache = &recordingCache{}
		projectID = uuid.New()
		h := checklists.NewHandler(store, cache, nil)
		router = gin.New()
		router.GET("/projects/:id/checklists", h.List)
		router.POST("/projects/:id/checklists", h.Create)
		router.GET("/checklists/:id", h.Get)
		router.PUT("/checklists/:id", h.Update)
		router.DELETE("/checklists/:id", h.Delete)
	})

	do := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	create := func() models.Checklist {
		w := do(http.MethodPost, "/projects/"+projectID.String()+"/checklists", `{"title":"Onboarding","items":[
			{"title":"Connect repo","trackEvent":"repo.connected"},
			{"title":"Invite team","trackEvent":"team.invited","actionUrl":"https://app.example.com/team"}]}`)
		Expect(w.Code).To(Equal(http.StatusCreated))
		var resp struct {
			Data models.Checklist `json:"data"`
		}
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		return resp.Data
	}

	It("creates a checklist with ordered items", func() {
		cl := create()

		Expect(cl.IsActive).To(BeTrue())
		Expect(cl.Items).To(HaveLen(2))
		Expect(cl.Items[0].SortOrder).To(Equal(0))
		Expect(cl.Items[1].TrackEvent).To(Equal("team.invited"))
		Expect(cache.invalidated).To(ConsistOf(projectID))
	})

	It("keeps items when the update omits them", func() {
		cl := create()
		w := do(http.MethodPut, "/checklists/"+cl.ID.String(), `{"title":"Getting started"}`)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(store.replaced).To(BeFalse())
		Expect(store.lists[cl.ID].Items).To(HaveLen(2))
		Expect(store.lists[cl.ID].Title).To(Equal("Getting started"))
	})

	It("replaces items in the given order", func() {
		cl := create()
		w := do(http.MethodPut, "/checklists/"+cl.ID.String(), `{"items":[{"title":"Only step","trackEvent":"done"}]}`)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(store.replaced).To(BeTrue())
		Expect(store.lists[cl.ID].Items).To(HaveLen(1))
		Expect(store.lists[cl.ID].Items[0].Title).To(Equal("Only step"))
	})

	It("clears items with an empty list", func() {
		cl := create()
		w := do(http.MethodPut, "/checklists/"+cl.ID.String(), `{"items":[]}`)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(store.replaced).To(BeTrue())
		Expect(store.lists[cl.ID].Items).To(BeEmpty())
	})

	It("rejects invalid items", func() {
		w := do(http.MethodPost, "/projects/"+projectID.String()+"/checklists", `{"title":"x","items":[{"title":"","trackEvent":"ok"}]}`)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(w.Body.String()).To(ContainSubstring("items[0].title"))
	})

	It("returns 404 for unknown checklists", func() {
		Expect(do(http.MethodGet, "/checklists/"+uuid.NewString(), "").Code).To(Equal(http.StatusNotFound))
	})

	It("deletes", func() {
		cl := create()
		Expect(do(http.MethodDelete, "/checklists/"+cl.ID.String(), "").Code).To(Equal(http.StatusNoContent))
		Expect(store.lists).To(BeEmpty())
	})
})
