package sdk_test

import (
	"context"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/releaselayer/backend/internal/models"
	"github.com/releaselayer/backend/internal/sdk"
)

var _ = Describe("Loader", func() {
	var (
		ctx      context.Context
		projects *memProjects
		cache    *memCache
		loader   *sdk.Loader
		project  *models.Project
	)

	BeforeEach(func() {
		ctx = context.Background()
		project = &models.Project{ID: uuid.New(), OrganizationID: uuid.New(), SdkKey: "rl_pk_live"}
		projects = &memProjects{byID: map[uuid.UUID]*models.Project{project.ID: project}}
		cache = newMemCache()
		loader = &sdk.Loader{
			Projects:   projects,
			Releases:   liveReleases{{ID: uuid.New(), Title: "Dark mode", Status: models.ReleaseStatusPublished}},
			Checklists: activeChecklists{},
			Configs:    defaultConfigs{},
			Plans:      fixedPlan(models.PlanGrowth),
			Cache:      cache,
		}
	})

	It("builds and caches a snapshot", func() {
		snap, err := loader.Load(ctx, "rl_pk_live")
		Expect(err).NotTo(HaveOccurred())
		Expect(snap.ProjectID).To(Equal(project.ID))
		Expect(snap.OrganizationID).To(Equal(project.OrganizationID))
		Expect(snap.Plan).To(Equal(models.PlanGrowth))
		Expect(snap.Releases).To(HaveLen(1))
		Expect(cache.keys).To(HaveKeyWithValue("rl_pk_live", project.ID))
		Expect(cache.snapshots).To(HaveKey(project.ID))
	})

	It("serves repeated loads from the cache", func() {
		_, err := loader.Load(ctx, "rl_pk_live")
		Expect(err).NotTo(HaveOccurred())
		calls := projects.calls

		snap, err := loader.Load(ctx, "rl_pk_live")
		Expect(err).NotTo(HaveOccurred())
		Expect(projects.calls).To(Equal(calls))
		Expect(snap.Releases[0].Title).To(Equal("Dark mode"))
	})

	It("rebuilds after the snapshot was invalidated", func() {
		_, err := loader.Load(ctx, "rl_pk_live")
		Expect(err).NotTo(HaveOccurred())
		delete(cache.snapshots, project.ID)

		_, err = loader.Load(ctx, "rl_pk_live")
		Expect(err).NotTo(HaveOccurred())
		Expect(cache.snapshots).To(HaveKey(project.ID))
	})

	It("rejects a rotated key even with a stale mapping", func() {
		_, err := loader.Load(ctx, "rl_pk_live")
		Expect(err).NotTo(HaveOccurred())
		project.SdkKey = "rl_pk_new"
		delete(cache.snapshots, project.ID)

		_, err = loader.Load(ctx, "rl_pk_live")
		Expect(err).To(MatchError(sdk.ErrUnknownKey))
		Expect(cache.keys).NotTo(HaveKey("rl_pk_live"))
	})

	It("stops serving a rotated key once a snapshot for the new key exists", func() {
		_, err := loader.Load(ctx, "rl_pk_live")
		Expect(err).NotTo(HaveOccurred())
		project.SdkKey = "rl_pk_new"

		snap, err := loader.Load(ctx, "rl_pk_new")
		Expect(err).NotTo(HaveOccurred())
		Expect(snap.SdkKey).To(Equal("rl_pk_new"))
		Expect(cache.keys).To(HaveKey("rl_pk_live"))

		_, err = loader.Load(ctx, "rl_pk_live")
		Expect(err).To(MatchError(sdk.ErrUnknownKey))
		Expect(cache.keys).NotTo(HaveKey("rl_pk_live"))
	})

	It("returns ErrUnknownKey for unknown keys", func() {
		_, err := loader.Load(ctx, "rl_pk_nope")
		Expect(err).To(MatchError(sdk.ErrUnknownKey))
	})

	It("works without a cache", func() {
		loader.Cache = nil
		snap, err := loader.Load(ctx, "rl_pk_live")
		Expect(err).NotTo(HaveOccurred())
		Expect(snap.ProjectID).To(Equal(project.ID))
	})
})
