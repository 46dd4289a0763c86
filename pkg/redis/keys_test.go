package redis

import (
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("keys", func() {
	org := uuid.MustParse("22222222-2222-2222-2222-222222222222")

	It("uses the UTC calendar month as the usage period", func() {
		local := time.FixedZone("UTC+3", 3*3600)
		Expect(Period(time.Date(2026, 11, 1, 1, 0, 0, 0, local))).To(Equal("2026-10"))
		Expect(Period(time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC))).To(Equal("2026-10"))
	})

	It("scopes usage counters by kind, organization and period", func() {
		Expect(usageKey("mau", org, "2026-10")).To(Equal("usage:mau:22222222-2222-2222-2222-222222222222:2026-10"))
	})

	It("keeps snapshots and key lookups in separate namespaces", func() {
		Expect(snapshotKey(org)).To(Equal("sdk:snapshot:22222222-2222-2222-2222-222222222222"))
		Expect(sdkKeyKey("rl_pk_abc")).To(Equal("sdk:key:rl_pk_abc"))
	})
})
