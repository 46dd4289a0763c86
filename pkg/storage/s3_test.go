package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("asset keys", func() {
	pid := uuid.MustParse("11111111-1111-1111-1111-111111111111")

	It("keeps keys under the project prefix with a sanitized stem", func() {
		key := AssetKey(pid, "../My Screenshot_v2.PNG", "image/png")
		Expect(key).To(HavePrefix("assets/11111111-1111-1111-1111-111111111111/"))
		Expect(key).To(HaveSuffix("-my-screenshot-v2.png"))
		Expect(key).NotTo(ContainSubstring(".."))
	})

	It("takes the extension from the content type", func() {
		Expect(AssetKey(pid, "photo.png", "image/webp")).To(HaveSuffix("-photo.webp"))
	})

	It("drops an empty stem", func() {
		key := AssetKey(pid, "???.gif", "image/gif")
		Expect(key).To(MatchRegexp(`^assets/[0-9a-f-]+/[0-9a-f-]{36}\.gif$`))
	})
})

var _ = Describe("S3", func() {
	It("builds bucket URLs unless a public base is set", func() {
		s := &S3{cfg: S3Config{Region: "us-east-1", AssetsBucket: "rl-assets"}}
		Expect(s.PublicURL("assets/a.png")).To(Equal("https://rl-assets.s3.us-east-1.amazonaws.com/assets/a.png"))

		s.cfg.PublicBaseURL = "https://cdn.example.com/"
		Expect(s.PublicURL("assets/a.png")).To(Equal("https://cdn.example.com/assets/a.png"))
	})

	It("defaults the presign window to 15 minutes", func() {
		Expect((&S3{}).PresignExpire()).To(Equal(15 * time.Minute))
		Expect((&S3{cfg: S3Config{PresignExpireMinutes: 5}}).PresignExpire()).To(Equal(5 * time.Minute))
	})

	It("rejects non-image uploads before signing", func() {
		_, err := (&S3{}).PresignAssetUpload(context.Background(), uuid.New(), "a.svg", "image/svg+xml")
		Expect(err).To(MatchError(ContainSubstring("not allowed")))
	})
})
