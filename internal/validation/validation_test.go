package validation_test

import (
	"encoding/json"
	"fmt"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/releaselayer/backend/internal/models"
	"github.com/releaselayer/backend/internal/validation"
)

func fieldsOf(err error) []string {
	errs, ok := validation.AsErrors(err)
	Expect(ok).To(BeTrue(), "expected validation.Errors, got %v", err)
	out := make([]string, 0, len(errs))
	for _, fe := range errs {
		out = append(out, fe.Field)
	}
	return out
}

var _ = Describe("ParseCreateProject", func() {
	DescribeTable("rejects bad slugs",
		func(slug string) {
			body := fmt.Sprintf(`{"name":"Acme","slug":%q}`, slug)
			_, err := validation.ParseCreateProject([]byte(body))
			Expect(fieldsOf(err)).To(ContainElement("slug"))
		},
		Entry("uppercase", "Acme"),
		Entry("space", "acme app"),
		Entry("underscore", "acme_app"),
		Entry("dot", "acme.app"),
		Entry("empty", ""),
		Entry("too long", strings.Repeat("a", 51)),
	)

	DescribeTable("accepts lowercase alphanumerics with hyphens",
		func(slug string) {
			in, err := validation.ParseCreateProject([]byte(fmt.Sprintf(`{"name":"Acme","slug":%q}`, slug)))
			Expect(err).NotTo(HaveOccurred())
			Expect(in.Slug).To(Equal(slug))
		},
		Entry("plain", "acme"),
		Entry("hyphenated", "acme-web-2"),
		Entry("digits", "42"),
	)

	It("bounds the name length", func() {
		_, err := validation.ParseCreateProject([]byte(`{"name":"","slug":"acme"}`))
		Expect(fieldsOf(err)).To(ConsistOf("name"))

		long := strings.Repeat("n", 101)
		_, err = validation.ParseCreateProject([]byte(fmt.Sprintf(`{"name":%q,"slug":"acme"}`, long)))
		Expect(fieldsOf(err)).To(ConsistOf("name"))
	})

	It("reports malformed input instead of panicking", func() {
		for _, body := range []string{``, `null`, `[]`, `"x"`, `{"name":`, `{"name":5,"slug":"a"}`} {
			_, err := validation.ParseCreateProject([]byte(body))
			Expect(err).To(HaveOccurred(), body)
			_, ok := validation.AsErrors(err)
			Expect(ok).To(BeTrue(), body)
		}
	})

	It("names the field on a JSON type mismatch", func() {
		_, err := validation.ParseCreateProject([]byte(`{"name":5,"slug":"a"}`))
		errs, _ := validation.AsErrors(err)
		Expect(errs[0].Field).To(Equal("name"))
		Expect(errs[0].Message).To(Equal("must be a string"))
	})
})

var _ = Describe("ParseUpdateProject", func() {
	It("accepts an empty partial update", func() {
		in, err := validation.ParseUpdateProject([]byte(`{}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(in.Name).To(BeNil())
		Expect(in.Slug).To(BeNil())
	})

	It("still validates fields that are present", func() {
		_, err := validation.ParseUpdateProject([]byte(`{"slug":"Bad Slug"}`))
		Expect(fieldsOf(err)).To(ConsistOf("slug"))
	})
})

var _ = Describe("ParseCreateRelease", func() {
	const base = `{"title":"v2.0","slug":"v2-0","contentMd":"# Hello"%s}`

	It("applies defaults", func() {
		in, err := validation.ParseCreateRelease([]byte(fmt.Sprintf(base, "")))
		Expect(err).NotTo(HaveOccurred())
		Expect(in.DisplayType).To(Equal(models.DisplayTypeModal))
		Expect(in.ShowOnce).NotTo(BeNil())
		Expect(*in.ShowOnce).To(BeTrue())
		Expect(in.Status).To(Equal(models.ReleaseStatusDraft))
	})

	It("keeps explicit showOnce=false", func() {
		in, err := validation.ParseCreateRelease([]byte(fmt.Sprintf(base, `,"showOnce":false,"displayType":"banner"`)))
		Expect(err).NotTo(HaveOccurred())
		Expect(*in.ShowOnce).To(BeFalse())
		Expect(in.DisplayType).To(Equal(models.DisplayTypeBanner))
	})

	It("rejects an empty contentMd", func() {
		_, err := validation.ParseCreateRelease([]byte(`{"title":"v2","slug":"v2","contentMd":""}`))
		Expect(fieldsOf(err)).To(ContainElement("contentMd"))
	})

	It("rejects an unknown display type", func() {
		_, err := validation.ParseCreateRelease([]byte(fmt.Sprintf(base, `,"displayType":"popup"`)))
		Expect(fieldsOf(err)).To(ConsistOf("displayType"))
	})

	It("rejects non-integer epoch timestamps", func() {
		_, err := validation.ParseCreateRelease([]byte(fmt.Sprintf(base, `,"publishAt":1.5`)))
		Expect(fieldsOf(err)).To(ConsistOf("publishAt"))
	})

	It("requires targetTraits to be an object", func() {
		_, err := validation.ParseCreateRelease([]byte(fmt.Sprintf(base, `,"targetTraits":["pro"]`)))
		Expect(fieldsOf(err)).To(ConsistOf("targetTraits"))

		in, err := validation.ParseCreateRelease([]byte(fmt.Sprintf(base, `,"targetTraits":{"plan":"pro"}`)))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(in.TargetTraits)).To(Equal(`{"plan":"pro"}`))
	})

	It("requires publishAt for scheduled releases", func() {
		_, err := validation.ParseCreateRelease([]byte(fmt.Sprintf(base, `,"status":"scheduled"`)))
		Expect(fieldsOf(err)).To(ConsistOf("publishAt"))
	})

	DescribeTable("schedule window",
		func(extra string, ok bool) {
			_, err := validation.ParseCreateRelease([]byte(fmt.Sprintf(base, extra)))
			if ok {
				Expect(err).NotTo(HaveOccurred())
			} else {
				Expect(fieldsOf(err)).To(ConsistOf("unpublishAt"))
			}
		},
		Entry("unpublish before publish", `,"publishAt":200,"unpublishAt":100`, false),
		Entry("unpublish equal to publish", `,"publishAt":200,"unpublishAt":200`, false),
		Entry("unpublish after publish", `,"publishAt":200,"unpublishAt":201`, true),
		Entry("only publishAt", `,"publishAt":200`, true),
		Entry("only unpublishAt", `,"unpublishAt":100`, true),
	)
})

var _ = Describe("ParseUpdateRelease", func() {
	It("leaves omitted fields nil", func() {
		in, err := validation.ParseUpdateRelease([]byte(`{"title":"New title"}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(*in.Title).To(Equal("New title"))
		Expect(in.ContentMd).To(BeNil())
		Expect(in.DisplayType).To(BeNil())
	})

	It("flags explicit nulls as clears", func() {
		in, err := validation.ParseUpdateRelease([]byte(`{"publishAt":null,"targetTraits":null,"unpublishAt":5}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(in.ClearPublishAt).To(BeTrue())
		Expect(in.ClearTargetTraits).To(BeTrue())
		Expect(in.ClearUnpublishAt).To(BeFalse())
		Expect(*in.UnpublishAt).To(Equal(int64(5)))
		Expect(in.TargetTraits).To(BeNil())
	})

	It("writes clears back as nulls", func() {
		at := int64(7)
		raw, err := json.Marshal(validation.UpdateReleaseInput{PublishAt: &at, ClearTargetTraits: true})
		Expect(err).NotTo(HaveOccurred())
		Expect(raw).To(MatchJSON(`{"publishAt":7,"targetTraits":null}`))

		in, err := validation.ParseUpdateRelease(raw)
		Expect(err).NotTo(HaveOccurred())
		Expect(in.ClearTargetTraits).To(BeTrue())
	})

	It("checks the schedule when both bounds are present", func() {
		_, err := validation.ParseUpdateRelease([]byte(`{"publishAt":50,"unpublishAt":10}`))
		Expect(fieldsOf(err)).To(ConsistOf("unpublishAt"))
	})
})

var _ = Describe("ValidateSchedule", func() {
	p := func(v int64) *int64 { return &v }

	It("accepts when either bound is missing", func() {
		Expect(validation.ValidateSchedule(nil, nil)).To(BeEmpty())
		Expect(validation.ValidateSchedule(p(10), nil)).To(BeEmpty())
		Expect(validation.ValidateSchedule(nil, p(10))).To(BeEmpty())
	})

	It("rejects unpublishAt <= publishAt", func() {
		Expect(validation.ValidateSchedule(p(10), p(10))).To(HaveLen(1))
		Expect(validation.ValidateSchedule(p(10), p(9))).To(HaveLen(1))
		Expect(validation.ValidateSchedule(p(10), p(11))).To(BeEmpty())
	})
})

var _ = Describe("ParseTrackEvents", func() {
	const event = `{"type":"view","endUserId":"user-1","releaseId":"3f2504e0-4f89-41d3-9a0c-0305e82c3301"}`

	It("accepts a single event object directly", func() {
		events, err := validation.ParseTrackEvents([]byte(event))
		Expect(err).NotTo(HaveOccurred())
		Expect(events).To(HaveLen(1))
		Expect(events[0].Type).To(Equal(models.SdkEventView))
		Expect(events[0].ReleaseID.String()).To(Equal("3f2504e0-4f89-41d3-9a0c-0305e82c3301"))
	})

	It("accepts a batch", func() {
		events, err := validation.ParseTrackEvents([]byte("[" + event + "," + event + "]"))
		Expect(err).NotTo(HaveOccurred())
		Expect(events).To(HaveLen(2))
	})

	It("rejects an empty array", func() {
		_, err := validation.ParseTrackEvents([]byte(`[]`))
		Expect(err).To(HaveOccurred())
	})

	It("rejects more than 50 events", func() {
		batch := make([]json.RawMessage, 51)
		for i := range batch {
			batch[i] = json.RawMessage(event)
		}
		raw, _ := json.Marshal(batch)
		_, err := validation.ParseTrackEvents(raw)
		Expect(err).To(HaveOccurred())

		raw, _ = json.Marshal(batch[:50])
		events, err := validation.ParseTrackEvents(raw)
		Expect(err).NotTo(HaveOccurred())
		Expect(events).To(HaveLen(50))
	})

	It("rejects unknown event types and missing endUserId", func() {
		_, err := validation.ParseTrackEvents([]byte(`[{"type":"hover","endUserId":"u"},{"type":"click"}]`))
		Expect(fieldsOf(err)).To(ConsistOf("[0].type", "[1].endUserId"))
	})

	It("requires trackEvent on checklist_complete", func() {
		_, err := validation.ParseTrackEvents([]byte(`{"type":"checklist_complete","endUserId":"u"}`))
		Expect(fieldsOf(err)).To(ConsistOf("trackEvent"))
	})

	It("rejects a malformed release id", func() {
		_, err := validation.ParseTrackEvents([]byte(`{"type":"click","endUserId":"u","releaseId":"nope"}`))
		Expect(fieldsOf(err)).To(ConsistOf("releaseId"))
	})
})

var _ = Describe("ParseCreateIntegration", func() {
	configs := map[models.IntegrationType]string{
		models.IntegrationGitHub:        `{"repo":"acme/web"}`,
		models.IntegrationGitLab:        `{"projectId":"42","token":"glpat-x"}`,
		models.IntegrationSlack:         `{"webhookUrl":"https://hooks.slack.com/services/T/B/X"}`,
		models.IntegrationCustomWebhook: `{"url":"https://example.com/hook","secret":"s"}`,
	}

	It("accepts exactly the four integration types", func() {
		Expect(models.IntegrationTypes).To(HaveLen(4))
		for _, typ := range models.IntegrationTypes {
			body := fmt.Sprintf(`{"type":%q,"config":%s}`, typ, configs[typ])
			in, err := validation.ParseCreateIntegration([]byte(body))
			Expect(err).NotTo(HaveOccurred(), string(typ))
			Expect(in.Type).To(Equal(typ))
			Expect(*in.IsActive).To(BeTrue())
		}
	})

	DescribeTable("rejects any other type",
		func(typ string) {
			_, err := validation.ParseCreateIntegration([]byte(fmt.Sprintf(`{"type":%q,"config":{}}`, typ)))
			Expect(fieldsOf(err)).To(ContainElement("type"))
		},
		Entry("jira", "jira"),
		Entry("case mismatch", "GitHub"),
		Entry("empty", ""),
	)

	It("requires config to be a JSON object", func() {
		_, err := validation.ParseCreateIntegration([]byte(`{"type":"slack"}`))
		Expect(fieldsOf(err)).To(ConsistOf("config"))

		_, err = validation.ParseCreateIntegration([]byte(`{"type":"slack","config":"https://hooks"}`))
		Expect(fieldsOf(err)).To(ConsistOf("config"))
	})

	It("validates config against the type", func() {
		_, err := validation.ParseCreateIntegration([]byte(`{"type":"slack","config":{"webhookUrl":"http://insecure"}}`))
		Expect(fieldsOf(err)).To(ConsistOf("config.webhookUrl"))

		_, err = validation.ParseCreateIntegration([]byte(`{"type":"github","config":{"repo":"no-owner"}}`))
		Expect(fieldsOf(err)).To(ConsistOf("config.repo"))
	})

	It("drops unknown config keys", func() {
		in, err := validation.ParseCreateIntegration([]byte(`{"type":"github","config":{"repo":"acme/web","extra":1},"isActive":false}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(in.Config)).To(Equal(`{"repo":"acme/web"}`))
		Expect(*in.IsActive).To(BeFalse())
	})
})

var _ = Describe("ParseUpdateIntegration", func() {
	It("validates config against the stored type", func() {
		_, err := validation.ParseUpdateIntegration([]byte(`{"config":{"url":"not a url"}}`), models.IntegrationCustomWebhook)
		Expect(fieldsOf(err)).To(ConsistOf("config.url"))
	})

	It("allows toggling without config", func() {
		in, err := validation.ParseUpdateIntegration([]byte(`{"isActive":false}`), models.IntegrationSlack)
		Expect(err).NotTo(HaveOccurred())
		Expect(in.Config).To(BeNil())
		Expect(*in.IsActive).To(BeFalse())
	})
})

var _ = Describe("ParseCreateChecklist", func() {
	It("keeps item order and defaults isActive", func() {
		in, err := validation.ParseCreateChecklist([]byte(`{"title":"Get started","items":[
			{"title":"Invite a teammate","trackEvent":"team.invited"},
			{"title":"Create a project","trackEvent":"project.created"}]}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(*in.IsActive).To(BeTrue())
		Expect(in.Items[0].TrackEvent).To(Equal("team.invited"))
		Expect(in.Items[1].TrackEvent).To(Equal("project.created"))
	})

	It("reports item errors with their index", func() {
		_, err := validation.ParseCreateChecklist([]byte(`{"title":"x","items":[{"title":"ok","trackEvent":"a"},{"title":"","trackEvent":"has space"}]}`))
		Expect(fieldsOf(err)).To(ConsistOf("items[1].title", "items[1].trackEvent"))
	})
})

var _ = Describe("ParseUpdateSdkConfig", func() {
	It("rejects an unknown position and a negative zIndex", func() {
		_, err := validation.ParseUpdateSdkConfig([]byte(`{"position":"center","zIndex":-1}`))
		Expect(fieldsOf(err)).To(ConsistOf("position", "zIndex"))
	})

	It("requires theme to be an object", func() {
		_, err := validation.ParseUpdateSdkConfig([]byte(`{"theme":"dark"}`))
		Expect(fieldsOf(err)).To(ConsistOf("theme"))
	})
})

var _ = Describe("ParseRewriteRelease", func() {
	It("accepts an empty body", func() {
		in, err := validation.ParseRewriteRelease(nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(in.Tone).To(BeEmpty())
	})

	It("rejects an unknown tone", func() {
		_, err := validation.ParseRewriteRelease([]byte(`{"tone":"pirate"}`))
		Expect(fieldsOf(err)).To(ConsistOf("tone"))
	})
})
