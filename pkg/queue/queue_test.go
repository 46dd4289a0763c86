package queue

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("queueFor", func() {
	It("routes notifications to their own list", func() {
		Expect(queueFor(JobTypeReleaseNotify)).To(Equal(QueueNotifications))
		Expect(queueFor(JobTypeTrackEvents)).To(Equal(QueueEvents))
	})

	It("sends unknown job types to the events list", func() {
		Expect(queueFor(JobType("other"))).To(Equal(QueueEvents))
	})
})
