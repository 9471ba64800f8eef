package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stacklok/asteroid-radar/test-integration/asteroid-api/helpers"
)

// waitForDone waits until the persisted status reports a completed refresh
func waitForDone(server *helpers.ServerTestHelper) {
	Eventually(func(g Gomega) {
		body, err := server.GetStatus()
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(body).To(HaveKeyWithValue("sync", HaveKeyWithValue("phase", "Done")))
	}, 10*time.Second, 100*time.Millisecond).Should(Succeed())
}

var _ = Describe("Asteroid API", Label("api"), func() {
	var (
		feedServer *helpers.MockNeoWsServer
		server     *helpers.ServerTestHelper
		today      string
	)

	BeforeEach(func() {
		ws := newWorkspace(helpers.StandardWeek(), helpers.ConfigOptions{})
		feedServer = ws.feed
		today = helpers.Today().Format("2006-01-02")

		server = ws.startServer()
		waitForDone(server)
	})

	Context("Initial refresh", func() {
		It("should fetch the window starting today", func() {
			Expect(feedServer.RequestCount()).To(BeNumerically(">=", 1))
			Expect(feedServer.LastStartDate()).To(Equal(today))
		})

		It("should publish the default filter over the fetched records", func() {
			view, code, err := server.GetAsteroids("")
			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(Equal(http.StatusOK))
			Expect(view.Filter).To(Equal("week"))
			Expect(view.Today).To(Equal(today))
			Expect(view.Count).To(Equal(4))
			Expect(view.IDs()).To(Equal([]int64{1001, 1002, 1003, 1004}))
		})

		It("should report the refresh in the status", func() {
			body, err := server.GetStatus()
			Expect(err).NotTo(HaveOccurred())
			Expect(body).To(HaveKeyWithValue("engine", HaveKeyWithValue("phase", "Done")))
			Expect(body).To(HaveKeyWithValue("sync", And(
				HaveKeyWithValue("lastOutcome", "success"),
				HaveKeyWithValue("recordCount", BeNumerically("==", 4)),
				HaveKeyWithValue("referenceDate", today),
			)))
		})
	})

	Context("Filters", func() {
		It("should evaluate a filter without changing the active one", func() {
			view, code, err := server.GetAsteroids("today")
			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(Equal(http.StatusOK))
			Expect(view.IDs()).To(Equal([]int64{1001, 1002}))

			view, _, err = server.GetAsteroids("")
			Expect(err).NotTo(HaveOccurred())
			Expect(view.Filter).To(Equal("week"))
		})

		It("should change the active filter", func() {
			resp, err := server.SetFilter("today")
			Expect(err).NotTo(HaveOccurred())
			_ = resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			view, _, err := server.GetAsteroids("")
			Expect(err).NotTo(HaveOccurred())
			Expect(view.Filter).To(Equal("today"))
			Expect(view.Count).To(Equal(2))
		})

		It("should reject an unknown filter", func() {
			resp, err := server.SetFilter("month")
			Expect(err).NotTo(HaveOccurred())
			_ = resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

			_, code, err := server.GetAsteroids("month")
			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(Equal(http.StatusBadRequest))
		})
	})

	Context("Single asteroid", func() {
		DescribeTable("GET /v1/asteroids/{id}",
			func(id string, want int) {
				resp, err := server.GetAsteroid(id)
				Expect(err).NotTo(HaveOccurred())
				_ = resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(want))
			},
			Entry("cached asteroid", "1003", http.StatusOK),
			Entry("unknown asteroid", "999", http.StatusNotFound),
			Entry("invalid id", "abc", http.StatusBadRequest),
		)
	})

	Context("Manual refresh", func() {
		It("should merge new records by id", func() {
			updated := helpers.NewNeoRecord(1001, 2)
			updated.Name = "(2024 T1001) renamed"
			feedServer.SetRecords([]helpers.NeoRecord{updated, helpers.NewNeoRecord(1005, 3)})

			result, code, err := server.Refresh()
			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(Equal(http.StatusOK))
			Expect(result).To(HaveKeyWithValue("decision", "done"))

			view, _, err := server.GetAsteroids("all")
			Expect(err).NotTo(HaveOccurred())
			Expect(view.Count).To(Equal(5))
			Expect(view.Asteroids).To(ContainElement(HaveField("Codename", "(2024 T1001) renamed")))
		})

		It("should keep the previous view when the feed is unreachable", func() {
			before, _, err := server.GetAsteroids("")
			Expect(err).NotTo(HaveOccurred())

			feedServer.FailWith(http.StatusServiceUnavailable)

			result, code, err := server.Refresh()
			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(Equal(http.StatusBadGateway))
			Expect(result).To(HaveKeyWithValue("outcome", "network-error"))
			Expect(result).To(HaveKeyWithValue("decision", "retry-later"))

			after, _, err := server.GetAsteroids("")
			Expect(err).NotTo(HaveOccurred())
			Expect(after.Snapshot).To(Equal(before.Snapshot))
			Expect(after.IDs()).To(Equal(before.IDs()))

			body, err := server.GetStatus()
			Expect(err).NotTo(HaveOccurred())
			Expect(body).To(HaveKeyWithValue("engine", HaveKeyWithValue("phase", "Error")))
		})

		It("should report a malformed feed as a parse error", func() {
			feedServer.ServeRaw(`{"element_count": 1, "near_earth_objects": []}`)

			result, code, err := server.Refresh()
			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(Equal(http.StatusUnprocessableEntity))
			Expect(result).To(HaveKeyWithValue("outcome", "parse-error"))
			Expect(result).To(HaveKeyWithValue("decision", "no-retry"))

			feedServer.SetRecords(helpers.StandardWeek())
			_, code, err = server.Refresh()
			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(Equal(http.StatusOK))
		})
	})

	Context("Watch stream", func() {
		It("should push a new view after a refresh", func() {
			watchCtx, watchCancel := context.WithTimeout(ctx, 10*time.Second)
			defer watchCancel()

			next, closeStream, err := server.OpenWatch(watchCtx)
			Expect(err).NotTo(HaveOccurred())
			defer closeStream()

			event, data, err := next()
			Expect(err).NotTo(HaveOccurred())
			Expect(event).To(Equal("view"))
			var first helpers.ViewBody
			Expect(json.Unmarshal([]byte(data), &first)).To(Succeed())

			feedServer.SetRecords(append(helpers.StandardWeek(), helpers.NewNeoRecord(1006, 1)))
			_, code, err := server.Refresh()
			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(Equal(http.StatusOK))

			// Status events for the Loading and Done phases may come first
			var latest helpers.ViewBody
			for latest.Seq <= first.Seq || latest.Count != 5 {
				event, data, err = next()
				Expect(err).NotTo(HaveOccurred())
				if event == "view" {
					Expect(json.Unmarshal([]byte(data), &latest)).To(Succeed())
				}
			}
			Expect(latest.Snapshot).To(BeNumerically(">", first.Snapshot))
		})
	})
})

var _ = Describe("Asteroid cache persistence", Label("sqlite"), func() {
	var ws *workspace

	BeforeEach(func() {
		ws = newWorkspace(helpers.StandardWeek(), helpers.ConfigOptions{})
	})

	It("should serve cached asteroids after a restart while the feed is down", func() {
		first := ws.startServer()
		waitForDone(first)
		Expect(first.StopServer()).To(Succeed())

		ws.feed.FailWith(http.StatusInternalServerError)

		second := ws.startServer()

		view, code, err := second.GetAsteroids("all")
		Expect(err).NotTo(HaveOccurred())
		Expect(code).To(Equal(http.StatusOK))
		Expect(view.IDs()).To(Equal([]int64{1001, 1002, 1003, 1004}))

		Eventually(func(g Gomega) {
			body, err := second.GetStatus()
			g.Expect(err).NotTo(HaveOccurred())
			g.Expect(body).To(HaveKeyWithValue("sync", HaveKeyWithValue("lastOutcome", "network-error")))
		}, 10*time.Second, 100*time.Millisecond).Should(Succeed())
	})
})
