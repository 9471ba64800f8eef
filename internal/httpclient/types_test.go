package httpclient_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stacklok/asteroid-radar/internal/httpclient"
)

func TestHTTPClientSuite(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "HTTPClient Suite")
}

var _ = Describe("HTTPError", func() {
	Describe("NewHTTPError", func() {
		It("should format error message correctly", func() {
			err := httpclient.NewHTTPError(500, "https://api.nasa.gov/neo/rest/v1/feed", "Internal Server Error")
			Expect(err.Error()).To(Equal("HTTP 500 for URL https://api.nasa.gov/neo/rest/v1/feed: Internal Server Error"))
		})

		It("should handle empty message", func() {
			err := httpclient.NewHTTPError(404, "http://example.com", "")
			Expect(err.Error()).To(Equal("HTTP 404 for URL http://example.com: "))
		})

		It("should classify temporary status codes", func() {
			for _, code := range []int{429, 500, 502, 503, 504} {
				err := httpclient.NewHTTPError(code, "http://example.com", "")
				Expect(err.(*httpclient.HTTPError).Temporary()).To(BeTrue(), "status %d", code)
			}
			for _, code := range []int{400, 401, 403, 404} {
				err := httpclient.NewHTTPError(code, "http://example.com", "")
				Expect(err.(*httpclient.HTTPError).Temporary()).To(BeFalse(), "status %d", code)
			}
		})
	})

	Describe("RedactURL", func() {
		It("should mask the api key", func() {
			redacted := httpclient.RedactURL("https://api.nasa.gov/neo/rest/v1/feed?start_date=2024-01-01&api_key=abc123")
			Expect(redacted).NotTo(ContainSubstring("abc123"))
			Expect(redacted).To(ContainSubstring("api_key=REDACTED"))
			Expect(redacted).To(ContainSubstring("start_date=2024-01-01"))
		})

		It("should leave URLs without credentials untouched", func() {
			raw := "https://api.nasa.gov/neo/rest/v1/feed?start_date=2024-01-01"
			Expect(httpclient.RedactURL(raw)).To(Equal(raw))
		})

		It("should leave unparseable input untouched", func() {
			Expect(httpclient.RedactURL("://bad")).To(Equal("://bad"))
		})
	})
})
