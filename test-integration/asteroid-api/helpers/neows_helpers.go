package helpers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

const dateLayout = "2006-01-02"

// MockNeoWsServer is a fake NeoWs feed. It builds the response of every request
// from the requested start_date so that records always fall inside the window.
type MockNeoWsServer struct {
	*httptest.Server

	mu         sync.Mutex
	records    []NeoRecord
	failStatus int
	rawBody    string
	requests   []string
}

// NewMockNeoWsServer starts a fake feed serving records
func NewMockNeoWsServer(records []NeoRecord) *MockNeoWsServer {
	m := &MockNeoWsServer{records: records}
	mux := http.NewServeMux()
	mux.HandleFunc("/feed", m.handleFeed)
	m.Server = httptest.NewServer(mux)
	return m
}

// SetRecords replaces the records served from the next request on
func (m *MockNeoWsServer) SetRecords(records []NeoRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = records
	m.failStatus = 0
	m.rawBody = ""
}

// FailWith makes every following request return status
func (m *MockNeoWsServer) FailWith(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failStatus = status
}

// ServeRaw makes every following request return body verbatim
func (m *MockNeoWsServer) ServeRaw(body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rawBody = body
}

// RequestCount returns the number of feed requests received
func (m *MockNeoWsServer) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// LastStartDate returns the start_date of the most recent request
func (m *MockNeoWsServer) LastStartDate() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return ""
	}
	return m.requests[len(m.requests)-1]
}

func (m *MockNeoWsServer) handleFeed(w http.ResponseWriter, r *http.Request) {
	startDate := r.URL.Query().Get("start_date")

	m.mu.Lock()
	m.requests = append(m.requests, startDate)
	records := m.records
	failStatus := m.failStatus
	rawBody := m.rawBody
	m.mu.Unlock()

	if r.URL.Query().Get("api_key") == "" {
		http.Error(w, `{"error":{"code":"API_KEY_MISSING"}}`, http.StatusForbidden)
		return
	}
	if failStatus != 0 {
		http.Error(w, `{"error":"unavailable"}`, failStatus)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if rawBody != "" {
		_, _ = w.Write([]byte(rawBody))
		return
	}

	start, err := time.Parse(dateLayout, startDate)
	if err != nil {
		http.Error(w, fmt.Sprintf(`{"error":"bad start_date %q"}`, startDate), http.StatusBadRequest)
		return
	}

	body, err := json.Marshal(buildFeed(start, records))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	_, _ = w.Write(body)
}

// buildFeed renders records in the NeoWs feed layout, grouped by date
func buildFeed(start time.Time, records []NeoRecord) map[string]any {
	groups := map[string][]any{}
	for _, rec := range records {
		date := start.AddDate(0, 0, rec.DayOffset).Format(dateLayout)
		groups[date] = append(groups[date], map[string]any{
			"id":                                rec.ID,
			"neo_reference_id":                  rec.ID,
			"name":                              rec.Name,
			"absolute_magnitude_h":              rec.Magnitude,
			"is_potentially_hazardous_asteroid": rec.Hazardous,
			"estimated_diameter": map[string]any{
				"kilometers": map[string]any{
					"estimated_diameter_min": rec.Diameter / 2,
					"estimated_diameter_max": rec.Diameter,
				},
			},
			"close_approach_data": []any{
				map[string]any{
					"close_approach_date": date,
					"relative_velocity": map[string]any{
						"kilometers_per_second": rec.Velocity,
					},
					"miss_distance": map[string]any{
						"astronomical": rec.Distance,
					},
					"orbiting_body": "Earth",
				},
			},
		})
	}

	return map[string]any{
		"element_count":      len(records),
		"near_earth_objects": groups,
	}
}
