package helpers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/onsi/gomega"

	internalapp "github.com/stacklok/asteroid-radar/internal/app"
	"github.com/stacklok/asteroid-radar/internal/config"
)

// ServerTestHelper manages the asteroid API server lifecycle for testing
type ServerTestHelper struct {
	ctx        context.Context
	configPath string
	baseURL    string
	address    string
	httpClient *http.Client
	app        *internalapp.AsteroidApp
}

// NewServerTestHelper creates a new server test helper listening on a free local port
func NewServerTestHelper(ctx context.Context, configPath string) *ServerTestHelper {
	address := freeAddress()
	return &ServerTestHelper{
		ctx:        ctx,
		configPath: configPath,
		address:    address,
		baseURL:    "http://" + address,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func freeAddress() string {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	defer listener.Close()
	return listener.Addr().String()
}

// StartServer builds the application from the config file and starts it in the background
func (s *ServerTestHelper) StartServer() error {
	cfg, err := config.LoadConfig(config.WithConfigPath(s.configPath))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	app, err := internalapp.NewAsteroidApp(s.ctx,
		internalapp.WithConfig(cfg),
		internalapp.WithAddress(s.address),
	)
	if err != nil {
		return fmt.Errorf("failed to build app: %w", err)
	}

	s.app = app

	go func() {
		if err := app.Start(); err != nil {
			// The test will fail when it tries to connect
			fmt.Fprintf(os.Stderr, "Server start failed: %v\n", err)
		}
	}()

	return nil
}

// StopServer gracefully stops the asteroid API server
func (s *ServerTestHelper) StopServer() error {
	if s.app != nil {
		err := s.app.Stop(5 * time.Second)
		s.app = nil
		return err
	}
	return nil
}

// WaitForServerReady waits for the readiness endpoint to succeed
func (s *ServerTestHelper) WaitForServerReady(timeout time.Duration) {
	gomega.Eventually(func() error {
		resp, err := s.httpClient.Get(s.baseURL + "/readiness")
		if err != nil {
			return err
		}
		defer func() {
			_ = resp.Body.Close()
		}()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("server returned status %d", resp.StatusCode)
		}
		return nil
	}, timeout, 100*time.Millisecond).Should(gomega.Succeed(), "Server should be ready")
}

// ViewBody is the decoded body of GET /v1/asteroids
type ViewBody struct {
	Seq       uint64 `json:"seq"`
	Snapshot  uint64 `json:"snapshot"`
	Filter    string `json:"filter"`
	Today     string `json:"today"`
	Count     int    `json:"count"`
	Asteroids []struct {
		ID                int64  `json:"id"`
		Codename          string `json:"codename"`
		CloseApproachDate string `json:"closeApproachDate"`
	} `json:"asteroids"`
}

// IDs returns the asteroid ids of the view in order
func (v ViewBody) IDs() []int64 {
	ids := make([]int64, 0, len(v.Asteroids))
	for _, a := range v.Asteroids {
		ids = append(ids, a.ID)
	}
	return ids
}

// GetAsteroids makes a GET request to /v1/asteroids, with ?filter= when filter is set
func (s *ServerTestHelper) GetAsteroids(filter string) (ViewBody, int, error) {
	path := "/v1/asteroids"
	if filter != "" {
		path += "?filter=" + filter
	}
	var body ViewBody
	code, err := s.getJSON(path, &body)
	return body, code, err
}

// GetAsteroid makes a GET request to /v1/asteroids/{id}
func (s *ServerTestHelper) GetAsteroid(id string) (*http.Response, error) {
	return s.httpClient.Get(s.baseURL + "/v1/asteroids/" + id)
}

// SetFilter makes a PUT request to /v1/filter
func (s *ServerTestHelper) SetFilter(filter string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(s.ctx, http.MethodPut, s.baseURL+"/v1/filter",
		strings.NewReader(fmt.Sprintf(`{"filter":%q}`, filter)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return s.httpClient.Do(req)
}

// Refresh makes a POST request to /v1/refresh and decodes the cycle result
func (s *ServerTestHelper) Refresh() (map[string]any, int, error) {
	resp, err := s.httpClient.Post(s.baseURL+"/v1/refresh", "application/json", nil)
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

// GetStatus makes a GET request to /v1/status
func (s *ServerTestHelper) GetStatus() (map[string]any, error) {
	var body map[string]any
	_, err := s.getJSON("/v1/status", &body)
	return body, err
}

// GetHealth makes a GET request to /health
func (s *ServerTestHelper) GetHealth() (*http.Response, error) {
	return s.httpClient.Get(s.baseURL + "/health")
}

// OpenWatch opens the SSE stream and returns a function reading the next event name and data
func (s *ServerTestHelper) OpenWatch(ctx context.Context) (func() (string, string, error), func(), error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/v1/asteroids/watch", nil)
	if err != nil {
		return nil, nil, err
	}
	// The stream outlives the default client timeout
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, nil, fmt.Errorf("watch returned status %d", resp.StatusCode)
	}

	reader := bufio.NewReader(resp.Body)
	next := func() (string, string, error) {
		var event, data string
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return "", "", err
			}
			line = strings.TrimRight(line, "\r\n")
			switch {
			case line == "":
				if event != "" {
					return event, data, nil
				}
			case strings.HasPrefix(line, "event: "):
				event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			}
		}
	}
	closeFn := func() { _ = resp.Body.Close() }
	return next, closeFn, nil
}

func (s *ServerTestHelper) getJSON(path string, out any) (int, error) {
	resp, err := s.httpClient.Get(s.baseURL + path)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, err
	}
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, nil
	}
	return resp.StatusCode, json.Unmarshal(data, out)
}

// ConfigOptions are the settings written by WriteConfigYAML
type ConfigOptions struct {
	FeedEndpoint  string
	Backend       string
	Interval      string
	DefaultFilter string
}

// WriteConfigYAML writes a configuration file into dir and returns its path.
// The store, status file and lock file all live under dir.
func WriteConfigYAML(dir string, opts ConfigOptions) string {
	if opts.Backend == "" {
		opts.Backend = "sqlite"
	}
	if opts.Interval == "" {
		opts.Interval = "1h"
	}
	if opts.DefaultFilter == "" {
		opts.DefaultFilter = "week"
	}

	configContent := fmt.Sprintf(`feed:
  endpoint: %s
  apiKey: integration-test-key
  timeout: 5s
  rateInterval: 0s
store:
  backend: %s
  path: %s
sync:
  interval: %s
  jitter: 0s
  defaultFilter: %s
  timezone: UTC
  lockFile: %s
  retry:
    initialInterval: 200ms
    maxInterval: 1s
status:
  path: %s
`, opts.FeedEndpoint, opts.Backend, filepath.Join(dir, "asteroids.db"), opts.Interval,
		opts.DefaultFilter, filepath.Join(dir, "sync.lock"), dir)

	configPath := filepath.Join(dir, "config.yaml")
	err := os.WriteFile(configPath, []byte(configContent), 0600)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	return configPath
}
