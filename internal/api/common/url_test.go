package common

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serveParam routes path through a chi router and returns what the handler saw
func serveParam(t *testing.T, pattern, path string, fn func(r *http.Request)) {
	t.Helper()
	called := false
	r := chi.NewRouter()
	r.Get(pattern, func(_ http.ResponseWriter, req *http.Request) {
		called = true
		fn(req)
	})

	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(httptest.NewRecorder(), req)
	require.True(t, called, "route %s did not match %s", pattern, path)
}

func TestGetIDURLParam_MissingParam(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/asteroids", nil)
	_, err := GetIDURLParam(req, "id")
	require.EqualError(t, err, "id cannot be empty")
}

func TestGetIDURLParam(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		path    string
		want    int64
		wantErr string
	}{
		{name: "valid id", path: "/asteroids/2465633", want: 2465633},
		{name: "not a number", path: "/asteroids/apophis", wantErr: "id must be a positive integer"},
		{name: "zero", path: "/asteroids/0", wantErr: "id must be a positive integer"},
		{name: "negative", path: "/asteroids/-5", wantErr: "id must be a positive integer"},
		{name: "overflow", path: "/asteroids/99999999999999999999", wantErr: "id must be a positive integer"},
		{name: "only whitespace", path: "/asteroids/%20%20", wantErr: "id cannot be empty"},
		{name: "embedded whitespace", path: "/asteroids/12%2034", wantErr: "id must be a positive integer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			serveParam(t, "/asteroids/{id}", tt.path, func(r *http.Request) {
				got, err := GetIDURLParam(r, "id")
				if tt.wantErr != "" {
					require.Error(t, err)
					assert.Equal(t, tt.wantErr, err.Error())
					return
				}
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			})
		})
	}
}

func TestWriteErrorResponse(t *testing.T) {
	t.Parallel()

	rr := httptest.NewRecorder()
	WriteErrorResponse(rr, "Asteroid not found", http.StatusNotFound)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "Asteroid not found", body.Error)
}
