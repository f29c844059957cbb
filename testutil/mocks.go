package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// MockDataAPIServer creates a test server that mocks YouTube Data API v3
// responses. Handlers are matched by path suffix because the generated
// client prefixes every request with the service base path.
type MockDataAPIServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc
}

// NewMockDataAPIServer creates a new mock Data API server
func NewMockDataAPIServer(t *testing.T) *MockDataAPIServer {
	t.Helper()
	m := &MockDataAPIServer{
		Handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for suffix, handler := range m.Handlers {
			if strings.HasSuffix(r.URL.Path, suffix) {
				handler(w, r)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

// Handle registers a raw handler for requests whose path ends with suffix.
func (m *MockDataAPIServer) Handle(suffix string, handler http.HandlerFunc) {
	m.Handlers[suffix] = handler
}

// MockSearchResponse adds a handler for the search endpoint returning the
// given video IDs as live-broadcast hits. No IDs means the channel is offline.
func (m *MockDataAPIServer) MockSearchResponse(videoIDs ...string) {
	items := make([]map[string]interface{}, 0, len(videoIDs))
	for _, id := range videoIDs {
		items = append(items, map[string]interface{}{
			"id": map[string]string{"kind": "youtube#video", "videoId": id},
		})
	}
	m.Handle("/search", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"items": items}) //nolint:errcheck // test mock response
	})
}

// MockErrorResponse adds a handler that fails requests to suffix with a
// Data API style error body.
func (m *MockDataAPIServer) MockErrorResponse(suffix string, code int, message string) {
	m.Handle(suffix, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{ //nolint:errcheck // test mock response
			"error": map[string]interface{}{"code": code, "message": message},
		})
	})
}
