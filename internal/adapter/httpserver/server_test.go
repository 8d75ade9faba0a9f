package httpserver

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sofiavldd2005/gs-dashboard-experiment/internal/broadcast"
	"github.com/sofiavldd2005/gs-dashboard-experiment/internal/platform/config"
)

func testConfig() *config.Config {
	return &config.Config{AppEnv: "development", Port: "0"}
}

type fakeViewerHandler struct {
	calls int
}

func (h *fakeViewerHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	h.calls++
	w.WriteHeader(http.StatusTeapot)
}

func newTestServer(t *testing.T, hub *broadcast.Hub, opts ...Option) *Server {
	t.Helper()
	if hub == nil {
		hub = broadcast.NewHub(8)
	}
	srv, err := NewServer(testConfig(), hub, &fakeViewerHandler{}, opts...)
	require.NoError(t, err)
	return srv
}
