package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"smallbiznis-loyaltycore/pkg/health"

	"github.com/stretchr/testify/require"
)

func TestRouterServesOpsEndpoints(t *testing.T) {
	r := NewRouter(health.ProvideHealth(health.HealthParams{}))

	for _, path := range []string{"/healthz", "/readyz"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, w.Code, path)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, strings.Contains(w.Body.String(), "go_goroutines"))
}
