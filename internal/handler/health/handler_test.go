package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func probe(err error) func(context.Context) error {
	return func(context.Context) error { return err }
}

func TestReadinessCheck(t *testing.T) {
	tests := []struct {
		name       string
		checks     []Check
		wantCode   int
		wantStatus string
		wantChecks map[string]string
	}{
		{
			name:       "no dependencies",
			wantCode:   http.StatusOK,
			wantStatus: "UP",
			wantChecks: map[string]string{},
		},
		{
			name:       "all healthy",
			checks:     []Check{{Name: "database", Probe: probe(nil)}, {Name: "redis", Probe: probe(nil)}},
			wantCode:   http.StatusOK,
			wantStatus: "UP",
			wantChecks: map[string]string{"database": "UP", "redis": "UP"},
		},
		{
			name:       "one failing",
			checks:     []Check{{Name: "database", Probe: probe(nil)}, {Name: "redis", Probe: probe(errors.New("refused"))}},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "DOWN",
			wantChecks: map[string]string{"database": "UP", "redis": "DOWN"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			NewHandler(tt.checks...).RegisterRoutes(r.Group(""))

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			assert.Equal(t, tt.wantCode, w.Code)
			var body struct {
				Status string            `json:"status"`
				Checks map[string]string `json:"checks"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantStatus, body.Status)
			assert.Equal(t, tt.wantChecks, body.Checks)
		})
	}
}

func TestLivenessCheck(t *testing.T) {
	r := gin.New()
	NewHandler(Check{Name: "database", Probe: probe(errors.New("down"))}).RegisterRoutes(r.Group(""))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
