package httphandler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"relay-service/internal/hub"
	"relay-service/internal/response"
)

func TestHandlePublish(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{
			name:       "offline user is accepted as a no-op",
			body:       `{"user_id":"42","type":"notification.created"}`,
			wantStatus: http.StatusAccepted,
		},
		{
			name:       "missing user_id",
			body:       `{"type":"notification.created"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing type",
			body:       `{"user_id":"42"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed body",
			body:       `{"user_id":`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewPublishHandler(hub.NewHub(zap.NewNop()), zap.NewNop())
			req := httptest.NewRequest(http.MethodPost, "/publish", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			h.HandlePublish(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)

			if tt.wantStatus == http.StatusAccepted {
				var resp response.APIResponse
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
				assert.Equal(t, "success", resp.Status)
			}
		})
	}
}

func TestHandleHealth(t *testing.T) {
	h := NewPublishHandler(hub.NewHub(zap.NewNop()), zap.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	h.HandleHealth(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
