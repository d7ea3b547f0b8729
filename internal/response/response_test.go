package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fekuna/omnipos-ledger-service/internal/apperror"
	"github.com/fekuna/omnipos-ledger-service/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, h gin.HandlerFunc) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", h)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestError(t *testing.T) {
	log := logger.NewNop()

	tests := []struct {
		name     string
		err      error
		wantHTTP int
		wantCode string
	}{
		{"conflict keeps 200", apperror.Conflict("already finalized").WithCode(apperror.CodeAlreadyFinalized), http.StatusOK, apperror.CodeAlreadyFinalized},
		{"missing note is 400", apperror.InvalidState("Rejection reason is required.").WithCode(apperror.CodeNoteRequired), http.StatusBadRequest, apperror.CodeNoteRequired},
		{"not found keeps 200", apperror.NotFound("order missing"), http.StatusOK, "NOT_FOUND"},
		{"raw error is internal", errors.New("boom"), http.StatusOK, "INTERNAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := serve(t, func(c *gin.Context) { Error(c, tt.err, log) })
			assert.Equal(t, tt.wantHTTP, w.Code)
			assert.Equal(t, StatusError, body["status"])
			assert.Equal(t, tt.wantCode, body["code"])
		})
	}
}

func TestQueryError(t *testing.T) {
	w, body := serve(t, func(c *gin.Context) { QueryError(c, apperror.NotFound("variant v9 not found"), logger.NewNop()) })
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "variant v9 not found", body["message"])
}

func TestSuccess(t *testing.T) {
	w, body := serve(t, func(c *gin.Context) { Success(c, "Updated", gin.H{"id": "r1"}) })
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, StatusSuccess, body["status"])
	assert.Equal(t, "Updated", body["message"])
	assert.Equal(t, "r1", body["id"])
}
