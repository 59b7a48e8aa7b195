package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/webbridge/types"
)

func TestMapErrorCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		code   types.ErrorCode
		status int
	}{
		{types.ErrInvalidRequest, http.StatusBadRequest},
		{types.ErrUnsupportedModel, http.StatusBadRequest},
		{types.ErrAuthentication, http.StatusUnauthorized},
		{types.ErrNavigationTimeout, http.StatusGatewayTimeout},
		{types.ErrNoActiveSession, http.StatusServiceUnavailable},
		{types.ErrSelectorNotFound, http.StatusBadGateway},
		{types.ErrInvalidTransition, http.StatusInternalServerError},
		{types.ErrInternalError, http.StatusInternalServerError},
		{types.ErrorCode("SOMETHING_NEW"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.status, mapErrorCodeToHTTPStatus(tt.code))
		})
	}
}

func TestWriteError_UsesExplicitStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	err := types.NewError(types.ErrInternalError, "teapot").WithHTTPStatus(http.StatusTeapot)

	WriteError(rec, err, zaptest.NewLogger(t))

	require.Equal(t, http.StatusTeapot, rec.Code)
	assertErrorResponse(t, rec, types.ErrInternalError)
}

func TestWriteError_CarriesProvider(t *testing.T) {
	rec := httptest.NewRecorder()
	err := types.NewError(types.ErrNavigationTimeout, "timed out").
		WithProvider(string(types.ProviderAnthropic))

	WriteError(rec, err, zaptest.NewLogger(t))

	require.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Contains(t, rec.Body.String(), string(types.ProviderAnthropic))
}

func TestResponseWriter_CapturesStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec)

	rw.WriteHeader(http.StatusAccepted)
	rw.WriteHeader(http.StatusOK) // 第二次写入被忽略
	rw.Write([]byte("body"))

	assert.Equal(t, http.StatusAccepted, rw.StatusCode)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.True(t, rw.Written)
}

func TestResponseWriter_DefaultsToOK(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec)

	rw.Write([]byte("body"))

	assert.Equal(t, http.StatusOK, rw.StatusCode)
}
