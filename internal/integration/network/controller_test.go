package network

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wispbill/wispbill/internal/config"
	ierr "github.com/wispbill/wispbill/internal/errors"
	"github.com/wispbill/wispbill/internal/httpclient"
	"github.com/wispbill/wispbill/internal/logger"
)

func TestHTTPController_ChangeProfile(t *testing.T) {
	var got changeProfileRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/users/alice@home/profile", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("X-API-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ctrl := NewHTTPController(config.NetworkConfig{
		BaseURL:       srv.URL + "/",
		APIKey:        "key",
		RatePerSecond: 50,
		MaxParallel:   2,
		Timeout:       time.Second,
	}, httpclient.NewDefaultClient(), logger.NewNopLogger())

	require.NoError(t, ctrl.ChangeProfile(context.Background(), "alice@home", "cut"))
	assert.Equal(t, "cut", got.Profile)
}

func TestHTTPController_RemoteFailureIsExternal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctrl := NewHTTPController(config.NetworkConfig{BaseURL: srv.URL}, httpclient.NewDefaultClient(), logger.NewNopLogger())

	err := ctrl.ChangeProfile(context.Background(), "bob", "cut")
	require.Error(t, err)
	assert.True(t, ierr.IsExternal(err))
}

func TestHTTPController_RejectsEmptyProfile(t *testing.T) {
	ctrl := NewHTTPController(config.NetworkConfig{BaseURL: "http://unused"}, httpclient.NewDefaultClient(), logger.NewNopLogger())

	err := ctrl.ChangeProfile(context.Background(), "bob", "")
	require.Error(t, err)
	assert.True(t, ierr.IsValidation(err))
}

func TestNewController_DisabledLogsOnly(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Network.Enabled = false

	ctrl := NewController(cfg, httpclient.NewDefaultClient(), logger.NewNopLogger())
	_, ok := ctrl.(*loggingController)
	assert.True(t, ok)
	assert.NoError(t, ctrl.ChangeProfile(context.Background(), "bob", "cut"))
}
