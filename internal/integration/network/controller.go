package network

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/wispbill/wispbill/internal/config"
	ierr "github.com/wispbill/wispbill/internal/errors"
	"github.com/wispbill/wispbill/internal/httpclient"
	"github.com/wispbill/wispbill/internal/logger"
	"golang.org/x/time/rate"
)

// Controller switches the speed profile of a network user on the access
// equipment. A suspended customer is moved to a cut profile and restored to
// the plan profile on reactivation.
type Controller interface {
	ChangeProfile(ctx context.Context, username, profile string) error
}

type changeProfileRequest struct {
	Profile string `json:"profile"`
}

type httpController struct {
	client  httpclient.Client
	baseURL string
	apiKey  string
	limiter *rate.Limiter
	logger  *logger.Logger
}

// NewController returns the HTTP controller when the integration is enabled
// and a logging stand-in otherwise
func NewController(cfg *config.Configuration, client httpclient.Client, logger *logger.Logger) Controller {
	if !cfg.Network.Enabled {
		return NewLoggingController(logger)
	}
	return NewHTTPController(cfg.Network, client, logger)
}

func NewHTTPController(cfg config.NetworkConfig, client httpclient.Client, logger *logger.Logger) Controller {
	limit := rate.Inf
	burst := 1
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
		burst = max(1, cfg.MaxParallel)
	}
	return &httpController{
		client:  client,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
}

func (c *httpController) ChangeProfile(ctx context.Context, username, profile string) error {
	if username == "" || profile == "" {
		return ierr.NewError("username and profile are required").
			WithHint("A network binding needs a username and a target profile").
			Mark(ierr.ErrValidation)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return ierr.WithError(err).
			WithHint("Network controller call was cancelled").
			Mark(ierr.ErrExternal)
	}

	body, err := json.Marshal(changeProfileRequest{Profile: profile})
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to encode profile change").
			Mark(ierr.ErrSystem)
	}

	_, err = c.client.Send(ctx, &httpclient.Request{
		Method:  http.MethodPut,
		URL:     fmt.Sprintf("%s/users/%s/profile", c.baseURL, url.PathEscape(username)),
		Headers: map[string]string{"X-API-Key": c.apiKey},
		Body:    body,
	})
	if err != nil {
		c.logger.Errorw("network profile change failed",
			"username", username,
			"profile", profile,
			"error", err,
		)
		return ierr.WithError(err).
			WithHint("Network controller rejected the profile change").
			WithReportableDetails(map[string]any{
				"username": username,
				"profile":  profile,
			}).
			Mark(ierr.ErrExternal)
	}

	c.logger.Infow("network profile changed",
		"username", username,
		"profile", profile,
	)
	return nil
}

type loggingController struct {
	logger *logger.Logger
}

// NewLoggingController records profile changes without reaching any equipment
func NewLoggingController(logger *logger.Logger) Controller {
	return &loggingController{logger: logger}
}

func (c *loggingController) ChangeProfile(_ context.Context, username, profile string) error {
	c.logger.Infow("network integration disabled, profile change not sent",
		"username", username,
		"profile", profile,
	)
	return nil
}
