// Package httpapi exposes the contact relay over HTTP and translates
// pipeline outcomes into response codes.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"briefkasten/internal/admission"
	"briefkasten/internal/config"
	"briefkasten/internal/relay"
	"briefkasten/internal/spam"
	"briefkasten/internal/transport"
)

// clientIPKey is the echo context key holding the admission-resolved
// client IP.
const clientIPKey = "client_ip"

// API wires the composition pipeline to the HTTP routes.
type API struct {
	cfg        *config.Config
	filter     *spam.Filter
	composer   *relay.Composer
	dispatcher *transport.Dispatcher
	limiter    *admission.Limiter
}

// New creates the API from its collaborators.
func New(cfg *config.Config, filter *spam.Filter, composer *relay.Composer, dispatcher *transport.Dispatcher, limiter *admission.Limiter) *API {
	return &API{
		cfg:        cfg,
		filter:     filter,
		composer:   composer,
		dispatcher: dispatcher,
		limiter:    limiter,
	}
}

// Router builds the echo instance with admission control applied to
// every route.
func (a *API) Router() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(a.logRequests)
	e.Use(a.admit)

	e.POST("/mail/:direction/", a.postMail)
	e.PUT("/mail/:direction/", a.putMail)

	return e
}

// admit rejects a request before any parsing work: first on IP
// extraction failure, then on the per-IP rate limit. The 429 body is a
// fixed string; it deliberately carries no retry timing.
func (a *API) admit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()

		ip, err := admission.ClientIP(req.RemoteAddr, req.Header, a.cfg.TrustedProxyAddr())
		if err != nil {
			slog.Error("could not extract client IP", "remote_addr", req.RemoteAddr, "error", err)
			return c.String(http.StatusForbidden, "Forbidden")
		}
		c.Set(clientIPKey, ip)

		if !a.limiter.Allow(ip) {
			return c.String(http.StatusTooManyRequests, "Too many requests")
		}

		return next(c)
	}
}

// logRequests emits one structured log line per request.
func (a *API) logRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)

		ip, _ := c.Get(clientIPKey).(string)
		slog.Info("request",
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"status", c.Response().Status,
			"client_ip", ip,
			"duration_ms", time.Since(start).Milliseconds(),
		)

		return err
	}
}
