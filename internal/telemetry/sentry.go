package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
)

// SentryConfig configures error reporting. Reporting stays off unless
// Enabled is set and DSN is present.
type SentryConfig struct {
	DSN              string
	Enabled          bool
	Environment      string
	Release          string
	SampleRate       float64 // zero reports every error
	TracesSampleRate float64 // zero disables tracing
	Debug            bool
}

var sentryEnabled bool

// InitSentry initializes the Sentry client. The returned function flushes
// pending events and should run on shutdown.
func InitSentry(cfg SentryConfig, logger *slog.Logger) (func(), error) {
	sentryEnabled = false
	if !cfg.Enabled || cfg.DSN == "" {
		logger.Info("Sentry disabled", "dsn_configured", cfg.DSN != "")
		return func() {}, nil
	}

	sampleRate := cfg.SampleRate
	if sampleRate == 0 {
		sampleRate = 1.0
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		SampleRate:       sampleRate,
		TracesSampleRate: cfg.TracesSampleRate,
		Debug:            cfg.Debug,
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			// Webhook and checkout bodies carry customer addresses.
			if event.Request != nil {
				event.Request.Data = ""
			}
			return event
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Sentry: %w", err)
	}
	sentryEnabled = true

	logger.Info("Sentry initialized",
		"environment", cfg.Environment,
		"release", cfg.Release,
		"sample_rate", sampleRate,
		"traces_sample_rate", cfg.TracesSampleRate,
	)
	return func() { sentry.Flush(2 * time.Second) }, nil
}

// IsEnabled reports whether events are sent to Sentry.
func IsEnabled() bool {
	return sentryEnabled
}

// hubFrom returns the request hub set by the middlewares, or the global hub.
func hubFrom(ctx context.Context) *sentry.Hub {
	if ctx != nil {
		if hub := sentry.GetHubFromContext(ctx); hub != nil {
			return hub
		}
	}
	return sentry.CurrentHub()
}

// CaptureError reports err with extras on the global hub. Code running
// inside a request should prefer CaptureErrorFromContext.
func CaptureError(err error, extras ...map[string]interface{}) {
	if !IsEnabled() || err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for _, m := range extras {
			for key, value := range m {
				scope.SetExtra(key, value)
			}
		}
		sentry.CaptureException(err)
	})
}

// CaptureMessage reports a condition that is not an error value, such as
// a gateway confirming a different amount than was charged.
func CaptureMessage(ctx context.Context, level sentry.Level, message string, extras map[string]interface{}) {
	if !IsEnabled() {
		return
	}
	hub := hubFrom(ctx)
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(level)
		for key, value := range extras {
			scope.SetExtra(key, value)
		}
		hub.CaptureMessage(message)
	})
}

// AddBreadcrumb records a step, such as an order status change, that is
// attached to the next error captured on the same hub.
func AddBreadcrumb(ctx context.Context, category, message string, data map[string]interface{}) {
	if !IsEnabled() {
		return
	}
	hubFrom(ctx).AddBreadcrumb(&sentry.Breadcrumb{
		Category: category,
		Message:  message,
		Data:     data,
		Level:    sentry.LevelInfo,
	}, nil)
}

// StartSpan traces one operation, typically a payment gateway call. The
// finish function marks the span failed when err is non-nil.
func StartSpan(ctx context.Context, operation, description string) (context.Context, func(err error)) {
	if !IsEnabled() {
		return ctx, func(error) {}
	}

	span := sentry.StartSpan(ctx, operation)
	span.Description = description
	return span.Context(), func(err error) {
		if err != nil {
			span.Status = sentry.SpanStatusInternalError
		} else {
			span.Status = sentry.SpanStatusOK
		}
		span.Finish()
	}
}

// Recover turns a panic in background work into an error stored in
// *errp and reports it. Use it as: defer telemetry.Recover(ctx, &err).
func Recover(ctx context.Context, errp *error) {
	r := recover()
	if r == nil {
		return
	}
	if IsEnabled() {
		hubFrom(ctx).RecoverWithContext(ctx, r)
	}
	if errp != nil {
		*errp = fmt.Errorf("panic: %v", r)
	}
}

// SentryMiddleware gives each request its own hub and reports panics
// that escape the handler chain.
func SentryMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !IsEnabled() {
				next.ServeHTTP(w, r)
				return
			}

			hub := sentry.CurrentHub().Clone()
			hub.Scope().SetRequest(r)
			ctx := sentry.SetHubOnContext(r.Context(), hub)

			defer func() {
				if rec := recover(); rec != nil {
					hub.RecoverWithContext(ctx, rec)
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserInfo identifies the caller on captured events.
type UserInfo struct {
	ID    string
	Email string
	Role  string
}

// UserContextExtractor finds the caller of a request, or returns nil.
type UserContextExtractor func(ctx context.Context) *UserInfo

// SentryContextMiddleware tags the request hub with the route and the
// caller. It must run after authentication.
func SentryContextMiddleware(userExtractor UserContextExtractor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !IsEnabled() {
				next.ServeHTTP(w, r)
				return
			}

			hub := sentry.GetHubFromContext(r.Context())
			if hub == nil {
				hub = sentry.CurrentHub().Clone()
			}
			hub.ConfigureScope(func(scope *sentry.Scope) {
				scope.SetTag("route", r.Pattern)
				if userExtractor == nil {
					return
				}
				if user := userExtractor(r.Context()); user != nil {
					scope.SetUser(sentry.User{ID: user.ID, Email: user.Email})
					if user.Role != "" {
						scope.SetTag("role", user.Role)
					}
				}
			})

			next.ServeHTTP(w, r.WithContext(sentry.SetHubOnContext(r.Context(), hub)))
		})
	}
}

// CaptureErrorFromContext reports err on the request hub, so the event
// carries the route and caller tags.
func CaptureErrorFromContext(ctx context.Context, err error, extras map[string]interface{}) {
	if !IsEnabled() || err == nil {
		return
	}
	hub := hubFrom(ctx)
	hub.WithScope(func(scope *sentry.Scope) {
		for key, value := range extras {
			scope.SetExtra(key, value)
		}
		hub.CaptureException(err)
	})
}

// HTTPTransport wraps an http.RoundTripper to add Sentry tracing. Payment
// gateway clients use it so slow providers show up in traces.
type HTTPTransport struct {
	Transport http.RoundTripper
}

func (t *HTTPTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	transport := t.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	if !IsEnabled() {
		return transport.RoundTrip(req)
	}

	span := sentry.StartSpan(req.Context(), "http.client")
	span.Description = fmt.Sprintf("%s %s", req.Method, req.URL.Host)
	defer span.Finish()

	resp, err := transport.RoundTrip(req)
	if err != nil {
		span.Status = sentry.SpanStatusInternalError
	} else {
		span.SetData("http.status_code", resp.StatusCode)
	}

	return resp, err
}
