// Package telemetry reports errors and traces to Sentry. Every function is
// safe to call when Sentry was never initialized.
package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/petrorag/petrorag/internal/domain"
)

const serverName = "petrorag"

// flushTimeout bounds how long shutdown waits for queued events.
const flushTimeout = 5 * time.Second

type Config struct {
	DSN         string
	Environment string
	// TracesSampleRate of zero picks a rate from Environment.
	TracesSampleRate float64
	Debug            bool
}

// SampleRate is the default trace sampling for an environment: everything in
// development, a tenth elsewhere.
func SampleRate(environment string) float64 {
	if environment == "" || environment == "development" {
		return 1.0
	}
	return 0.1
}

// Init configures the global Sentry client and returns a flush function for
// shutdown. With an empty DSN it does nothing. A client that fails to start
// is logged and treated as disabled.
func Init(cfg Config) (func(), error) {
	if cfg.DSN == "" {
		return func() {}, nil
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.TracesSampleRate == 0 {
		cfg.TracesSampleRate = SampleRate(cfg.Environment)
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		EnableTracing:    true,
		TracesSampleRate: cfg.TracesSampleRate,
		Debug:            cfg.Debug,
		ServerName:       serverName,
		TracesSampler:    sampler(cfg.TracesSampleRate),
		BeforeSend:       dropExpected,
	})
	if err != nil {
		slog.Warn("sentry disabled", "err", err)
		return func() {}, nil
	}

	slog.Info("sentry initialized", "environment", cfg.Environment, "sample_rate", cfg.TracesSampleRate)
	return func() { sentry.Flush(flushTimeout) }, nil
}

func sampler(rate float64) sentry.TracesSampler {
	return func(ctx sentry.SamplingContext) float64 {
		if ctx.Span.Name == "GET /health" {
			return 0
		}
		var root sentry.SpanID
		if ctx.Span.ParentSpanID != root {
			if ctx.Span.Sampled.Bool() {
				return 1
			}
			return 0
		}
		return rate
	}
}

// dropExpected filters events for conditions that are part of normal
// operation: queries rejected during warm-up and abandoned requests.
func dropExpected(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
	if hint == nil || hint.OriginalException == nil {
		return event
	}
	if !reportable(hint.OriginalException) {
		return nil
	}
	return event
}

func reportable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, domain.ErrEngineNotReady), errors.Is(err, domain.ErrEmptyQuery):
		return false
	default:
		return true
	}
}

// SpanAttributes tag a pipeline span.
type SpanAttributes struct {
	SessionID string
	Operation string
}

// Span is a nil-safe handle on a Sentry span.
type Span struct {
	inner *sentry.Span
}

func (s *Span) End() {
	if s.inner != nil {
		s.inner.Finish()
	}
}

// SetError marks the span failed and reports err unless it is expected.
func (s *Span) SetError(err error) {
	if s.inner == nil || !reportable(err) {
		return
	}
	s.inner.Status = sentry.SpanStatusInternalError
	if code := domain.Code(err); code != "" {
		s.inner.SetTag("error_code", code)
	}
	if hub := sentry.GetHubFromContext(s.inner.Context()); hub != nil {
		hub.CaptureException(err)
	}
}

// StartSpan opens a child of the span in ctx, or a new transaction when
// there is none.
func StartSpan(ctx context.Context, name string, attrs SpanAttributes) (context.Context, *Span) {
	var span *sentry.Span
	if parent := sentry.SpanFromContext(ctx); parent != nil {
		span = parent.StartChild(name)
	} else {
		span = sentry.StartSpan(ctx, name, sentry.WithTransactionName(name))
	}

	if attrs.SessionID != "" {
		span.SetTag("session_id", attrs.SessionID)
	}
	if attrs.Operation != "" {
		span.Op = "petrorag." + attrs.Operation
	}

	return span.Context(), &Span{inner: span}
}

// CaptureError reports err on the hub in ctx, falling back to the global hub.
func CaptureError(ctx context.Context, err error) {
	if !reportable(err) {
		return
	}
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
		return
	}
	sentry.CaptureException(err)
}

// AddBreadcrumb records a pipeline step on the current scope.
func AddBreadcrumb(ctx context.Context, category, message string) {
	breadcrumb := &sentry.Breadcrumb{
		Type:      "default",
		Category:  category,
		Message:   message,
		Level:     sentry.LevelInfo,
		Timestamp: time.Now(),
	}

	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.AddBreadcrumb(breadcrumb, nil)
		return
	}
	sentry.AddBreadcrumb(breadcrumb)
}
