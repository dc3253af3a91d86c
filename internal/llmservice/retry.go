package llmservice

import (
	"context"
	"errors"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"pdf-rag/internal/config"
	"pdf-rag/internal/models"
)

// RetryPolicy bounds a provider call: one timeout per attempt and at most
// MaxRetries additional attempts with exponential backoff.
type RetryPolicy struct {
	MaxRetries      int
	Timeout         time.Duration
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func PolicyFromConfig(c config.LLMConfig) RetryPolicy {
	return RetryPolicy{
		MaxRetries:      c.MaxRetries,
		Timeout:         c.Timeout(),
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// Retry runs op until it succeeds, fails permanently or the policy is exhausted.
func Retry(ctx context.Context, p RetryPolicy, call string, op func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	b.MaxElapsedTime = 0

	retries := p.MaxRetries
	if retries < 0 {
		retries = 0
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)

	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		attemptCtx, cancel := withTimeout(ctx, p.Timeout)
		defer cancel()

		err := op(attemptCtx)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, next time.Duration) {
		log.Warn().Err(err).Str("call", call).Int("attempt", attempt).Dur("backoff", next).Msg("Provider call failed, retrying")
	})
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// statusCodePattern finds an HTTP status in provider errors such as
// "API returned unexpected status code: 503" or "429 Too Many Requests".
var statusCodePattern = regexp.MustCompile(`(?i)(?:status(?: code)?:?\s*|^)(\d{3})\b`)

// IsRetryable reports whether a provider error is worth another attempt.
// Unknown errors are retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, models.ErrConfiguration) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := err.Error()
	if m := statusCodePattern.FindStringSubmatch(msg); m != nil {
		code, _ := strconv.Atoi(m[1])
		return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError || code < http.StatusBadRequest
	}
	for _, code := range []int{http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout} {
		if strings.Contains(msg, http.StatusText(code)) {
			return true
		}
	}
	for _, code := range []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden} {
		if strings.Contains(msg, http.StatusText(code)) {
			return false
		}
	}
	return true
}
