// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared by the API client.
package httputil

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// RetryBaseDelay controls the base duration for exponential backoff.
// Tests override this to avoid real sleeps.
var RetryBaseDelay = 500 * time.Millisecond

const defaultMaxRetries = 3

// AttemptError is returned when every attempt failed at the transport
// level. Attempts counts the requests that were sent.
type AttemptError struct {
	Attempts int
	Err      error
}

func (e *AttemptError) Error() string { return e.Err.Error() }
func (e *AttemptError) Unwrap() error { return e.Err }

// Idempotent reports whether requests with this method may be retried.
// Job submission (POST) and cancellation (DELETE) are sent exactly once.
func Idempotent(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

// Retryable reports whether a response status warrants another attempt.
func Retryable(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// DoWithRetry executes an HTTP request and, for idempotent methods,
// retries network errors, HTTP 429 and 5xx responses with exponential
// backoff. The delay starts at RetryBaseDelay and doubles each attempt.
//
// When maxRetries is 0 the default (3) is used. The response body is
// drained and closed before each retry. If the context is cancelled during
// a backoff wait the function returns ctx.Err(). After exhausting retries
// the last response is returned so the caller can inspect it; if the last
// attempt failed at the transport level an *AttemptError is returned.
// onRetry, when non-nil, is called before each backoff wait.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int, log *zap.Logger, onRetry func(attempt int)) (*http.Response, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if log == nil {
		log = zap.NewNop()
	}
	if !Idempotent(req.Method) {
		resp, err := client.Do(req.WithContext(ctx))
		if err != nil {
			return nil, &AttemptError{Attempts: 1, Err: err}
		}
		return resp, nil
	}

	for attempt := 0; ; attempt++ {
		resp, err := client.Do(req.Clone(ctx))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if attempt >= maxRetries || !transient(err) {
				return nil, &AttemptError{Attempts: attempt + 1, Err: err}
			}
			log.Warn("request failed, retrying",
				zap.String("url", req.URL.String()),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
		} else {
			if !Retryable(resp.StatusCode) || attempt >= maxRetries {
				return resp, nil
			}

			// Drain and close the body before retrying.
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			log.Warn("retryable status, retrying",
				zap.String("url", req.URL.String()),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1))
		}

		if onRetry != nil {
			onRetry(attempt + 1)
		}
		backoff := time.Duration(math.Pow(2, float64(attempt))) * RetryBaseDelay

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}

// transient reports whether a transport error might succeed on retry.
// Context cancellation is final.
func transient(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
