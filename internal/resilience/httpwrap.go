package resilience

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPClient wraps an http.Client with per-attempt timeout, retry and
// circuit-breaker logic.
//
// Transport errors and 5xx responses are retried up to MaxAttempts with
// exponential backoff. 4xx responses are returned at once. When the last
// attempt still yields a 5xx the response itself is returned so callers can
// inspect status and body.
type HTTPClient struct {
	Client      *http.Client
	Breaker     *Breaker
	Target      string
	BaseBackoff time.Duration
	MaxAttempts int
	Jitter      float64
	Timeout     time.Duration
}

// Do executes req. The body is buffered so it can be replayed on retry.
func (cl HTTPClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if cl.Client == nil {
		return nil, errors.New("resilience: http client not configured")
	}
	maxAttempts := cl.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	baseBackoff := cl.BaseBackoff
	if baseBackoff <= 0 {
		baseBackoff = 100 * time.Millisecond
	}

	body, err := bufferBody(req)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if cl.Breaker != nil && !cl.Breaker.Allow(ctx) {
			cl.count("rejected")
			if lastErr != nil {
				return nil, errors.Join(ErrOpenCircuit, lastErr)
			}
			return nil, ErrOpenCircuit
		}
		resp, err := cl.doOnce(ctx, req, body)
		switch {
		case err != nil:
			cl.count("transport_error")
			lastErr = err
		case resp.StatusCode >= http.StatusInternalServerError:
			cl.count("server_error")
			lastErr = fmt.Errorf("resilience: upstream responded %s", resp.Status)
			if attempt == maxAttempts {
				cl.report(ctx, false)
				return resp, nil
			}
			drain(resp)
		default:
			if resp.StatusCode >= http.StatusBadRequest {
				cl.count("client_error")
			} else {
				cl.count("ok")
			}
			cl.report(ctx, true)
			return resp, nil
		}
		cl.report(ctx, false)
		if ctx.Err() != nil {
			return nil, errors.Join(ctx.Err(), lastErr)
		}
		if attempt == maxAttempts {
			break
		}
		timer := time.NewTimer(Backoff(baseBackoff, attempt, cl.Jitter))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.Join(ctx.Err(), lastErr)
		case <-timer.C:
		}
	}
	return nil, lastErr
}

func (cl HTTPClient) doOnce(ctx context.Context, req *http.Request, body []byte) (*http.Response, error) {
	timeout := cl.Timeout
	if timeout <= 0 {
		timeout = cl.Client.Timeout
	}
	var (
		callCtx context.Context
		cancel  context.CancelFunc
	)
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		callCtx, cancel = context.WithCancel(ctx)
	}
	attemptReq := req.Clone(callCtx)
	if body != nil {
		attemptReq.Body = io.NopCloser(bytes.NewReader(body))
		attemptReq.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
	}
	resp, err := cl.Client.Do(attemptReq)
	if err != nil {
		cancel()
		return nil, err
	}
	// the attempt context must outlive Do until the caller has read the body
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

func (cl HTTPClient) report(ctx context.Context, success bool) {
	if cl.Breaker != nil {
		cl.Breaker.Report(ctx, success)
	}
}

func (cl HTTPClient) count(outcome string) {
	target := cl.Target
	if target == "" {
		target = "default"
	}
	HTTPAttempts.WithLabelValues(target, outcome).Inc()
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

func bufferBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	defer func() { _ = req.Body.Close() }()
	data, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, fmt.Errorf("resilience: buffer request body: %w", err)
	}
	return data, nil
}
