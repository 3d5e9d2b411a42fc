package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/cenkalti/backoff/v4"

	"github.com/desertthunder/dzdedupe/internal/shared"
)

// gatewayResponse is the envelope of every gw-light response.
//
// Error is [] or {} on success and an object keyed by error code otherwise.
type gatewayResponse struct {
	Error   json.RawMessage `json:"error"`
	Results json.RawMessage `json:"results"`
}

// flexString accepts both JSON strings and numbers; the gateway mixes them for ids.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", string(data))
	}
	*f = flexString(n.String())
	return nil
}

// flexInt accepts JSON numbers and numeric strings.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}

	n, err := strconv.Atoi(string(s))
	if err != nil {
		return fmt.Errorf("expected integer, got %q", string(s))
	}
	*f = flexInt(n)
	return nil
}

// parseGatewayError extracts the error code and message from the envelope's error field.
func parseGatewayError(raw json.RawMessage) (code, message string, ok bool) {
	trimmed := strings.TrimSpace(string(raw))
	switch trimmed {
	case "", "null", "[]", "{}", `""`:
		return "", "", false
	}

	var byCode map[string]any
	if err := json.Unmarshal(raw, &byCode); err == nil {
		if len(byCode) == 0 {
			return "", "", false
		}
		codes := make([]string, 0, len(byCode))
		for c := range byCode {
			codes = append(codes, c)
		}
		slices.Sort(codes)
		return codes[0], fmt.Sprint(byCode[codes[0]]), true
	}

	var list []any
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return "", fmt.Sprint(list...), true
	}

	return "", trimmed, true
}

// endpoint builds the gateway URL for method.
func (d *DeezerService) endpoint(method, apiToken string) string {
	u, err := url.Parse(d.baseURL)
	if err != nil {
		return d.baseURL
	}

	q := u.Query()
	q.Set("method", method)
	q.Set("input", "3")
	q.Set("api_version", "1.0")
	q.Set("api_token", apiToken)
	u.RawQuery = q.Encode()
	return u.String()
}

// call performs a gateway request under the retry policy and decodes "results" into result.
func (d *DeezerService) call(ctx context.Context, method string, body, result any) error {
	if d.aborted.Load() {
		return d.abortedError(method)
	}

	if body == nil {
		body = struct{}{}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return &APIError{Method: method, Kind: shared.ErrAPIRequest, Cause: err}
	}

	attempts := d.retry.attempts()
	schedule := d.retry.Backoff()
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			delay := schedule.NextBackOff()
			if delay == backoff.Stop {
				break
			}
			d.metrics.retry(method)
			d.logger.Debug("retrying gateway call", "method", method, "attempt", attempt, "delay", delay, "error", lastErr)
			if err := sleep(ctx, delay); err != nil {
				return fmt.Errorf("%s: %w", method, err)
			}
		}

		if d.aborted.Load() {
			return d.abortedError(method)
		}

		err := d.do(ctx, method, payload, result)
		if err == nil {
			d.metrics.request(method, "ok")
			return nil
		}
		lastErr = err

		switch {
		case errors.Is(err, shared.ErrAuthentication):
			d.metrics.request(method, "auth_error")
			d.abort(method, err)
			return err
		case ctx.Err() != nil:
			d.metrics.request(method, "canceled")
			return err
		case !IsTransient(err):
			d.metrics.request(method, "error")
			return err
		}
		d.metrics.request(method, "transient")
	}

	return fmt.Errorf("%s failed after %d attempts: %w", method, attempts, lastErr)
}

// do performs a single attempt.
func (d *DeezerService) do(ctx context.Context, method string, payload []byte, result any) error {
	sid, apiToken := d.session()
	if sid == "" {
		return &APIError{Method: method, Kind: shared.ErrAuthentication, Message: "not authenticated: call Authenticate first"}
	}

	if err := d.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: rate limiter: %w", method, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, d.endpoint(method, apiToken), bytes.NewReader(payload))
	if err != nil {
		return &APIError{Method: method, Kind: shared.ErrAPIRequest, Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: "sid", Value: sid})

	resp, err := d.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &APIError{Method: method, Kind: shared.ErrTransient, Cause: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &APIError{Method: method, StatusCode: resp.StatusCode, Kind: shared.ErrTransient, Message: "failed to read response", Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			Method:     method,
			StatusCode: resp.StatusCode,
			Kind:       classifyStatus(resp.StatusCode),
			Message:    http.StatusText(resp.StatusCode),
		}
	}

	var envelope gatewayResponse
	if err := json.Unmarshal(data, &envelope); err != nil {
		return &APIError{Method: method, StatusCode: resp.StatusCode, Kind: shared.ErrMalformedResponse, Cause: err}
	}

	if code, message, ok := parseGatewayError(envelope.Error); ok {
		return &APIError{
			Method:     method,
			StatusCode: resp.StatusCode,
			Code:       code,
			Message:    message,
			Kind:       classifyCode(code),
		}
	}

	if result == nil {
		return nil
	}

	if len(envelope.Results) == 0 || string(envelope.Results) == "null" {
		return &APIError{Method: method, StatusCode: resp.StatusCode, Kind: shared.ErrMalformedResponse, Message: "missing results"}
	}
	if err := json.Unmarshal(envelope.Results, result); err != nil {
		return &APIError{Method: method, StatusCode: resp.StatusCode, Kind: shared.ErrMalformedResponse, Cause: err}
	}

	return nil
}

// abort stops all further calls after the session was rejected.
func (d *DeezerService) abort(method string, err error) {
	if d.aborted.CompareAndSwap(false, true) {
		d.logger.Error("session rejected, aborting remaining calls", "method", method, "error", err)
	}
}

func (d *DeezerService) abortedError(method string) error {
	return &APIError{Method: method, Kind: shared.ErrAuthentication, Message: "session was rejected earlier in this run"}
}

// paginate calls fetch with increasing offsets until the service reports no further pages.
//
// When the page reports a total, paging stops once that many items were read; otherwise it stops at the
// first short page.
func paginate[T any](ctx context.Context, pageSize int, fetch func(ctx context.Context, start, nb int) ([]T, int, error)) ([]T, error) {
	var all []T
	start := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		items, total, err := fetch(ctx, start, pageSize)
		if err != nil {
			return nil, err
		}

		all = append(all, items...)
		start += len(items)

		switch {
		case len(items) == 0:
			return all, nil
		case total > 0 && start >= total:
			return all, nil
		case total <= 0 && len(items) < pageSize:
			return all, nil
		}
	}
}
