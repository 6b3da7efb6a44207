package farcaster

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/carlmjohnson/versioninfo"
	"github.com/google/go-querystring/query"
)

// ErrUnexpectedStatus matches any *APIError with errors.Is.
var ErrUnexpectedStatus = errors.New("unexpected HTTP status")

// Client is a small JSON-over-HTTP client shared by the Neynar and Warpcast API wrappers.
type Client struct {
	// if nil, uses http.DefaultClient
	Client    *http.Client
	Host      string
	UserAgent *string
	// set on every request, eg API keys
	Headers map[string]string
}

func (c *Client) getClient() *http.Client {
	if c.Client == nil {
		return http.DefaultClient
	}
	return c.Client
}

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Ratelimit  *RatelimitInfo
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.StatusCode == http.StatusTooManyRequests && e.Ratelimit != nil && !e.Ratelimit.Reset.IsZero() {
		return fmt.Sprintf("API error %d: %s (throttled until %s)", e.StatusCode, msg, e.Ratelimit.Reset.Local())
	}
	return fmt.Sprintf("API error %d: %s", e.StatusCode, msg)
}

func (e *APIError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}

func (e *APIError) IsThrottled() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

type RatelimitInfo struct {
	Limit     int
	Remaining int
	Reset     time.Time
}

// both APIs report errors as a JSON object; Neynar uses "code", Warpcast an "errors" list
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Errors  []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func errorFromHTTPResponse(resp *http.Response) error {
	e := &APIError{StatusCode: resp.StatusCode}
	var eb errorBody
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&eb); err == nil {
		e.Code = eb.Code
		e.Message = eb.Message
		if e.Message == "" && len(eb.Errors) > 0 {
			msgs := make([]string, len(eb.Errors))
			for i, m := range eb.Errors {
				msgs[i] = m.Message
			}
			e.Message = strings.Join(msgs, "; ")
		}
	}
	if resp.Header.Get("x-ratelimit-limit") != "" {
		e.Ratelimit = &RatelimitInfo{}
		if n, err := strconv.ParseInt(resp.Header.Get("x-ratelimit-reset"), 10, 64); err == nil {
			e.Ratelimit.Reset = time.Unix(n, 0)
		}
		if n, err := strconv.Atoi(resp.Header.Get("x-ratelimit-limit")); err == nil {
			e.Ratelimit.Limit = n
		}
		if n, err := strconv.Atoi(resp.Header.Get("x-ratelimit-remaining")); err == nil {
			e.Ratelimit.Remaining = n
		}
	}
	return e
}

// Do sends one request. params is a struct with `url` tags (go-querystring) or nil; bodyobj is JSON encoded when
// non-nil; out is JSON decoded from a 2xx response when non-nil.
func (c *Client) Do(ctx context.Context, method, path string, params any, bodyobj any, out any) error {
	uri := c.Host + path
	if params != nil {
		vals, err := query.Values(params)
		if err != nil {
			return fmt.Errorf("encoding query params: %w", err)
		}
		if enc := vals.Encode(); enc != "" {
			uri += "?" + enc
		}
	}

	var body io.Reader
	if bodyobj != nil {
		b, err := json.Marshal(bodyobj)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, uri, body)
	if err != nil {
		return err
	}
	if bodyobj != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.UserAgent != nil {
		req.Header.Set("User-Agent", *c.UserAgent)
	} else {
		req.Header.Set("User-Agent", "castmod/"+versioninfo.Short())
	}
	for k, v := range c.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.getClient().Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errorFromHTTPResponse(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding %s response: %w", path, err)
		}
	}
	return nil
}
