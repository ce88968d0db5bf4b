// Package delivery talks to the WhatsApp automation backend over HTTP/JSON.
//
// Every backend answer is a JSON object {ok: bool, error?: string}. Transport
// failures, non-JSON bodies, non-2xx statuses and ok:false answers all come
// back as *core.Error, classified by the rule table in rules.go.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/JonMunkholm/wabatch/internal/core"
	"github.com/JonMunkholm/wabatch/internal/logging"
	"github.com/JonMunkholm/wabatch/internal/metrics"
)

// Backend operations, used as metric labels.
const (
	OpSendText   = "send_text"
	OpSendMedia  = "send_media"
	OpLogout     = "logout"
	OpAuthStart  = "auth_start"
	OpAuthStatus = "auth_status"
)

const maxResponseBytes = 1 << 20

// Transport failures.
var (
	ErrTimeout = core.NewError(core.KindTransport, "NODE_API_TIMEOUT", http.StatusGatewayTimeout,
		"WhatsApp service is taking too long to respond. Check your connection and try again.")
	ErrUnreachable = core.NewError(core.KindTransport, "NODE_API_UNREACHABLE", http.StatusServiceUnavailable,
		"Cannot connect to WhatsApp service. Wait a few seconds and try again.")
	ErrRequest = core.NewError(core.KindTransport, "NODE_API_REQUEST_ERROR", http.StatusBadGateway,
		"Network error while contacting WhatsApp service.")
	ErrBadResponse = core.NewError(core.KindTransport, "NODE_API_BAD_RESPONSE", http.StatusBadGateway,
		"WhatsApp service returned an unexpected response.")

	ErrLogoutFailed = core.NewError(core.KindSession, "LOGOUT_FAILED", http.StatusBadGateway,
		"Failed to close WhatsApp session after sending.")
	ErrAuthStartFailed = core.NewError(core.KindSession, "AUTH_START_FAILED", http.StatusBadGateway,
		"Failed to start WhatsApp login.")
	ErrAuthStatusFailed = core.NewError(core.KindSession, "AUTH_STATUS_FAILED", http.StatusBadGateway,
		"Failed to read WhatsApp login status.")
)

// Timeouts bounds each kind of backend call.
type Timeouts struct {
	Text   time.Duration
	Media  time.Duration
	Logout time.Duration
	Auth   time.Duration
}

// DefaultTimeouts are used for any zero field.
var DefaultTimeouts = Timeouts{
	Text:   10 * time.Second,
	Media:  120 * time.Second,
	Logout: 20 * time.Second,
	Auth:   10 * time.Second,
}

// Client is the delivery backend client. It implements core.Backend.
type Client struct {
	baseURL  string
	http     *http.Client
	timeouts Timeouts
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, timeouts Timeouts, opts ...Option) *Client {
	if timeouts.Text <= 0 {
		timeouts.Text = DefaultTimeouts.Text
	}
	if timeouts.Media <= 0 {
		timeouts.Media = DefaultTimeouts.Media
	}
	if timeouts.Logout <= 0 {
		timeouts.Logout = DefaultTimeouts.Logout
	}
	if timeouts.Auth <= 0 {
		timeouts.Auth = DefaultTimeouts.Auth
	}

	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{},
		timeouts: timeouts,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend address.
func (c *Client) BaseURL() string { return c.baseURL }

type sendTextRequest struct {
	To          string `json:"to"`
	Message     string `json:"message"`
	KeepSession bool   `json:"keepSession"`
}

type sendMediaRequest struct {
	To          string `json:"to"`
	Filename    string `json:"filename"`
	Caption     string `json:"caption"`
	Base64      string `json:"base64"`
	KeepSession bool   `json:"keepSession"`
}

// SendText sends a text message to a WhatsApp identifier.
func (c *Client) SendText(ctx context.Context, to, message string, keepSession bool) (err error) {
	defer observe(OpSendText, time.Now(), &err)

	_, err = c.postOK(ctx, "/send-text", sendTextRequest{
		To:          to,
		Message:     message,
		KeepSession: keepSession,
	}, c.timeouts.Text)
	return err
}

// SendMedia sends an attachment with a caption.
func (c *Client) SendMedia(ctx context.Context, to string, media core.MediaPayload, keepSession bool) (err error) {
	defer observe(OpSendMedia, time.Now(), &err)

	_, err = c.postOK(ctx, "/send-media", sendMediaRequest{
		To:          to,
		Filename:    media.Filename,
		Caption:     media.Caption,
		Base64:      media.DataURL,
		KeepSession: keepSession,
	}, c.timeouts.Media)
	return err
}

// Logout closes the backend's WhatsApp session. Every failure is a
// LOGOUT_FAILED session error wrapping the transport or backend cause.
func (c *Client) Logout(ctx context.Context) (err error) {
	defer observe(OpLogout, time.Now(), &err)

	data, err := c.call(ctx, http.MethodPost, "/session/logout", struct{}{}, c.timeouts.Logout)
	if err != nil {
		return ErrLogoutFailed.Wrap(err)
	}
	if !isOK(data) {
		return ErrLogoutFailed.WithDetails(errorText(data))
	}
	return nil
}

// AuthStart asks the backend to begin a QR login and returns its answer.
func (c *Client) AuthStart(ctx context.Context) (data map[string]any, err error) {
	defer observe(OpAuthStart, time.Now(), &err)

	data, err = c.call(ctx, http.MethodPost, "/auth/start", struct{}{}, c.timeouts.Auth)
	if err != nil {
		return nil, err
	}
	if !isOK(data) {
		return nil, ErrAuthStartFailed.WithDetails(errorText(data))
	}
	return data, nil
}

// AuthStatus returns the backend's login state.
func (c *Client) AuthStatus(ctx context.Context) (data map[string]any, err error) {
	defer observe(OpAuthStatus, time.Now(), &err)

	data, err = c.call(ctx, http.MethodGet, "/auth/status", nil, c.timeouts.Auth)
	if err != nil {
		return nil, err
	}
	if !isOK(data) {
		return nil, ErrAuthStatusFailed.WithDetails(errorText(data))
	}
	return data, nil
}

func observe(operation string, start time.Time, errp *error) {
	metrics.ObserveDelivery(operation, start, *errp)
}

// postOK posts payload and treats an ok:false answer as a backend failure.
func (c *Client) postOK(ctx context.Context, endpoint string, payload any, timeout time.Duration) (map[string]any, error) {
	data, err := c.call(ctx, http.MethodPost, endpoint, payload, timeout)
	if err != nil {
		return nil, err
	}
	if !isOK(data) {
		return nil, Classify(http.StatusBadGateway, errorText(data))
	}
	return data, nil
}

// call performs one request and decodes the JSON answer. A nil payload sends
// no body. Non-2xx statuses are classified; the body must be JSON either way.
func (c *Client) call(ctx context.Context, method, endpoint string, payload any, timeout time.Duration) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, ErrRequest.Wrap(fmt.Errorf("encode %s payload: %w", endpoint, err))
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, ErrRequest.Wrap(err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	logger := logging.FromContext(ctx)
	logger.Debug("backend request", "method", method, "endpoint", endpoint)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, transportError(err)
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		logger.Warn("backend returned non-JSON body", "endpoint", endpoint, "status", resp.StatusCode)
		return nil, ErrBadResponse.Wrap(err)
	}
	data, _ := decoded.(map[string]any)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		appErr := Classify(resp.StatusCode, errorText(data))
		logger.Warn("backend call failed",
			"endpoint", endpoint,
			"status", resp.StatusCode,
			"code", appErr.Code,
			"details", appErr.Details,
		)
		return nil, appErr
	}
	if data == nil {
		data = map[string]any{}
	}
	return data, nil
}

// transportError classifies a failure to get any answer from the backend.
func transportError(err error) *core.Error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return ErrTimeout.Wrap(err)
	case errors.Is(err, syscall.ECONNREFUSED), isDialError(err):
		return ErrUnreachable.Wrap(err)
	default:
		return ErrRequest.Wrap(err)
	}
}

func isDialError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

func isOK(data map[string]any) bool {
	ok, _ := data["ok"].(bool)
	return ok
}

// errorText returns the answer's error field as text.
func errorText(data map[string]any) string {
	switch v := data["error"].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
