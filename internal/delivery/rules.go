package delivery

import (
	"net/http"
	"strings"

	"github.com/JonMunkholm/wabatch/internal/core"
)

// Rule maps one family of backend failures to an application error.
// Rules are tried in order and the first match wins.
type Rule struct {
	Code    string
	Kind    core.Kind
	Message string
	Action  string
	// Status is the status reported to callers; zero means the backend's
	// own status, clamped by SafeStatus.
	Status int
	Match  func(status int, lowered string) bool
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func statusIs(code int) func(int, string) bool {
	return func(status int, _ string) bool { return status == code }
}

// Rules is the ordered backend failure table. Text matches run against the
// lowercased error string the backend returned.
var Rules = []Rule{
	{
		Code:    "WHATSAPP_WPP_MISSING",
		Kind:    core.KindBackend,
		Message: `WhatsApp Web did not finish initializing ("WPP is not defined").`,
		Action:  "Wait 5-10 seconds and retry. If it repeats, click Logout or restart the app.",
		Status:  http.StatusServiceUnavailable,
		Match:   func(_ int, s string) bool { return strings.Contains(s, "wpp is not defined") },
	},
	{
		Code:    "BROWSER_PROFILE_LOCKED",
		Kind:    core.KindBackend,
		Message: "WhatsApp browser profile is locked by another running browser process.",
		Action:  "Close Chrome/Edge processes using this session, then try Send again.",
		Status:  http.StatusConflict,
		Match: func(_ int, s string) bool {
			return containsAny(s, "browser is already running", "userdatadir", "singletonlock")
		},
	},
	{
		Code:    "WHATSAPP_BROWSER_LAUNCH_FAILED",
		Kind:    core.KindBackend,
		Message: "WhatsApp browser could not start due to a local permission/system restriction.",
		Action:  "Restart the app, allow Node/Chrome in antivirus, and try again.",
		Status:  http.StatusServiceUnavailable,
		Match:   func(_ int, s string) bool { return containsAny(s, "spawn eperm", "error no open browser") },
	},
	{
		Code:    "WHATSAPP_NOT_READY",
		Kind:    core.KindBackend,
		Message: "WhatsApp is not ready yet.",
		Action:  `Keep the QR window open, scan it with your phone, and wait for "Login confirmed" before sending.`,
		Status:  http.StatusServiceUnavailable,
		Match: func(status int, s string) bool {
			return strings.Contains(s, "not ready") || status == http.StatusServiceUnavailable
		},
	},
	{
		// The backend can report this with a 2xx status and ok:false.
		Code:    "DELIVERY_TIMEOUT",
		Kind:    core.KindBackend,
		Message: "Delivery timed out while waiting for WhatsApp acknowledgment.",
		Action:  "Check internet stability, wait a few seconds, then retry.",
		Status:  http.StatusGatewayTimeout,
		Match:   func(_ int, s string) bool { return strings.Contains(s, "timed out") },
	},
	{
		// Usually a number without WhatsApp.
		Code:    "DELIVERY_FAILED",
		Kind:    core.KindBackend,
		Message: "WhatsApp did not confirm delivery for this number.",
		Action:  "Verify the number format and that the target has WhatsApp, then try again.",
		Status:  http.StatusBadGateway,
		Match:   func(_ int, s string) bool { return strings.Contains(s, "ack failed") },
	},
	{
		Code:    "MEDIA_TOO_LARGE",
		Kind:    core.KindBackend,
		Message: "Selected media is too large for WhatsApp delivery in this request.",
		Action:  "Compress the media or choose a smaller file.",
		Status:  http.StatusRequestEntityTooLarge,
		Match: func(status int, s string) bool {
			return status == http.StatusRequestEntityTooLarge || strings.Contains(s, "too large")
		},
	},
	{
		Code:    "NODE_API_BAD_REQUEST",
		Kind:    core.KindBackend,
		Message: "WhatsApp service rejected the request data.",
		Action:  "Check phone number format, message text, and media fields, then retry.",
		Status:  http.StatusBadRequest,
		Match: func(status int, s string) bool {
			return strings.Contains(s, `missing "to" or "message"`) || status == http.StatusBadRequest
		},
	},
	{
		Code:    "NODE_API_UNAUTHORIZED",
		Kind:    core.KindBackend,
		Message: "WhatsApp session is not authorized.",
		Action:  "Start login again and scan a fresh QR code.",
		Status:  http.StatusUnauthorized,
		Match:   statusIs(http.StatusUnauthorized),
	},
	{
		Code:    "NODE_API_FORBIDDEN",
		Kind:    core.KindBackend,
		Message: "WhatsApp service denied this operation.",
		Action:  "Re-login and try again.",
		Status:  http.StatusForbidden,
		Match:   statusIs(http.StatusForbidden),
	},
	{
		Code:    "NODE_API_ROUTE_NOT_FOUND",
		Kind:    core.KindBackend,
		Message: "Internal WhatsApp API route was not found.",
		Action:  "Restart the app so the server and the WhatsApp service run matching versions.",
		Status:  http.StatusNotFound,
		Match:   statusIs(http.StatusNotFound),
	},
	{
		Code:    "NODE_API_CONFLICT",
		Kind:    core.KindBackend,
		Message: "WhatsApp session is in a conflicting state.",
		Action:  "Wait a few seconds and retry. If it repeats, restart the app.",
		Status:  http.StatusConflict,
		Match:   statusIs(http.StatusConflict),
	},
	{
		Code:    "NODE_API_RATE_LIMIT",
		Kind:    core.KindBackend,
		Message: "Too many requests were sent to WhatsApp too quickly.",
		Action:  "Wait 30-60 seconds, then try again.",
		Status:  http.StatusTooManyRequests,
		Match:   statusIs(http.StatusTooManyRequests),
	},
	{
		Code:    "NODE_API_SERVER_ERROR",
		Kind:    core.KindBackend,
		Message: "WhatsApp service had an internal failure.",
		Action:  "Retry once; if it repeats, restart the app.",
		Match:   func(status int, _ string) bool { return status >= 500 && status <= 599 },
	},
}

var fallbackRule = Rule{
	Code:    "WHATSAPP_API_ERROR",
	Kind:    core.KindBackend,
	Message: "WhatsApp service returned an unexpected error.",
	Action:  "Retry once; if it continues, restart the app.",
}

// SafeStatus keeps real 4xx/5xx statuses and turns anything else into 502.
func SafeStatus(status int) int {
	if status >= 400 && status <= 599 {
		return status
	}
	return http.StatusBadGateway
}

// Classify maps a backend failure to an application error. raw is the
// backend's error text; it is kept verbatim in Details.
func Classify(status int, raw string) *core.Error {
	safe := SafeStatus(status)
	lowered := strings.ToLower(raw)

	rule := fallbackRule
	for _, r := range Rules {
		if r.Match(safe, lowered) {
			rule = r
			break
		}
	}

	out := &core.Error{
		Kind:    rule.Kind,
		Code:    rule.Code,
		Message: rule.Message,
		Action:  rule.Action,
		Status:  rule.Status,
		Details: raw,
	}
	if out.Status == 0 {
		out.Status = safe
	}
	return out
}
