// Package access implements the access controller: it answers "/access"
// requests by checking a presented token against a backend (mock or
// real IAA server) and publishing whether the requested actions are
// allowed.
package access

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sofie-iot/smaug-locker/internal/controller"
)

// AllActions lists every action the access protocol recognizes.
var AllActions = []string{"lock", "unlock", "state"}

// Checker authenticates a token and reports which actions it grants.
// A nil expires means the grant does not expire.
type Checker interface {
	Check(ctx context.Context, token string) (valid bool, allowed []string, expires *time.Time, err error)
}

// MockChecker parses tokens of the form "valid;actions;expires", where
// valid is any value strconv.ParseBool accepts ("true"/"false",
// "1"/"0", ...), actions is "all" or a comma-separated subset of
// AllActions, and expires is a bare four-digit year or an RFC 3339
// timestamp (see parseExpiry). A token
// that fails to parse is treated as a dummy universal grant valid for
// 24 hours, matching the reference mock controller's fallback.
type MockChecker struct{}

func (MockChecker) Check(ctx context.Context, token string) (bool, []string, *time.Time, error) {
	parts := strings.SplitN(token, ";", 3)
	if len(parts) != 3 {
		return fallbackGrant()
	}

	valid, err := strconv.ParseBool(parts[0])
	if err != nil {
		return fallbackGrant()
	}

	var allowed []string
	if parts[1] == "all" {
		allowed = AllActions
	} else {
		allowed = strings.Split(parts[1], ",")
	}

	expires, err := parseExpiry(parts[2])
	if err != nil {
		return fallbackGrant()
	}

	return valid, allowed, &expires, nil
}

// parseExpiry accepts RFC 3339 timestamps and bare four-digit years
// (a valid ISO 8601 date, per the mock controller's test tokens such
// as "1970" or "9999"), trying the year-only layout first since
// time.Parse(time.RFC3339, ...) rejects it outright.
func parseExpiry(s string) (time.Time, error) {
	if t, err := time.Parse("2006", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func fallbackGrant() (bool, []string, *time.Time, error) {
	expires := time.Now().UTC().Add(24 * time.Hour)
	return true, AllActions, &expires, nil
}

// HTTPChecker authenticates against a real IAA server: GET /verify
// with a bearer header. A 200 response grants every action for one
// hour; anything else, or a transport error, denies the token.
type HTTPChecker struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPChecker(baseURL string) *HTTPChecker {
	return &HTTPChecker{BaseURL: baseURL, Client: &http.Client{Timeout: 10 * time.Second}}
}

func (c *HTTPChecker) Check(ctx context.Context, token string) (bool, []string, *time.Time, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/verify", nil)
	if err != nil {
		return false, nil, nil, nil
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.Client.Do(req)
	if err != nil {
		return false, nil, nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, nil, nil, nil
	}
	expires := time.Now().UTC().Add(time.Hour)
	return true, AllActions, &expires, nil
}

// Request is the decoded payload of an "/access" message.
type Request struct {
	ID      string   `json:"id"`
	Token   string   `json:"token"`
	Actions []string `json:"actions"`
}

// Response is published back (to the response topic, or "/access_result").
type Response struct {
	ID      string   `json:"id"`
	Token   string   `json:"token"`
	Valid   bool     `json:"valid"`
	Allowed bool     `json:"allowed"`
	Actions []string `json:"actions"`
	Expires string   `json:"expires,omitempty"`
}

// evaluate computes whether actions are all within allowed, the token
// is valid, and the grant has not expired, matching access_message's
// allowed-computation rule.
func evaluate(valid bool, allowed, actions []string, expires *time.Time) bool {
	if !valid {
		return false
	}
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		allowedSet[a] = struct{}{}
	}
	for _, a := range actions {
		if _, ok := allowedSet[a]; !ok {
			return false
		}
	}
	if expires != nil && expires.Before(time.Now().UTC()) {
		return false
	}
	return true
}

// Controller answers /access requests using Checker.
type Controller struct {
	checker Checker
	pub     controller.Publisher
}

// New builds an access Controller backed by checker (MockChecker or
// an HTTPChecker).
func New(checker Checker) *Controller {
	return &Controller{checker: checker}
}

func (c *Controller) SetPublisher(pub controller.Publisher)  { c.pub = pub }
func (c *Controller) Initialize(ctx context.Context) error   { return nil }
func (c *Controller) Uninitialize(ctx context.Context) error { return nil }

func (c *Controller) Handlers() []controller.Registration {
	return []controller.Registration{
		{Topic: "/access", Handler: c.handleAccess},
	}
}

func (c *Controller) handleAccess(ctx context.Context, payload map[string]interface{}, responseTopic string) error {
	req := decodeRequest(payload)

	valid, allowed, expires, err := c.checker.Check(ctx, req.Token)
	if err != nil {
		return fmt.Errorf("access: check token: %w", err)
	}

	resp := Response{
		ID:      req.ID,
		Token:   req.Token,
		Valid:   valid,
		Allowed: evaluate(valid, allowed, req.Actions, expires),
		Actions: allowed,
	}
	if expires != nil {
		resp.Expires = expires.Format(time.RFC3339)
	}

	topic := responseTopic
	if topic == "" {
		topic = "/access_result"
	}
	return c.pub.Publish(topic, 1, responseToPayload(resp), "")
}

func decodeRequest(payload map[string]interface{}) Request {
	req := Request{}
	if v, ok := payload["id"].(string); ok {
		req.ID = v
	}
	if v, ok := payload["token"].(string); ok {
		req.Token = v
	}
	if v, ok := payload["actions"].([]interface{}); ok {
		for _, item := range v {
			if s, ok := item.(string); ok {
				req.Actions = append(req.Actions, s)
			}
		}
	}
	return req
}

func responseToPayload(r Response) map[string]interface{} {
	actionsIface := make([]interface{}, len(r.Actions))
	for i, a := range r.Actions {
		actionsIface[i] = a
	}
	m := map[string]interface{}{
		"id":      r.ID,
		"token":   r.Token,
		"valid":   r.Valid,
		"allowed": r.Allowed,
		"actions": actionsIface,
	}
	if r.Expires != "" {
		m["expires"] = r.Expires
	}
	return m
}
