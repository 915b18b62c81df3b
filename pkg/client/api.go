package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"relay-service/internal/domain"
)

var (
	ErrNoToken        = errors.New("no session token")
	ErrBadStatus      = errors.New("unexpected response status")
	ErrMarkReadDenied = errors.New("mark-read rejected by backend")
)

// API is a typed client for the tracker backend's notification and 2FA
// endpoints. Every call returns a decoded payload plus an error; callers
// mutate UI only after the result resolves.
type API struct {
	base  *url.URL
	token string
	http  *http.Client
}

func NewAPI(baseURL, token string) (*API, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	return &API{
		base:  u,
		token: token,
		http:  &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// WSEndpoint derives the relay connection address from the backend origin.
// Secure scheme iff the origin itself is secure.
func (a *API) WSEndpoint() string {
	scheme := "ws"
	if a.base.Scheme == "https" {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s/api/v1/relay/ws", scheme, a.base.Host)
}

func (a *API) Token() string { return a.token }

func (a *API) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	var reqBody *strings.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = strings.NewReader(string(data))
	} else {
		reqBody = strings.NewReader("")
	}

	u := *a.base
	u.Path = path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s %s -> %d", ErrBadStatus, method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// UnreadCount fetches the authoritative unread total.
func (a *API) UnreadCount(ctx context.Context) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	if err := a.do(ctx, http.MethodGet, "/api/v1/user/notifications/unread/count", nil, nil, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// LatestNotifications fetches the authoritative latest-notifications set.
func (a *API) LatestNotifications(ctx context.Context) ([]domain.Notification, error) {
	var out struct {
		Notifications []domain.Notification `json:"notifications"`
	}
	if err := a.do(ctx, http.MethodGet, "/api/v1/user/notifications/latest", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Notifications, nil
}

// MarkRead flags a single notification as read.
func (a *API) MarkRead(ctx context.Context, notificationID string) error {
	var out struct {
		Success bool `json:"success"`
	}
	body := map[string]string{"notification_id": notificationID}
	if err := a.do(ctx, http.MethodPost, "/api/v1/user/notifications/mark-read", nil, body, &out); err != nil {
		return err
	}
	if !out.Success {
		return ErrMarkReadDenied
	}
	return nil
}

// CheckApprovalStatus polls the secondary-device confirmation state for a
// login attempt.
func (a *API) CheckApprovalStatus(ctx context.Context, username string) (ApprovalStatus, bool, error) {
	var out struct {
		Status        string `json:"status"`
		Authenticated bool   `json:"authenticated"`
	}
	query := url.Values{"username": {username}}
	if err := a.do(ctx, http.MethodGet, "/api/v1/auth/2fa/status", query, nil, &out); err != nil {
		return "", false, err
	}
	switch out.Status {
	case "approved":
		return StatusApproved, out.Authenticated, nil
	case "declined":
		return StatusDeclined, out.Authenticated, nil
	default:
		return StatusPending, out.Authenticated, nil
	}
}

// DeclineApproval tells the backend the login attempt is over, either
// because the user cancelled or because the countdown expired.
func (a *API) DeclineApproval(ctx context.Context, username string) error {
	var out struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	body := map[string]string{"username": username}
	if err := a.do(ctx, http.MethodPost, "/api/v1/auth/2fa/decline", nil, body, &out); err != nil {
		return err
	}
	if out.Status != "success" {
		return fmt.Errorf("decline rejected: %s", out.Message)
	}
	return nil
}
