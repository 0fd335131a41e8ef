package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cally-platform/internal/calendar"
)

const outlookEventColor = "#0078d4"

// OutlookClient talks to the Microsoft Graph calendar API. Responses are
// pinned to UTC via the Prefer header; Graph then emits zone-less local
// timestamps which normalizeInstant asserts as UTC.
type OutlookClient struct {
	clientID     string
	clientSecret string
	apiBaseURL   string
	tokenURL     string
	client       *http.Client
	clock        func() time.Time
}

func NewOutlookClient(clientID, clientSecret string, timeout time.Duration) *OutlookClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OutlookClient{
		clientID:     clientID,
		clientSecret: clientSecret,
		apiBaseURL:   "https://graph.microsoft.com/v1.0",
		tokenURL:     "https://login.microsoftonline.com/common/oauth2/v2.0/token",
		client:       &http.Client{Timeout: timeout},
		clock:        time.Now,
	}
}

func (o *OutlookClient) Name() string { return calendar.SourceOutlook }

type graphDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type graphEvent struct {
	ID       string        `json:"id,omitempty"`
	Subject  string        `json:"subject,omitempty"`
	IsAllDay bool          `json:"isAllDay,omitempty"`
	Start    graphDateTime `json:"start"`
	End      graphDateTime `json:"end"`

	Location *struct {
		DisplayName string `json:"displayName"`
	} `json:"location,omitempty"`
	Body *struct {
		ContentType string `json:"contentType"`
		Content     string `json:"content"`
	} `json:"body,omitempty"`

	IsCancelled bool `json:"isCancelled,omitempty"`
}

func (o *OutlookClient) ListEvents(ctx context.Context, cfg Config, utcStart, utcEnd time.Time) ([]calendar.Item, Config, error) {
	cfg, err := o.ensureToken(ctx, cfg)
	if err != nil {
		return nil, cfg, err
	}

	q := url.Values{}
	q.Set("startDateTime", utcStart.UTC().Format(time.RFC3339))
	q.Set("endDateTime", utcEnd.UTC().Format(time.RFC3339))
	q.Set("$top", "500")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.apiBaseURL+"/me/calendarview?"+q.Encode(), nil)
	if err != nil {
		return nil, cfg, err
	}
	req.Header.Set("Authorization", "Bearer "+cfg.AccessToken)
	req.Header.Set("Prefer", `outlook.timezone="UTC"`)

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, cfg, fmt.Errorf("outlook: list events: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, cfg, fmt.Errorf("outlook: list events: status %d", resp.StatusCode)
	}

	var body struct {
		Value []graphEvent `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, cfg, fmt.Errorf("outlook: decode events: %w", err)
	}

	items := make([]calendar.Item, 0, len(body.Value))
	for _, ev := range body.Value {
		if ev.IsCancelled {
			continue
		}
		items = append(items, o.toItem(ev))
	}
	return items, cfg, nil
}

func (o *OutlookClient) toItem(ev graphEvent) calendar.Item {
	title := ev.Subject
	if title == "" {
		title = untitledEvent
	}
	item := calendar.Item{
		ID:              calendar.SourceOutlook + "-" + ev.ID,
		Title:           title,
		Start:           normalizeInstant(ev.Start.DateTime),
		End:             normalizeInstant(ev.End.DateTime),
		AllDay:          ev.IsAllDay,
		Color:           outlookEventColor,
		Source:          calendar.SourceOutlook,
		ProviderEventID: ev.ID,
	}
	if ev.Location != nil {
		item.Location = ev.Location.DisplayName
	}
	if ev.Body != nil {
		item.Description = ev.Body.Content
	}
	return item
}

func (o *OutlookClient) CreateEvent(ctx context.Context, cfg Config, ev calendar.CalendarEvent) (string, Config, error) {
	cfg, err := o.ensureToken(ctx, cfg)
	if err != nil {
		return "", cfg, err
	}

	payload := o.payload(ev)
	var out graphEvent
	if err := o.doJSON(ctx, cfg, http.MethodPost, o.apiBaseURL+"/me/events", payload, &out); err != nil {
		return "", cfg, err
	}
	return out.ID, cfg, nil
}

func (o *OutlookClient) UpdateEvent(ctx context.Context, cfg Config, ev calendar.CalendarEvent, providerEventID string) (Config, error) {
	cfg, err := o.ensureToken(ctx, cfg)
	if err != nil {
		return cfg, err
	}
	if ev.Status == calendar.StatusCancelled {
		return cfg, o.doJSON(ctx, cfg, http.MethodDelete, o.apiBaseURL+"/me/events/"+url.PathEscape(providerEventID), nil, nil)
	}
	return cfg, o.doJSON(ctx, cfg, http.MethodPatch, o.apiBaseURL+"/me/events/"+url.PathEscape(providerEventID), o.payload(ev), nil)
}

func (o *OutlookClient) payload(ev calendar.CalendarEvent) map[string]any {
	p := map[string]any{
		"subject": ev.Title,
		"start":   graphDateTime{DateTime: calendar.FormatInstant(ev.StartTime), TimeZone: "UTC"},
		"end":     graphDateTime{DateTime: calendar.FormatInstant(ev.EndTime), TimeZone: "UTC"},
	}
	if ev.Description != "" {
		p["body"] = map[string]string{"contentType": "text", "content": ev.Description}
	}
	if ev.Location != "" {
		p["location"] = map[string]string{"displayName": ev.Location}
	}
	return p
}

func (o *OutlookClient) doJSON(ctx context.Context, cfg Config, method, endpoint string, in, out any) error {
	var body *bytes.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+cfg.AccessToken)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("outlook: %s: %w", method, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("outlook: %s: status %d", method, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (o *OutlookClient) ensureToken(ctx context.Context, cfg Config) (Config, error) {
	if cfg.AccessToken != "" && !cfg.Expired(o.clock()) {
		return cfg, nil
	}
	if cfg.RefreshToken == "" {
		return cfg, fmt.Errorf("outlook: access token expired and no refresh token")
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", cfg.RefreshToken)
	form.Set("client_id", o.clientID)
	form.Set("client_secret", o.clientSecret)
	form.Set("scope", "offline_access Calendars.ReadWrite")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return cfg, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := o.client.Do(req)
	if err != nil {
		return cfg, fmt.Errorf("outlook: token refresh: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return cfg, fmt.Errorf("outlook: token refresh: status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return cfg, fmt.Errorf("outlook: token refresh: %w", err)
	}

	cfg.AccessToken = body.AccessToken
	if body.RefreshToken != "" {
		cfg.RefreshToken = body.RefreshToken
	}
	cfg.TokenExpiry = o.clock().Add(time.Duration(body.ExpiresIn) * time.Second)
	cfg.UpdatedAt = o.clock().UTC()
	return cfg, nil
}
