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

const googleEventColor = "#4285f4"

// GoogleClient talks to the Google Calendar v3 REST API. Expired access
// tokens are refreshed against the OAuth token endpoint before each call.
type GoogleClient struct {
	clientID     string
	clientSecret string
	apiBaseURL   string
	tokenURL     string
	client       *http.Client
	clock        func() time.Time
}

func NewGoogleClient(clientID, clientSecret string, timeout time.Duration) *GoogleClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GoogleClient{
		clientID:     clientID,
		clientSecret: clientSecret,
		apiBaseURL:   "https://www.googleapis.com/calendar/v3",
		tokenURL:     "https://oauth2.googleapis.com/token",
		client:       &http.Client{Timeout: timeout},
		clock:        time.Now,
	}
}

func (g *GoogleClient) Name() string { return calendar.SourceGoogle }

type googleEventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

type googleEvent struct {
	ID          string          `json:"id,omitempty"`
	Summary     string          `json:"summary,omitempty"`
	Description string          `json:"description,omitempty"`
	Location    string          `json:"location,omitempty"`
	Status      string          `json:"status,omitempty"`
	Start       googleEventTime `json:"start"`
	End         googleEventTime `json:"end"`
}

func (g *GoogleClient) ListEvents(ctx context.Context, cfg Config, utcStart, utcEnd time.Time) ([]calendar.Item, Config, error) {
	cfg, err := g.ensureToken(ctx, cfg)
	if err != nil {
		return nil, cfg, err
	}

	q := url.Values{}
	q.Set("timeMin", utcStart.UTC().Format(time.RFC3339))
	q.Set("timeMax", utcEnd.UTC().Format(time.RFC3339))
	q.Set("singleEvents", "true")
	q.Set("orderBy", "startTime")
	q.Set("maxResults", "2500")

	endpoint := g.apiBaseURL + "/calendars/" + url.PathEscape(g.calendarID(cfg)) + "/events?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, cfg, err
	}
	req.Header.Set("Authorization", "Bearer "+cfg.AccessToken)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, cfg, fmt.Errorf("google: list events: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, cfg, fmt.Errorf("google: list events: status %d", resp.StatusCode)
	}

	var body struct {
		Items []googleEvent `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, cfg, fmt.Errorf("google: decode events: %w", err)
	}

	items := make([]calendar.Item, 0, len(body.Items))
	for _, ev := range body.Items {
		if ev.Status == "cancelled" {
			continue
		}
		items = append(items, g.toItem(ev))
	}
	return items, cfg, nil
}

func (g *GoogleClient) toItem(ev googleEvent) calendar.Item {
	title := ev.Summary
	if title == "" {
		title = untitledEvent
	}
	start := ev.Start.DateTime
	end := ev.End.DateTime
	allDay := false
	if start == "" && ev.Start.Date != "" {
		start = ev.Start.Date
		end = ev.End.Date
		allDay = true
	}
	return calendar.Item{
		ID:              calendar.SourceGoogle + "-" + ev.ID,
		Title:           title,
		Start:           normalizeInstant(start),
		End:             normalizeInstant(end),
		AllDay:          allDay,
		Color:           googleEventColor,
		Source:          calendar.SourceGoogle,
		ProviderEventID: ev.ID,
		Location:        ev.Location,
		Description:     ev.Description,
	}
}

func (g *GoogleClient) CreateEvent(ctx context.Context, cfg Config, ev calendar.CalendarEvent) (string, Config, error) {
	cfg, err := g.ensureToken(ctx, cfg)
	if err != nil {
		return "", cfg, err
	}

	payload := googleEvent{
		Summary:     ev.Title,
		Description: ev.Description,
		Location:    ev.Location,
		Start:       googleEventTime{DateTime: calendar.FormatInstant(ev.StartTime), TimeZone: "UTC"},
		End:         googleEventTime{DateTime: calendar.FormatInstant(ev.EndTime), TimeZone: "UTC"},
	}

	var out googleEvent
	endpoint := g.apiBaseURL + "/calendars/" + url.PathEscape(g.calendarID(cfg)) + "/events"
	if err := g.doJSON(ctx, cfg, http.MethodPost, endpoint, payload, &out); err != nil {
		return "", cfg, err
	}
	return out.ID, cfg, nil
}

func (g *GoogleClient) UpdateEvent(ctx context.Context, cfg Config, ev calendar.CalendarEvent, providerEventID string) (Config, error) {
	cfg, err := g.ensureToken(ctx, cfg)
	if err != nil {
		return cfg, err
	}

	payload := googleEvent{
		Summary:     ev.Title,
		Description: ev.Description,
		Location:    ev.Location,
		Start:       googleEventTime{DateTime: calendar.FormatInstant(ev.StartTime), TimeZone: "UTC"},
		End:         googleEventTime{DateTime: calendar.FormatInstant(ev.EndTime), TimeZone: "UTC"},
	}
	if ev.Status == calendar.StatusCancelled {
		payload.Status = "cancelled"
	}

	endpoint := g.apiBaseURL + "/calendars/" + url.PathEscape(g.calendarID(cfg)) + "/events/" + url.PathEscape(providerEventID)
	return cfg, g.doJSON(ctx, cfg, http.MethodPut, endpoint, payload, nil)
}

func (g *GoogleClient) calendarID(cfg Config) string {
	if cfg.CalendarID != "" {
		return cfg.CalendarID
	}
	return "primary"
}

func (g *GoogleClient) doJSON(ctx context.Context, cfg Config, method, endpoint string, in, out any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+cfg.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("google: %s: %w", method, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("google: %s: status %d", method, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (g *GoogleClient) ensureToken(ctx context.Context, cfg Config) (Config, error) {
	if cfg.AccessToken != "" && !cfg.Expired(g.clock()) {
		return cfg, nil
	}
	if cfg.RefreshToken == "" {
		return cfg, fmt.Errorf("google: access token expired and no refresh token")
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", cfg.RefreshToken)
	form.Set("client_id", g.clientID)
	form.Set("client_secret", g.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return cfg, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return cfg, fmt.Errorf("google: token refresh: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return cfg, fmt.Errorf("google: token refresh: status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return cfg, fmt.Errorf("google: token refresh: %w", err)
	}

	cfg.AccessToken = body.AccessToken
	cfg.TokenExpiry = g.clock().Add(time.Duration(body.ExpiresIn) * time.Second)
	cfg.UpdatedAt = g.clock().UTC()
	return cfg, nil
}
