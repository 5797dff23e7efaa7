package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	pkgerrors "github.com/pkg/errors"

	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/model"
	"github.com/nakuljhunjhunwala/StoryTimeCalendar-sub001/internal/retry"
)

// GoogleProvider talks to the Google Calendar v3 REST API.
type GoogleProvider struct {
	client *resty.Client
	policy *retry.Policy
}

// NewGoogleProvider builds a provider against the given API base URL
// (normally https://www.googleapis.com/calendar/v3).
func NewGoogleProvider(baseURL string, policy *retry.Policy) *GoogleProvider {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetTimeout(30 * time.Second)
	return &GoogleProvider{client: c, policy: policy}
}

type googleCalendarList struct {
	Items []struct {
		ID       string `json:"id"`
		Summary  string `json:"summary"`
		TimeZone string `json:"timeZone"`
		Primary  bool   `json:"primary"`
	} `json:"items"`
	NextPageToken string `json:"nextPageToken"`
}

type googleEventTime struct {
	DateTime string `json:"dateTime"`
	Date     string `json:"date"`
}

type googleEventList struct {
	Items []struct {
		ID          string          `json:"id"`
		Status      string          `json:"status"`
		Summary     string          `json:"summary"`
		Description string          `json:"description"`
		Location    string          `json:"location"`
		HangoutLink string          `json:"hangoutLink"`
		Start       googleEventTime `json:"start"`
		End         googleEventTime `json:"end"`
		Attendees   []struct {
			Email string `json:"email"`
		} `json:"attendees"`
	} `json:"items"`
	NextPageToken string `json:"nextPageToken"`
}

// ListCalendars returns every calendar on the user's calendar list.
func (p *GoogleProvider) ListCalendars(ctx context.Context, cred Credential) ([]Calendar, error) {
	if cred.Expired(time.Now()) {
		return nil, model.ErrAuthExpired
	}

	var out []Calendar
	pageToken := ""
	for {
		var page googleCalendarList
		err := p.policy.Do(ctx, retry.ClassExternalFetch, func(ctx context.Context) error {
			req := p.client.R().
				SetContext(ctx).
				SetAuthToken(cred.AccessToken).
				SetResult(&page)
			if pageToken != "" {
				req.SetQueryParam("pageToken", pageToken)
			}
			resp, err := req.Get("/users/me/calendarList")
			return classify(resp, err)
		})
		if err != nil {
			return nil, err
		}
		for _, it := range page.Items {
			out = append(out, Calendar{
				ProviderID:  it.ID,
				DisplayName: it.Summary,
				TimeZone:    it.TimeZone,
				IsPrimary:   it.Primary,
			})
		}
		if page.NextPageToken == "" {
			return out, nil
		}
		pageToken = page.NextPageToken
	}
}

// ListEvents returns single (expanded) events within the window.
func (p *GoogleProvider) ListEvents(ctx context.Context, cred Credential, providerCalendarID string, w Window) ([]Event, error) {
	if cred.Expired(time.Now()) {
		return nil, model.ErrAuthExpired
	}

	var out []Event
	pageToken := ""
	for {
		var page googleEventList
		err := p.policy.Do(ctx, retry.ClassExternalFetch, func(ctx context.Context) error {
			req := p.client.R().
				SetContext(ctx).
				SetAuthToken(cred.AccessToken).
				SetQueryParams(map[string]string{
					"timeMin":      w.From.UTC().Format(time.RFC3339),
					"timeMax":      w.To.UTC().Format(time.RFC3339),
					"singleEvents": "true",
					"orderBy":      "startTime",
				}).
				SetResult(&page)
			if pageToken != "" {
				req.SetQueryParam("pageToken", pageToken)
			}
			resp, err := req.Get(fmt.Sprintf("/calendars/%s/events", providerCalendarID))
			return classify(resp, err)
		})
		if err != nil {
			return nil, err
		}
		for _, it := range page.Items {
			start, end, allDay, perr := parseEventTimes(it.Start, it.End)
			if perr != nil {
				return nil, pkgerrors.Wrapf(perr, "event %s", it.ID)
			}
			out = append(out, Event{
				ProviderID:    it.ID,
				Title:         it.Summary,
				Description:   it.Description,
				Start:         start,
				End:           end,
				IsAllDay:      allDay,
				Location:      it.Location,
				MeetingLink:   it.HangoutLink,
				AttendeeCount: len(it.Attendees),
				Cancelled:     it.Status == "cancelled",
			})
		}
		if page.NextPageToken == "" {
			return out, nil
		}
		pageToken = page.NextPageToken
	}
}

func parseEventTimes(start, end googleEventTime) (time.Time, time.Time, bool, error) {
	if start.Date != "" {
		s, err := time.Parse("2006-01-02", start.Date)
		if err != nil {
			return time.Time{}, time.Time{}, false, err
		}
		e, err := time.Parse("2006-01-02", end.Date)
		if err != nil {
			return time.Time{}, time.Time{}, false, err
		}
		return s, e, true, nil
	}
	s, err := time.Parse(time.RFC3339, start.DateTime)
	if err != nil {
		return time.Time{}, time.Time{}, false, err
	}
	e, err := time.Parse(time.RFC3339, end.DateTime)
	if err != nil {
		return time.Time{}, time.Time{}, false, err
	}
	return s.UTC(), e.UTC(), false, nil
}

// classify maps an HTTP outcome onto the shared failure taxonomy.
func classify(resp *resty.Response, err error) error {
	if err != nil {
		return pkgerrors.Wrap(model.ErrNetwork, err.Error())
	}
	switch {
	case resp.StatusCode() < 300:
		return nil
	case resp.StatusCode() == http.StatusUnauthorized:
		return model.ErrAuthExpired
	case resp.StatusCode() == http.StatusForbidden:
		// Google signals both revoked consent and rate limiting with
		// 403, and rate-limit responses often omit Retry-After.
		if retryAfter := parseRetryAfter(resp); retryAfter > 0 {
			return &model.ThrottledError{RetryAfter: retryAfter}
		}
		switch errorReason(resp) {
		case "rateLimitExceeded", "userRateLimitExceeded":
			return &model.ThrottledError{}
		}
		return model.ErrAuthExpired
	case resp.StatusCode() == http.StatusTooManyRequests:
		return &model.ThrottledError{RetryAfter: parseRetryAfter(resp)}
	case resp.StatusCode() == http.StatusNotFound:
		return model.ErrNotFound
	default:
		return pkgerrors.Wrapf(model.ErrNetwork, "provider status %d", resp.StatusCode())
	}
}

// errorReason pulls the first reason code out of a Google error body.
func errorReason(resp *resty.Response) string {
	var body struct {
		Error struct {
			Errors []struct {
				Reason string `json:"reason"`
			} `json:"errors"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil || len(body.Error.Errors) == 0 {
		return ""
	}
	return body.Error.Errors[0].Reason
}

func parseRetryAfter(resp *resty.Response) time.Duration {
	v := resp.Header().Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
