// Package gcal checks slot availability against a Google Calendar free/busy
// query. Busy intervals are fetched per day and cached in memory and, when
// configured, in Redis.
package gcal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"yoyaku/internal/metrics"
)

// Interval is a half-open busy period.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (i Interval) overlaps(start, end time.Time) bool {
	return i.Start.Before(end) && start.Before(i.End)
}

// Fetcher returns busy intervals of a calendar within [from, to).
type Fetcher interface {
	Busy(ctx context.Context, calendarID string, from, to time.Time) ([]Interval, error)
}

// API queries the Calendar v3 freeBusy endpoint.
type API struct {
	svc *calendar.Service
}

// NewAPI authenticates with a service account key file.
func NewAPI(ctx context.Context, credentialsFile string) (*API, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, calendar.CalendarReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	return NewAPIWithOptions(ctx, option.WithCredentials(creds))
}

// NewAPIWithOptions builds the client from explicit client options.
func NewAPIWithOptions(ctx context.Context, opts ...option.ClientOption) (*API, error) {
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return &API{svc: svc}, nil
}

func (a *API) Busy(ctx context.Context, calendarID string, from, to time.Time) ([]Interval, error) {
	resp, err := a.svc.Freebusy.Query(&calendar.FreeBusyRequest{
		TimeMin: from.Format(time.RFC3339),
		TimeMax: to.Format(time.RFC3339),
		Items:   []*calendar.FreeBusyRequestItem{{Id: calendarID}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("freebusy query: %w", err)
	}

	cal, ok := resp.Calendars[calendarID]
	if !ok {
		return nil, fmt.Errorf("freebusy: calendar %s missing from response", calendarID)
	}
	if len(cal.Errors) > 0 {
		return nil, fmt.Errorf("freebusy: calendar %s: %s", calendarID, cal.Errors[0].Reason)
	}

	out := make([]Interval, 0, len(cal.Busy))
	for _, p := range cal.Busy {
		start, err := time.Parse(time.RFC3339, p.Start)
		if err != nil {
			return nil, fmt.Errorf("freebusy: parse start %q: %w", p.Start, err)
		}
		end, err := time.Parse(time.RFC3339, p.End)
		if err != nil {
			return nil, fmt.Errorf("freebusy: parse end %q: %w", p.End, err)
		}
		out = append(out, Interval{Start: start, End: end})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

type cachedDay struct {
	busy    []Interval
	expires time.Time
}

// Checker implements availability.Checker against one calendar.
type Checker struct {
	fetcher    Fetcher
	calendarID string
	loc        *time.Location
	ttl        time.Duration
	redis      *redis.Client
	logger     *zerolog.Logger
	now        func() time.Time

	mu   sync.Mutex
	days map[string]cachedDay
}

func NewChecker(fetcher Fetcher, calendarID string, loc *time.Location, ttl time.Duration, logger *zerolog.Logger) *Checker {
	if loc == nil {
		loc = time.Local
	}
	return &Checker{
		fetcher:    fetcher,
		calendarID: calendarID,
		loc:        loc,
		ttl:        ttl,
		logger:     logger,
		now:        time.Now,
		days:       make(map[string]cachedDay),
	}
}

// UseRedisCache configures optional Redis caching of per-day busy intervals.
func (c *Checker) UseRedisCache(client *redis.Client) {
	c.redis = client
}

// IsBookable reports whether [start, start+length) is free of busy intervals.
func (c *Checker) IsBookable(ctx context.Context, start time.Time, length time.Duration) (bool, error) {
	end := start.Add(length)
	busy, err := c.busyOn(ctx, start.In(c.loc))
	if err != nil {
		return false, err
	}
	for _, b := range busy {
		if b.overlaps(start, end) {
			return false, nil
		}
	}
	return true, nil
}

func (c *Checker) cacheKey(date string) string {
	return fmt.Sprintf("yoyaku:freebusy:%s:%s", c.calendarID, date)
}

func (c *Checker) busyOn(ctx context.Context, t time.Time) ([]Interval, error) {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.loc)
	date := day.Format("2006-01-02")
	now := c.now()

	c.mu.Lock()
	if cd, ok := c.days[date]; ok && now.Before(cd.expires) {
		c.mu.Unlock()
		return cd.busy, nil
	}
	c.mu.Unlock()

	var busy []Interval
	if c.readCache(ctx, c.cacheKey(date), &busy) {
		metrics.IncCalendarLookup("cache")
	} else {
		var err error
		busy, err = c.fetcher.Busy(ctx, c.calendarID, day, day.AddDate(0, 0, 1))
		if err != nil {
			metrics.IncCalendarLookup("error")
			return nil, err
		}
		metrics.IncCalendarLookup("api")
		c.logger.Debug().Str("calendar", c.calendarID).Str("date", date).Int("busy", len(busy)).Msg("Fetched free/busy")
		c.writeCache(ctx, c.cacheKey(date), busy)
	}

	c.mu.Lock()
	c.days[date] = cachedDay{busy: busy, expires: now.Add(c.ttl)}
	c.mu.Unlock()
	return busy, nil
}

func (c *Checker) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.ttl <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

func (c *Checker) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.ttl <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Failed to cache free/busy")
	}
}
