package gcal

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

var tokyo = time.FixedZone("JST", 9*3600)

type fakeFetcher struct {
	busy  []Interval
	err   error
	calls int
}

func (f *fakeFetcher) Busy(_ context.Context, _ string, from, to time.Time) ([]Interval, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []Interval
	for _, b := range f.busy {
		if b.overlaps(from, to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func at(day, hour, minute int) time.Time {
	return time.Date(2025, 1, day, hour, minute, 0, 0, tokyo)
}

func newChecker(f Fetcher, ttl time.Duration) *Checker {
	logger := zerolog.New(io.Discard)
	return NewChecker(f, "salon@example.com", tokyo, ttl, &logger)
}

func TestCheckerOverlap(t *testing.T) {
	f := &fakeFetcher{busy: []Interval{{Start: at(10, 14, 0), End: at(10, 15, 0)}}}
	c := newChecker(f, time.Minute)
	ctx := context.Background()

	tests := []struct {
		start  time.Time
		length time.Duration
		want   bool
	}{
		{at(10, 13, 0), time.Hour, true},
		{at(10, 13, 30), time.Hour, false},
		{at(10, 14, 0), 30 * time.Minute, false},
		{at(10, 14, 30), 30 * time.Minute, false},
		{at(10, 15, 0), 30 * time.Minute, true},
		{at(11, 14, 0), time.Hour, true},
	}
	for _, tt := range tests {
		got, err := c.IsBookable(ctx, tt.start, tt.length)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.start.Format(time.RFC3339))
	}
	assert.Equal(t, 2, f.calls, "one fetch per day")
}

func TestCheckerMemoryCacheExpires(t *testing.T) {
	f := &fakeFetcher{}
	c := newChecker(f, time.Minute)
	now := at(9, 9, 0)
	c.now = func() time.Time { return now }

	_, err := c.IsBookable(context.Background(), at(10, 10, 0), time.Hour)
	require.NoError(t, err)
	_, err = c.IsBookable(context.Background(), at(10, 11, 0), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, f.calls)

	now = now.Add(2 * time.Minute)
	_, err = c.IsBookable(context.Background(), at(10, 11, 0), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, f.calls)
}

func TestCheckerRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	f := &fakeFetcher{busy: []Interval{{Start: at(10, 14, 0), End: at(10, 15, 0)}}}
	first := newChecker(f, time.Minute)
	first.UseRedisCache(rdb)

	ok, err := first.IsBookable(context.Background(), at(10, 14, 0), time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, mr.Exists("yoyaku:freebusy:salon@example.com:2025-01-10"))

	// A second checker with a cold memory cache reads Redis instead of the API.
	second := newChecker(f, time.Minute)
	second.UseRedisCache(rdb)
	ok, err = second.IsBookable(context.Background(), at(10, 14, 0), time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, f.calls)
}

func TestCheckerFetchError(t *testing.T) {
	c := newChecker(&fakeFetcher{err: errors.New("quota exceeded")}, time.Minute)
	_, err := c.IsBookable(context.Background(), at(10, 10, 0), time.Hour)
	assert.ErrorContains(t, err, "quota exceeded")
}

func TestAPIBusy(t *testing.T) {
	var req struct {
		TimeMin string `json:"timeMin"`
		TimeMax string `json:"timeMax"`
		Items   []struct {
			ID string `json:"id"`
		} `json:"items"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"kind":"calendar#freeBusy","calendars":{"salon@example.com":{"busy":[
			{"start":"2025-01-10T16:00:00+09:00","end":"2025-01-10T17:00:00+09:00"},
			{"start":"2025-01-10T14:00:00+09:00","end":"2025-01-10T15:00:00+09:00"}]}}}`)
	}))
	defer srv.Close()

	api, err := NewAPIWithOptions(context.Background(), option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	busy, err := api.Busy(context.Background(), "salon@example.com", at(10, 0, 0), at(11, 0, 0))
	require.NoError(t, err)
	require.Len(t, busy, 2)
	assert.True(t, busy[0].Start.Equal(at(10, 14, 0)))
	assert.True(t, busy[1].End.Equal(at(10, 17, 0)))

	assert.Equal(t, "2025-01-10T00:00:00+09:00", req.TimeMin)
	require.Len(t, req.Items, 1)
	assert.Equal(t, "salon@example.com", req.Items[0].ID)

	_, err = api.Busy(context.Background(), "other@example.com", at(10, 0, 0), at(11, 0, 0))
	assert.ErrorContains(t, err, "missing from response")
}
