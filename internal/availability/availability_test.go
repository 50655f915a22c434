package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yoyaku/internal/formconfig"
)

var tokyo = time.FixedZone("JST", 9*60*60)

func settings(t *testing.T, doc string) formconfig.CalendarSettings {
	t.Helper()
	in, err := formconfig.Parse([]byte(doc))
	require.NoError(t, err)
	return formconfig.Normalize(in).CalendarSettings
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    Clock
		wantErr bool
	}{
		{in: "09:00", want: Clock{9, 0}},
		{in: "9:30", want: Clock{9, 30}},
		{in: "24:00", want: Clock{24, 0}},
		{in: "23:59", want: Clock{23, 59}},
		{in: "24:30", wantErr: true},
		{in: "10:60", wantErr: true},
		{in: "10", wantErr: true},
		{in: "10:0", wantErr: true},
		{in: "aa:bb", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOfferedCalendarWindow(t *testing.T) {
	s := settings(t, `{"calendar_settings": {
		"advance_booking_days": 7,
		"business_hours": {"sunday": {"closed": true}, "monday": {"open": "10:00", "close": "19:00"}}
	}}`)
	// Wednesday 2025-01-08 09:00.
	now := time.Date(2025, 1, 8, 9, 0, 0, 0, tokyo)
	w := Window{Settings: s, Now: now}

	at := func(day int) time.Time { return time.Date(2025, 1, day, 0, 0, 0, 0, tokyo) }

	t.Run("horizon is inclusive by day", func(t *testing.T) {
		assert.True(t, w.Offered(at(15), Clock{18, 30}))
		assert.False(t, w.Offered(at(16), Clock{10, 0}))
	})

	t.Run("nothing beyond horizon or on sunday", func(t *testing.T) {
		for day := 8; day <= 40; day++ {
			d := at(day)
			for _, c := range w.Rows() {
				if day > 15 || d.Weekday() == time.Sunday {
					assert.False(t, w.Offered(d, c), "%s %s", d.Format(DateLayout), c)
				}
			}
		}
	})

	t.Run("close is exclusive", func(t *testing.T) {
		assert.True(t, w.Offered(at(13), Clock{10, 0}))
		assert.True(t, w.Offered(at(13), Clock{18, 59}))
		assert.False(t, w.Offered(at(13), Clock{19, 0}))
		assert.False(t, w.Offered(at(13), Clock{9, 30}))
	})

	t.Run("past slots are not offered", func(t *testing.T) {
		late := Window{Settings: s, Now: time.Date(2025, 1, 8, 14, 0, 0, 0, tokyo)}
		assert.False(t, late.Offered(at(8), Clock{13, 30}))
		assert.False(t, late.Offered(at(8), Clock{14, 0}))
		assert.True(t, late.Offered(at(8), Clock{14, 30}))
		assert.False(t, late.Offered(at(1), Clock{15, 0}))
	})
}

func TestOfferedClosedDatesAndMalformedHours(t *testing.T) {
	s := settings(t, `{"calendar_settings": {
		"closed_dates": ["2025-01-10"],
		"business_hours": {"thursday": {"open": "ten", "close": "19:00"}}
	}}`)
	w := Window{Settings: s, Now: time.Date(2025, 1, 8, 9, 0, 0, 0, tokyo)}

	assert.False(t, w.Offered(time.Date(2025, 1, 10, 0, 0, 0, 0, tokyo), Clock{12, 0}))
	assert.False(t, w.Offered(time.Date(2025, 1, 9, 0, 0, 0, 0, tokyo), Clock{12, 0}))
	assert.True(t, w.Offered(time.Date(2025, 1, 11, 0, 0, 0, 0, tokyo), Clock{12, 0}))
}

func TestRows(t *testing.T) {
	s := settings(t, `{"calendar_settings": {"slot_interval": 60, "business_hours": {
		"sunday": {"closed": true, "open": "06:00", "close": "23:00"},
		"monday": {"open": "09:00", "close": "12:00"},
		"tuesday": {"open": "10:00", "close": "20:00"}
	}}}`)
	rows := Window{Settings: s}.Rows()
	require.NotEmpty(t, rows)
	assert.Equal(t, Clock{9, 0}, rows[0])
	assert.Equal(t, Clock{19, 0}, rows[len(rows)-1])
	assert.Len(t, rows, 11)
}

func TestWeekGrid(t *testing.T) {
	s := settings(t, `{"calendar_settings": {"advance_booking_days": 3, "business_hours": {"sunday": {"closed": true}}}}`)
	now := time.Date(2025, 1, 8, 9, 0, 0, 0, tokyo)
	w := Window{Settings: s, Now: now}

	busy := NewBusySet([]string{"2025-01-09 10:00"})
	calls := 0
	checker := CheckerFunc(func(ctx context.Context, start time.Time, length time.Duration) (bool, error) {
		calls++
		assert.Equal(t, 30*time.Minute, length)
		return busy.IsBookable(ctx, start, length)
	})

	grid, err := w.WeekGrid(context.Background(), now, checker)
	require.NoError(t, err)
	require.Len(t, grid.Days, 7)
	assert.Equal(t, "2025-01-08", grid.Days[0])
	assert.Equal(t, "2025-01-14", grid.Days[6])
	require.Equal(t, "10:00", grid.Times[0])

	cell := grid.Cells[0][1]
	assert.Equal(t, "2025-01-09", cell.Date)
	assert.True(t, cell.Offered)
	assert.False(t, cell.Available)

	assert.True(t, grid.Cells[0][0].Available)
	// Sunday 2025-01-12 and days past the horizon never reach the checker.
	assert.False(t, grid.Cells[0][4].Offered)
	assert.False(t, grid.Cells[0][5].Offered)

	offered := 0
	for _, row := range grid.Cells {
		for _, c := range row {
			if c.Offered {
				offered++
			}
		}
	}
	assert.Equal(t, offered, calls)
}

func TestWeekGridCheckerError(t *testing.T) {
	w := Window{Settings: settings(t, `{}`), Now: time.Date(2025, 1, 8, 9, 0, 0, 0, tokyo)}
	boom := errors.New("calendar down")
	_, err := w.WeekGrid(context.Background(), w.Now, CheckerFunc(func(context.Context, time.Time, time.Duration) (bool, error) {
		return false, boom
	}))
	assert.ErrorIs(t, err, boom)
}

func TestBusySlots(t *testing.T) {
	s := settings(t, `{"calendar_settings": {"advance_booking_days": 1}}`)
	w := Window{Settings: s, Now: time.Date(2025, 1, 8, 18, 0, 0, 0, tokyo)}

	got, err := BusySlots(context.Background(), w, NewBusySet([]string{
		"2025-01-09 12:00", "2025-01-08 18:30", "2025-01-08 17:00", "2025-01-20 12:00",
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-01-08 18:30", "2025-01-09 12:00"}, got)

	none, err := BusySlots(context.Background(), w, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestTimeOptions(t *testing.T) {
	s := formconfig.MultipleDatesSettings{TimeInterval: 30, StartTime: "09:00", EndTime: "10:00"}
	assert.Equal(t, []string{"09:00", "09:30"}, TimeOptions(s))

	s.TimeInterval = 15
	assert.Equal(t, []string{"09:00", "09:15", "09:30", "09:45"}, TimeOptions(s))

	s.EndTime = "9時"
	assert.Empty(t, TimeOptions(s))

	s.EndTime = "08:00"
	assert.Empty(t, TimeOptions(s))
}

func TestDateOptions(t *testing.T) {
	// Friday.
	today := time.Date(2025, 1, 10, 15, 4, 0, 0, tokyo)
	s := formconfig.MultipleDatesSettings{DateRangeDays: 14, ExcludeWeekdays: []int{0}}

	got := DateOptions(today, s)
	assert.Len(t, got, 12)
	assert.Equal(t, DateOption{Value: "2025-01-10", Label: "1月10日(金)"}, got[0])
	for _, d := range got {
		parsed, err := time.Parse(DateLayout, d.Value)
		require.NoError(t, err)
		assert.NotEqual(t, time.Sunday, parsed.Weekday())
	}
	assert.Equal(t, "2025-01-23", got[len(got)-1].Value)

	s.DateRangeDays = 0
	assert.Empty(t, DateOptions(today, s))
}
