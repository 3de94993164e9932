package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func secondOfDay(h, m, s int) int { return h*3600 + m*60 + s }

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func TestNewPeriod_Defaults(t *testing.T) {
	p, err := NewPeriod(PeriodConfig{})
	require.NoError(t, err)

	assert.Equal(t, DefaultZoneID, p.ZoneID())
	assert.Equal(t, time.Local, p.Location())
	assert.Equal(t, DefaultBeginHour, p.BeginHour())
	assert.Equal(t, DefaultEndHour, p.EndHour())
	assert.Empty(t, p.Days())

	at := time.Date(2024, 3, 5, 12, 0, 0, 0, time.Local)
	assert.True(t, p.includes(at, at))
}

func TestNewPeriod_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		cfg   PeriodConfig
		field string
	}{
		{name: "unknown zone", cfg: PeriodConfig{ZoneID: "Mars/Olympus_Mons"}, field: "zoneId"},
		{name: "offset out of range", cfg: PeriodConfig{ZoneID: "+19:00"}, field: "zoneId"},
		{name: "day zero", cfg: PeriodConfig{Days: []int{0}}, field: "days"},
		{name: "day eight", cfg: PeriodConfig{Days: []int{1, 8}}, field: "days"},
		{name: "negative begin", cfg: PeriodConfig{BeginHour: intPtr(-1)}, field: "beginHour"},
		{name: "end past last second", cfg: PeriodConfig{EndHour: intPtr(86400)}, field: "endHour"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPeriod(tt.cfg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfiguration))

			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestNewPeriods_ReportsIndex(t *testing.T) {
	_, err := NewPeriods([]PeriodConfig{{}, {ZoneID: "Nowhere/Land"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "period 1")
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	periods, err := NewPeriods(nil)
	require.NoError(t, err)
	assert.Nil(t, periods)
}

func TestPeriod_DaysAreCopied(t *testing.T) {
	days := []int{1, 2}
	p := MustPeriod(PeriodConfig{Days: days})
	days[0] = 7

	assert.Equal(t, []int{1, 2}, p.Days())

	got := p.Days()
	got[1] = 5
	assert.Equal(t, []int{1, 2}, p.Days())
}

func TestPeriod_Weekdays(t *testing.T) {
	p := MustPeriod(PeriodConfig{
		Days:      []int{1, 2, 3, 4, 5},
		ZoneID:    "UTC",
		BeginHour: intPtr(0),
		EndHour:   intPtr(86399),
	})

	// 2024-01-01 is a Monday.
	for day := 1; day <= 7; day++ {
		at := time.Date(2024, 1, day, 13, 45, 0, 0, time.UTC)
		want := at.Weekday() != time.Saturday && at.Weekday() != time.Sunday
		assert.Equal(t, want, p.IsIncluded(at), "weekday %s", at.Weekday())
	}
}

func TestPeriod_EmptyDaysNeverReject(t *testing.T) {
	p := MustPeriod(PeriodConfig{ZoneID: "UTC", BeginHour: intPtr(secondOfDay(8, 0, 0)), EndHour: intPtr(secondOfDay(9, 0, 0))})

	for day := 1; day <= 7; day++ {
		assert.True(t, p.IsIncluded(time.Date(2024, 1, day, 8, 30, 0, 0, time.UTC)))
		assert.False(t, p.IsIncluded(time.Date(2024, 1, day, 10, 0, 0, 0, time.UTC)))
	}
}

func TestPeriod_Boundaries(t *testing.T) {
	p := MustPeriod(PeriodConfig{
		ZoneID:    "UTC",
		BeginHour: intPtr(secondOfDay(1, 0, 0)),
		EndHour:   intPtr(secondOfDay(2, 0, 0)),
	})

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{name: "exactly begin", at: time.Date(2024, 5, 6, 1, 0, 0, 0, time.UTC), want: true},
		{name: "exactly end", at: time.Date(2024, 5, 6, 2, 0, 0, 0, time.UTC), want: true},
		{name: "inside", at: time.Date(2024, 5, 6, 1, 30, 0, 0, time.UTC), want: true},
		{name: "one second before begin", at: time.Date(2024, 5, 6, 0, 59, 59, 0, time.UTC), want: false},
		{name: "one second after end", at: time.Date(2024, 5, 6, 2, 0, 1, 0, time.UTC), want: false},
		{name: "fraction after end", at: time.Date(2024, 5, 6, 2, 0, 0, 500_000_000, time.UTC), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.IsIncluded(tt.at))
		})
	}
}

func TestPeriod_BeginAfterEndDoesNotWrap(t *testing.T) {
	p := MustPeriod(PeriodConfig{
		ZoneID:    "UTC",
		BeginHour: intPtr(secondOfDay(22, 0, 0)),
		EndHour:   intPtr(secondOfDay(6, 0, 0)),
	})

	assert.False(t, p.IsIncluded(time.Date(2024, 5, 6, 23, 0, 0, 0, time.UTC)))
	assert.False(t, p.IsIncluded(time.Date(2024, 5, 6, 3, 0, 0, 0, time.UTC)))
	assert.False(t, p.IsIncluded(time.Date(2024, 5, 6, 6, 0, 0, 0, time.UTC)))

	// The begin instant itself still matches.
	assert.True(t, p.IsIncluded(time.Date(2024, 5, 6, 22, 0, 0, 0, time.UTC)))
	assert.False(t, p.IsIncluded(time.Date(2024, 5, 6, 22, 0, 0, 1, time.UTC)))
}

func TestPeriod_ChicagoWindow(t *testing.T) {
	p := MustPeriod(PeriodConfig{
		ZoneID:    "America/Chicago",
		BeginHour: intPtr(0),
		EndHour:   intPtr(3599),
	})

	// 00:30 UTC is 18:30 the previous day in Chicago (CST, UTC-6).
	late := time.Date(2024, 1, 10, 0, 30, 0, 0, time.UTC)
	assert.False(t, p.includes(late, late))

	// 06:30 UTC is 00:30 in Chicago.
	early := time.Date(2024, 1, 10, 6, 30, 0, 0, time.UTC)
	assert.True(t, p.includes(early, early))
}

func TestPeriod_UsesPeriodZoneNotCaller(t *testing.T) {
	tokyo := mustLoad(t, "Asia/Tokyo")
	p := MustPeriod(PeriodConfig{
		ZoneID:    "Asia/Tokyo",
		BeginHour: intPtr(secondOfDay(9, 0, 0)),
		EndHour:   intPtr(secondOfDay(17, 0, 0)),
	})

	// 10:00 in Tokyo is 01:00 UTC; a naive 09:00-17:00 check in UTC would reject it.
	at := time.Date(2024, 2, 1, 10, 0, 0, 0, tokyo)
	assert.True(t, p.IsIncluded(at))
	assert.True(t, p.IsIncluded(at.UTC()))

	// 12:00 UTC is 21:00 in Tokyo.
	assert.False(t, p.IsIncluded(time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)))
}

func TestPeriod_OtherDayInFarZone(t *testing.T) {
	// 06:00 UTC on Wednesday is 12:00 on Tuesday at -18:00.
	at := time.Date(2024, 1, 3, 6, 0, 0, 0, time.UTC)

	wednesday := MustPeriod(PeriodConfig{ZoneID: "-18:00", Days: []int{3}})
	assert.False(t, wednesday.IsIncluded(at))

	tuesday := MustPeriod(PeriodConfig{ZoneID: "-18:00", Days: []int{2}})
	assert.True(t, tuesday.IsIncluded(at))

	// 18:00 UTC on Wednesday is 12:00 on Thursday at +18:00.
	thursday := MustPeriod(PeriodConfig{ZoneID: "UTC+18:00", Days: []int{4}})
	assert.True(t, thursday.IsIncluded(time.Date(2024, 1, 3, 18, 0, 0, 0, time.UTC)))
}

func TestPeriod_SundayIsSeven(t *testing.T) {
	p := MustPeriod(PeriodConfig{ZoneID: "UTC", Days: []int{7}})

	assert.True(t, p.IsIncluded(time.Date(2024, 1, 7, 12, 0, 0, 0, time.UTC)))
	assert.False(t, p.IsIncluded(time.Date(2024, 1, 8, 12, 0, 0, 0, time.UTC)))
}

// Boundaries take the offset in effect at "now", so a summer instant evaluated
// in winter is compared against boundaries one hour off.
func TestPeriod_BoundaryOffsetTakenAtNow(t *testing.T) {
	p := MustPeriod(PeriodConfig{
		ZoneID:    "America/New_York",
		BeginHour: intPtr(secondOfDay(9, 0, 0)),
		EndHour:   intPtr(secondOfDay(10, 0, 0)),
	})

	// 13:30 UTC in July is 09:30 EDT.
	summer := time.Date(2024, 7, 1, 13, 30, 0, 0, time.UTC)
	winter := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	assert.True(t, p.includes(summer, summer))
	assert.False(t, p.includes(summer, winter))
}

func TestPeriod_JSON(t *testing.T) {
	var p Period
	err := json.Unmarshal([]byte(`{"days":[1,2],"zoneId":"Europe/Paris","beginHour":3600}`), &p)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2}, p.Days())
	assert.Equal(t, "Europe/Paris", p.ZoneID())
	assert.Equal(t, 3600, p.BeginHour())
	assert.Equal(t, DefaultEndHour, p.EndHour())

	out, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"days":[1,2],"zoneId":"Europe/Paris","beginHour":3600,"endHour":86399}`, string(out))

	err = json.Unmarshal([]byte(`{"zoneId":"Nowhere/Land"}`), &p)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	err = json.Unmarshal([]byte(`{"days":"monday"}`), &p)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestLoadZone(t *testing.T) {
	tests := []struct {
		id         string
		wantOffset int
		wantErr    bool
	}{
		{id: "Z", wantOffset: 0},
		{id: "UTC", wantOffset: 0},
		{id: "+02:00", wantOffset: 7200},
		{id: "-0530", wantOffset: -19800},
		{id: "+3", wantOffset: 10800},
		{id: "UTC+3", wantOffset: 10800},
		{id: "GMT-05:30", wantOffset: -19800},
		{id: "UT+01", wantOffset: 3600},
		{id: "+18:00", wantOffset: 18 * 3600},
		{id: "+01:02:03", wantOffset: 3723},
		{id: "+19", wantErr: true},
		{id: "+02:60", wantErr: true},
		{id: "+1a", wantErr: true},
		{id: "+", wantErr: true},
		{id: "Nowhere/Land", wantErr: true},
	}

	ref := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			loc, err := LoadZone(tt.id)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			_, offset := ref.In(loc).Zone()
			assert.Equal(t, tt.wantOffset, offset)
		})
	}
}
