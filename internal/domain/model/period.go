package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"
)

const (
	// DefaultBeginHour is midnight, in seconds since the start of the day.
	DefaultBeginHour = 0
	// DefaultEndHour is 23:59:59, in seconds since the start of the day.
	DefaultEndHour = 86399
)

// clock returns the instant used to pick the zone offset of a period's boundaries.
var clock = time.Now

// PeriodConfig is the raw, unvalidated form of a Period as stored or received over the wire.
// Nil or empty fields take their defaults.
type PeriodConfig struct {
	Days      []int  `json:"days,omitempty" yaml:"days,omitempty"`
	ZoneID    string `json:"zoneId,omitempty" yaml:"zoneId,omitempty"`
	BeginHour *int   `json:"beginHour,omitempty" yaml:"beginHour,omitempty"`
	EndHour   *int   `json:"endHour,omitempty" yaml:"endHour,omitempty"`
}

// Period is a recurring activation window: a set of ISO weekdays (Monday=1..Sunday=7)
// and an inclusive time-of-day range expressed in a time zone.
// A Period is immutable once built and safe for concurrent use.
type Period struct {
	days      []int
	zoneID    string
	location  *time.Location
	beginHour int
	endHour   int
}

// NewPeriod validates cfg and builds a Period from it.
// A begin hour after the end hour is accepted and does not wrap past midnight;
// such a period matches only the exact begin instant.
func NewPeriod(cfg PeriodConfig) (Period, error) {
	p := Period{
		zoneID:    cfg.ZoneID,
		beginHour: DefaultBeginHour,
		endHour:   DefaultEndHour,
	}
	if p.zoneID == "" {
		p.zoneID = DefaultZoneID
	}

	loc, err := LoadZone(p.zoneID)
	if err != nil {
		return Period{}, &ConfigurationError{Field: "zoneId", Value: cfg.ZoneID, Err: err}
	}
	p.location = loc

	for _, d := range cfg.Days {
		if d < int(isoMonday) || d > int(isoSunday) {
			return Period{}, &ConfigurationError{Field: "days", Value: d, Err: errors.New("weekday must be within 1..7")}
		}
	}
	if len(cfg.Days) > 0 {
		p.days = slices.Clone(cfg.Days)
	}

	if cfg.BeginHour != nil {
		if err := validateSecondOfDay(*cfg.BeginHour); err != nil {
			return Period{}, &ConfigurationError{Field: "beginHour", Value: *cfg.BeginHour, Err: err}
		}
		p.beginHour = *cfg.BeginHour
	}
	if cfg.EndHour != nil {
		if err := validateSecondOfDay(*cfg.EndHour); err != nil {
			return Period{}, &ConfigurationError{Field: "endHour", Value: *cfg.EndHour, Err: err}
		}
		p.endHour = *cfg.EndHour
	}

	return p, nil
}

// MustPeriod is like NewPeriod but panics on invalid input. Intended for tests and static tables.
func MustPeriod(cfg PeriodConfig) Period {
	p, err := NewPeriod(cfg)
	if err != nil {
		panic(err)
	}
	return p
}

// NewPeriods builds every period in cfgs, failing on the first invalid one.
func NewPeriods(cfgs []PeriodConfig) ([]Period, error) {
	if len(cfgs) == 0 {
		return nil, nil
	}
	periods := make([]Period, 0, len(cfgs))
	for i, cfg := range cfgs {
		p, err := NewPeriod(cfg)
		if err != nil {
			return nil, fmt.Errorf("period %d: %w", i, err)
		}
		periods = append(periods, p)
	}
	return periods, nil
}

func validateSecondOfDay(v int) error {
	if v < 0 || v > DefaultEndHour {
		return fmt.Errorf("must be within 0..%d seconds", DefaultEndHour)
	}
	return nil
}

// Days returns a copy of the weekdays the period covers. Empty means every day.
func (p Period) Days() []int { return slices.Clone(p.days) }

// ZoneID returns the zone identifier the period is expressed in.
func (p Period) ZoneID() string {
	if p.zoneID == "" {
		return DefaultZoneID
	}
	return p.zoneID
}

// Location returns the resolved time zone of the period.
func (p Period) Location() *time.Location {
	if p.location == nil {
		return time.Local
	}
	return p.location
}

// BeginHour returns the start of the window in seconds since midnight.
func (p Period) BeginHour() int { return p.beginHour }

// EndHour returns the end of the window in seconds since midnight.
func (p Period) EndHour() int { return p.endHour }

// Config returns the period in its serializable form.
func (p Period) Config() PeriodConfig {
	begin, end := p.beginHour, p.endHour
	return PeriodConfig{
		Days:      p.Days(),
		ZoneID:    p.ZoneID(),
		BeginHour: &begin,
		EndHour:   &end,
	}
}

// IsIncluded reports whether the instant at falls inside the period.
func (p Period) IsIncluded(at time.Time) bool {
	return p.includes(at, clock())
}

// includes evaluates at against the period. The boundaries carry the zone
// offset in effect at now, not at at, so around a DST change an instant far
// from now may be judged against boundaries shifted by the DST delta.
func (p Period) includes(at, now time.Time) bool {
	loc := p.Location()
	zoned := at.In(loc)

	if len(p.days) > 0 && !slices.Contains(p.days, int(isoWeekday(zoned.Weekday()))) {
		return false
	}

	_, atOffset := zoned.Zone()
	_, nowOffset := now.In(loc).Zone()

	t := timeOfDay(zoned) - seconds(atOffset)
	begin := seconds(p.beginHour) - seconds(nowOffset)
	end := seconds(p.endHour) - seconds(nowOffset)

	return t == begin || (t > begin && t <= end)
}

func (p Period) String() string {
	return fmt.Sprintf("Period{days=%v, zoneId=%s, beginHour=%d, endHour=%d}", p.days, p.ZoneID(), p.beginHour, p.endHour)
}

// MarshalJSON encodes the period in its PeriodConfig shape.
func (p Period) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Config())
}

// UnmarshalJSON decodes and validates a period. Invalid input yields a *ConfigurationError.
func (p *Period) UnmarshalJSON(data []byte) error {
	var cfg PeriodConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return &ConfigurationError{Field: "period", Value: string(data), Err: err}
	}
	built, err := NewPeriod(cfg)
	if err != nil {
		return err
	}
	*p = built
	return nil
}

// isoDay numbers weekdays the ISO way, Monday=1 through Sunday=7.
type isoDay int

const (
	isoMonday isoDay = 1
	isoSunday isoDay = 7
)

func isoWeekday(d time.Weekday) isoDay {
	if d == time.Sunday {
		return isoSunday
	}
	return isoDay(d)
}

// timeOfDay returns the wall-clock time elapsed since local midnight, nanosecond precision.
func timeOfDay(t time.Time) time.Duration {
	h, m, s := t.Clock()
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second + time.Duration(t.Nanosecond())
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
