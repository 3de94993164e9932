package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultZoneID resolves to the zone of the host running the evaluation.
const DefaultZoneID = "Local"

// maxOffsetSeconds bounds fixed offsets to ±18:00.
const maxOffsetSeconds = 18 * 3600

// offsetPrefixes are the zone prefixes that may carry a fixed offset, e.g. "UTC+02:00".
// "UTC" must be checked before "UT".
var offsetPrefixes = []string{"UTC", "GMT", "UT"}

// LoadZone resolves a zone id to a location. Accepted forms are IANA names
// ("Europe/Paris"), "UTC", "Z", "Local", bare offsets ("+02:00", "-0530", "+3")
// and prefixed offsets ("UTC+02:00", "GMT-3").
func LoadZone(id string) (*time.Location, error) {
	switch id {
	case "", DefaultZoneID:
		return time.Local, nil
	case "Z":
		return time.UTC, nil
	}

	if id[0] == '+' || id[0] == '-' {
		offset, err := parseOffset(id)
		if err != nil {
			return nil, err
		}
		return time.FixedZone(id, offset), nil
	}

	for _, prefix := range offsetPrefixes {
		rest, ok := strings.CutPrefix(id, prefix)
		if !ok || rest == "" || (rest[0] != '+' && rest[0] != '-') {
			continue
		}
		offset, err := parseOffset(rest)
		if err != nil {
			return nil, err
		}
		return time.FixedZone(id, offset), nil
	}

	loc, err := time.LoadLocation(id)
	if err != nil {
		return nil, fmt.Errorf("unknown zone id %q: %w", id, err)
	}
	return loc, nil
}

// parseOffset parses a signed offset in one of the forms
// ±h, ±hh, ±hhmm, ±hh:mm, ±hhmmss, ±hh:mm:ss and returns it in seconds.
func parseOffset(s string) (int, error) {
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid zone offset %q", s)
	}
	sign := 1
	if s[0] == '-' {
		sign = -1
	}
	body := s[1:]

	var parts []string
	switch {
	case len(body) <= 2:
		parts = []string{body}
	case len(body) == 4:
		parts = []string{body[:2], body[2:]}
	case len(body) == 5 && body[2] == ':':
		parts = []string{body[:2], body[3:]}
	case len(body) == 6:
		parts = []string{body[:2], body[2:4], body[4:]}
	case len(body) == 8 && body[2] == ':' && body[5] == ':':
		parts = []string{body[:2], body[3:5], body[6:]}
	default:
		return 0, fmt.Errorf("invalid zone offset %q", s)
	}

	var fields [3]int
	for i, part := range parts {
		for _, r := range part {
			if r < '0' || r > '9' {
				return 0, fmt.Errorf("invalid zone offset %q", s)
			}
		}
		v, err := strconv.Atoi(part)
		if err != nil {
			return 0, fmt.Errorf("invalid zone offset %q: %w", s, err)
		}
		fields[i] = v
	}

	hours, minutes, seconds := fields[0], fields[1], fields[2]
	if minutes > 59 || seconds > 59 {
		return 0, fmt.Errorf("invalid zone offset %q", s)
	}
	total := hours*3600 + minutes*60 + seconds
	if total > maxOffsetSeconds {
		return 0, fmt.Errorf("zone offset %q out of range ±18:00", s)
	}
	return sign * total, nil
}
