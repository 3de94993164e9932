package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ilindan-dev/windowed-notifier/internal/domain/model"
	"gopkg.in/yaml.v3"
)

type globalOptions struct {
	file   string
	output string
}

// periodsFile accepts either a bare list of periods or an object with a "periods" key.
type periodsFile struct {
	Periods []model.PeriodConfig `yaml:"periods"`
}

// loadPeriods reads and validates the periods in opts.file.
func loadPeriods(opts *globalOptions, stdin io.Reader) ([]model.PeriodConfig, []model.Period, error) {
	if opts.file == "" {
		return nil, nil, fmt.Errorf("a periods file is required (-f)")
	}

	var (
		data []byte
		err  error
	)
	if opts.file == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(opts.file)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read periods: %w", err)
	}

	cfgs, err := decodePeriods(data)
	if err != nil {
		return nil, nil, err
	}
	periods, err := model.NewPeriods(cfgs)
	if err != nil {
		return cfgs, nil, err
	}
	return cfgs, periods, nil
}

func decodePeriods(data []byte) ([]model.PeriodConfig, error) {
	var list []model.PeriodConfig
	if err := yaml.Unmarshal(data, &list); err == nil {
		return list, nil
	}

	var wrapped periodsFile
	if err := yaml.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to parse periods: %w", err)
	}
	return wrapped.Periods, nil
}

// parseInstant parses an RFC 3339 timestamp; empty means now.
func parseInstant(raw string, now time.Time) (time.Time, error) {
	if raw == "" {
		return now, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q, expected RFC 3339: %w", raw, err)
	}
	return t, nil
}
