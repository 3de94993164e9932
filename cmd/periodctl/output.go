package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"
)

func writeResult(out io.Writer, format string, result any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case "yaml":
		enc := yaml.NewEncoder(out)
		defer enc.Close()
		return enc.Encode(result)
	case "table", "":
		return writeTable(out, result)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func writeTable(out io.Writer, result any) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	switch r := result.(type) {
	case ValidateResult:
		fmt.Fprintf(w, "#\tDAYS\tZONE\tBEGIN\tEND\n")
		for i, p := range r.Periods {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", i, formatDays(p.Days), p.ZoneID, formatSeconds(*p.BeginHour), formatSeconds(*p.EndHour))
		}
	case CheckResult:
		fmt.Fprintf(w, "AT\t%s\n", r.At.Format(time.RFC3339Nano))
		fmt.Fprintf(w, "RESULT\t%s\n\n", describeEligibility(r.Eligible))
		if len(r.Periods) > 0 {
			fmt.Fprintf(w, "#\tINCLUDED\tPERIOD\n")
		}
		for _, p := range r.Periods {
			fmt.Fprintf(w, "%d\t%t\t%s\n", p.Index, p.Included, p.Period)
		}
	case NextResult:
		fmt.Fprintf(w, "FROM\t%s\n", r.From.Format(time.RFC3339Nano))
		if r.Found {
			fmt.Fprintf(w, "NEXT\t%s\n", r.Next.Format(time.RFC3339Nano))
		} else {
			fmt.Fprintf(w, "NEXT\tnone in range\n")
		}
	default:
		return fmt.Errorf("no table layout for %T", result)
	}

	return w.Flush()
}

func formatDays(days []int) string {
	if len(days) == 0 {
		return "every day"
	}
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, ",")
}

// formatSeconds renders seconds since midnight as hh:mm:ss.
func formatSeconds(s int) string {
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, s%3600/60, s%60)
}
