package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const officeHours = `
- days: [1, 2, 3, 4, 5]
  zoneId: UTC
  beginHour: 32400
  endHour: 61200
`

func writePeriods(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "periods.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCmd(t *testing.T) {
	cmd := newRootCmd()
	assert.Equal(t, "periodctl", cmd.Use)

	names := make([]string, 0)
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"validate", "check", "next"}, names)
	require.NotNil(t, cmd.PersistentFlags().Lookup("filename"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("output"))
}

func TestValidate_Table(t *testing.T) {
	out, err := run(t, "", "validate", "-f", writePeriods(t, officeHours))
	require.NoError(t, err)
	assert.Contains(t, out, "1,2,3,4,5")
	assert.Contains(t, out, "09:00:00")
	assert.Contains(t, out, "17:00:00")
}

func TestValidate_DefaultsFromJSONStdin(t *testing.T) {
	out, err := run(t, `{"periods":[{"zoneId":"Asia/Tokyo"}]}`, "validate", "-f", "-", "-o", "json")
	require.NoError(t, err)

	var result ValidateResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Len(t, result.Periods, 1)
	assert.Equal(t, "Asia/Tokyo", result.Periods[0].ZoneID)
	assert.Equal(t, 0, *result.Periods[0].BeginHour)
	assert.Equal(t, 86399, *result.Periods[0].EndHour)
}

func TestValidate_Rejects(t *testing.T) {
	_, err := run(t, "", "validate", "-f", writePeriods(t, "- days: [8]\n"))
	assert.ErrorContains(t, err, "period 0")

	_, err = run(t, "", "validate")
	assert.ErrorContains(t, err, "-f")

	_, err = run(t, "", "validate", "-f", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestCheck(t *testing.T) {
	path := writePeriods(t, officeHours)

	out, err := run(t, "", "check", "-f", path, "--at", "2024-03-04T12:00:00Z", "-o", "json")
	require.NoError(t, err)
	var result CheckResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.True(t, result.Eligible)
	require.Len(t, result.Periods, 1)
	assert.True(t, result.Periods[0].Included)

	out, err = run(t, "", "check", "-f", path, "--at", "2024-03-09T12:00:00Z")
	require.NoError(t, err)
	assert.Contains(t, out, "not eligible")

	_, err = run(t, "", "check", "-f", path, "--at", "tomorrow")
	assert.ErrorContains(t, err, "RFC 3339")
}

func TestCheck_DefaultsToNow(t *testing.T) {
	saved := now
	now = func() time.Time { return time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC) }
	defer func() { now = saved }()

	out, err := run(t, "", "check", "-f", writePeriods(t, officeHours), "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "eligible: true")
}

func TestNext(t *testing.T) {
	path := writePeriods(t, officeHours)

	// Saturday noon: the next window opens Monday 09:00.
	out, err := run(t, "", "next", "-f", path, "--from", "2024-03-09T12:00:00Z", "-o", "json")
	require.NoError(t, err)
	var result NextResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.True(t, result.Found)
	assert.Equal(t, time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC), result.Next.UTC())

	out, err = run(t, "", "next", "-f", path, "--from", "2024-03-09T12:00:00Z", "--within", "1h")
	require.NoError(t, err)
	assert.Contains(t, out, "none in range")

	_, err = run(t, "", "next", "-f", path, "--step", "0s")
	assert.Error(t, err)
}

func TestWriteResult_UnknownFormat(t *testing.T) {
	assert.Error(t, writeResult(&bytes.Buffer{}, "xml", CheckResult{}))
}
