package format

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		name  string
		input string
		found bool
	}{
		{"payload metric", "formatMetric", true},
		{"payload bytes", "formatBytes", true},
		{"payload pct", "formatPct", true},
		{"payload time", "formatTime", true},
		{"payload time of day", "formatTimeMs", true},
		{"alias bytes", "bytes", true},
		{"alias case insensitive", "PCT", true},
		{"unknown", "formatFurlongs", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, ok := Lookup(tt.input)
			require.Equal(t, tt.found, ok)
			if tt.found {
				require.NotNil(t, f)
			}
			require.Equal(t, tt.found, Known(tt.input))
		})
	}
}

func TestResolve_UnknownDegradesToRaw(t *testing.T) {
	f := Resolve("formatFurlongs")
	require.Equal(t, "1234.5", f(1234.5, 2))

	f = Resolve("")
	require.Equal(t, "42", f(42, AutoPrecision))
}

func TestResolve_Known(t *testing.T) {
	require.Equal(t, "1.500k", Resolve("formatBytes")(1500, AutoPrecision))
	require.Equal(t, "1.500k", Resolve("bytes")(1500, AutoPrecision))
}

func TestResolveIn_BindsTimeFormatters(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	got := ResolveIn("formatTimeMs", loc)(float64(ts.UnixMilli()), AutoPrecision)
	require.Equal(t, "5:04:05.000", got)

	got = ResolveIn("timems", time.UTC)(float64(ts.UnixMilli()), AutoPrecision)
	require.Equal(t, "3:04:05.000", got)

	require.Equal(t, "1.500k", ResolveIn("formatMetric", loc)(1500, AutoPrecision))
	require.Equal(t, "7", ResolveIn("nope", loc)(7, AutoPrecision))
}
