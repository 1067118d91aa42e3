package format

import (
	"strings"
	"time"
)

// Name identifies a formatter in report payloads and configuration.
type Name string

// Formatter identifiers as they appear in report payloads.
const (
	NameMetric    Name = "formatMetric"
	NameBytes     Name = "formatBytes"
	NamePct       Name = "formatPct"
	NameTime      Name = "formatTime"
	NameTimeOfDay Name = "formatTimeMs"
)

var registry = map[Name]Func{
	NameMetric:    Metric,
	NameBytes:     Bytes,
	NamePct:       Percentage,
	NameTime:      Time,
	NameTimeOfDay: TimeOfDay,
}

// short aliases accepted in YAML configuration
var aliases = map[string]Name{
	"metric":  NameMetric,
	"bytes":   NameBytes,
	"pct":     NamePct,
	"percent": NamePct,
	"time":    NameTime,
	"timems":  NameTimeOfDay,
}

// Lookup returns the formatter registered under name.
//
// Both payload identifiers ("formatBytes") and short aliases ("bytes") are
// accepted. The second return value is false for unknown names.
func Lookup(name string) (Func, bool) {
	if f, ok := registry[Name(name)]; ok {
		return f, true
	}
	if n, ok := aliases[strings.ToLower(name)]; ok {
		return registry[n], true
	}
	return nil, false
}

// Resolve is like [Lookup] but degrades to [Raw] for unknown or empty names.
func Resolve(name string) Func {
	if f, ok := Lookup(name); ok {
		return f
	}
	return Raw
}

// Known reports whether name identifies a registered formatter.
func Known(name string) bool {
	_, ok := Lookup(name)
	return ok
}

// ResolveIn is like [Resolve] but binds the time formatters to loc instead
// of the local time zone.
func ResolveIn(name string, loc *time.Location) Func {
	f, ok := Lookup(name)
	if !ok {
		return Raw
	}
	switch canonical(name) {
	case NameTime:
		return TimeIn(loc)
	case NameTimeOfDay:
		return TimeOfDayIn(loc)
	default:
		return f
	}
}

func canonical(name string) Name {
	if _, ok := registry[Name(name)]; ok {
		return Name(name)
	}
	return aliases[strings.ToLower(name)]
}
