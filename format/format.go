// Package format provides the pure numeric-to-string conversions used by
// render backends when they display report values.
//
// Every formatter has the [Func] signature so backends can resolve one by
// name through [Lookup] or [Resolve] at construction time:
//
//	f := format.Resolve("formatBytes")
//	f(1536000, format.AutoPrecision) // "1.536M"
//
// Formatters never panic. Values that cannot be represented (NaN, ±Inf)
// fall back to [Raw].
package format

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// AutoPrecision asks a formatter to pick the number of decimals from the
// magnitude of the scaled value.
const AutoPrecision = -1

// Func converts a numeric value into display text.
//
// precision is the number of decimals to print; pass [AutoPrecision] to use
// the default rule (3 decimals below 10, 2 below 100, otherwise 1).
type Func func(v float64, precision int) string

var (
	largeSuffixes = []string{"", "k", "M", "G", "T"}
	smallSuffixes = []string{"", "m", "u", "n"}
)

// Metric scales v by powers of 1000 and appends an SI-style suffix.
//
// The magnitude is floor(log1000(|v|)), clamped to the suffix table
// (k, M, G, T above one; m, u, n below). Zero always formats as "0".
// Negative values are formatted on their absolute value with a leading "-".
func Metric(v float64, precision int) string {
	if v == 0 {
		return "0"
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Raw(v, precision)
	}

	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}

	e := int(math.Floor(math.Log(v) / math.Log(1000)))
	if e > len(largeSuffixes)-1 {
		e = len(largeSuffixes) - 1
	}
	if e < -(len(smallSuffixes) - 1) {
		e = -(len(smallSuffixes) - 1)
	}

	scaled := v / math.Pow(1000, float64(e))
	// log rounding can leave 1000 on the low side of a boundary, e.g. 1e6
	if scaled >= 1000 && e < len(largeSuffixes)-1 {
		e++
		scaled /= 1000
	}

	var suffix string
	if e >= 0 {
		suffix = largeSuffixes[e]
	} else {
		suffix = smallSuffixes[-e]
	}
	return sign + fixed(scaled, precision) + suffix
}

// Bytes is an alias of [Metric]; byte counts use the same 1000-based table.
func Bytes(v float64, precision int) string {
	return Metric(v, precision)
}

// Percentage formats v with the default precision rule and no scaling.
// Zero formats as "0".
func Percentage(v float64, precision int) string {
	if v == 0 {
		return "0"
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Raw(v, precision)
	}
	return fixed(v, precision)
}

// Raw prints v with the shortest representation that round-trips.
// precision is ignored.
func Raw(v float64, _ int) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Fixed returns a Func that always prints the given number of decimals,
// ignoring the precision argument. Negative decimals are treated as zero.
func Fixed(decimals int) Func {
	if decimals < 0 {
		decimals = 0
	}
	return func(v float64, _ int) string {
		return strconv.FormatFloat(v, 'f', decimals, 64)
	}
}

// TimeOfDay formats epoch milliseconds as H:MM:SS.mmm in the local time zone.
func TimeOfDay(epochMillis float64, precision int) string {
	return TimeOfDayIn(time.Local)(epochMillis, precision)
}

// TimeOfDayIn returns a TimeOfDay formatter bound to loc.
//
// The hour is unpadded; minutes and seconds are padded to two digits and
// milliseconds to three.
func TimeOfDayIn(loc *time.Location) Func {
	if loc == nil {
		loc = time.Local
	}
	return func(epochMillis float64, _ int) string {
		t := fromMillis(epochMillis).In(loc)
		var b strings.Builder
		b.WriteString(strconv.Itoa(t.Hour()))
		b.WriteByte(':')
		b.WriteString(pad(t.Minute(), 2))
		b.WriteByte(':')
		b.WriteString(pad(t.Second(), 2))
		b.WriteByte('.')
		b.WriteString(pad(t.Nanosecond()/int(time.Millisecond), 3))
		return b.String()
	}
}

// Time formats epoch milliseconds as a full date string in the local time zone.
func Time(epochMillis float64, precision int) string {
	return TimeIn(time.Local)(epochMillis, precision)
}

// TimeIn returns a Time formatter bound to loc.
func TimeIn(loc *time.Location) Func {
	if loc == nil {
		loc = time.Local
	}
	return func(epochMillis float64, _ int) string {
		return fromMillis(epochMillis).In(loc).Format("Mon Jan 02 2006 15:04:05 GMT-0700 (MST)")
	}
}

// fixed applies the precision rule: explicit precision wins, otherwise the
// number of decimals shrinks as the value grows.
func fixed(v float64, precision int) string {
	if precision < 0 {
		switch av := math.Abs(v); {
		case av < 10:
			precision = 3
		case av < 100:
			precision = 2
		default:
			precision = 1
		}
	}
	return strconv.FormatFloat(v, 'f', precision, 64)
}

func fromMillis(ms float64) time.Time {
	whole := math.Floor(ms)
	nanos := int64(math.Round((ms - whole) * float64(time.Millisecond)))
	return time.UnixMilli(int64(whole)).Add(time.Duration(nanos))
}

func pad(n, width int) string {
	s := strconv.Itoa(n)
	for len(s) < width {
		s = "0" + s
	}
	return s
}
