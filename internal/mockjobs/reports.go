package mockjobs

import (
	"errors"
	"fmt"
	"html"
	"math"
	"strconv"
)

// baseTime is the first sample of every generated series (2024-01-01 UTC).
const baseTime int64 = 1704067200000

// RegisterDemo adds the demo reports used by the example dashboard:
// traffic (time series), hosts (table), protocols (pie), sites (map),
// summary (HTML) and broken (always fails).
func (b *Backend) RegisterDemo() {
	b.Register("traffic", Report{Steps: 3, Build: trafficSeries})
	b.Register("hosts", Report{Steps: 2, Build: hostTable})
	b.Register("protocols", Report{Steps: 1, Build: protocolPie})
	b.Register("sites", Report{Steps: 2, Build: siteMap})
	b.Register("summary", Report{Steps: 0, Build: summaryHTML})
	b.Register("broken", Report{Steps: 2, Build: func(map[string]any) (any, error) {
		return nil, errors.New("report database unavailable")
	}})
}

// limit reads an integer criterion, falling back to def.
func limit(criteria map[string]any, def int) int {
	switch v := criteria["limit"].(type) {
	case float64:
		if v > 0 {
			return int(v)
		}
	case string:
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func trafficSeries(criteria map[string]any) (any, error) {
	n := limit(criteria, 24)
	rows := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		x := float64(i)
		rows = append(rows, map[string]any{
			"time":      baseTime + int64(i)*3600*1000,
			"bits_in":   math.Round(1e6 + 4e5*math.Sin(x/4)),
			"bits_out":  math.Round(2e5 + 1e5*math.Cos(x/3)),
			"retx_rate": math.Round(1000*(0.02+0.01*math.Sin(x/2))) / 1000,
		})
	}
	return map[string]any{
		"chartTitle":   "Traffic",
		"dataProvider": rows,
		"seriesCollection": []map[string]any{
			{"xKey": "time", "xDisplayName": "Time", "yKey": "bits_in", "yDisplayName": "Bits In"},
			{"xKey": "time", "xDisplayName": "Time", "yKey": "bits_out", "yDisplayName": "Bits Out"},
			{"xKey": "time", "xDisplayName": "Time", "yKey": "retx_rate", "yDisplayName": "Retransmits"},
		},
		"axes": map[string]any{
			"time":  map[string]any{"keys": []string{"time"}, "type": "time", "formatter": "formatTime"},
			"axis0": map[string]any{"keys": []string{"bits_in", "bits_out"}, "formatter": "formatMetric"},
			"axis1": map[string]any{"keys": []string{"retx_rate"}, "formatter": "formatPct"},
		},
	}, nil
}

func hostTable(criteria map[string]any) (any, error) {
	n := limit(criteria, 5)
	rows := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, map[string]any{
			"host":    fmt.Sprintf("10.0.0.%d", i+1),
			"bytes":   (n - i) * 1536000,
			"packets": (n - i) * 1200,
		})
	}
	return map[string]any{
		"chartTitle": "Top Hosts",
		"columns": []map[string]any{
			{"key": "host", "label": "Host"},
			{"key": "bytes", "label": "Bytes", "formatter": "formatBytes"},
			{"key": "packets", "label": "Packets", "formatter": "formatMetric"},
		},
		"data": rows,
	}, nil
}

func protocolPie(map[string]any) (any, error) {
	return map[string]any{
		"chartTitle":  "Protocols",
		"type":        "pie",
		"categoryKey": "proto",
		"dataProvider": []map[string]any{
			{"proto": "tcp", "bytes": 7200000},
			{"proto": "udp", "bytes": 2100000},
			{"proto": "icmp", "bytes": 40000},
		},
		"seriesCollection": []map[string]any{
			{"categoryKey": "proto", "categoryDisplayName": "Protocol", "valueKey": "bytes", "valueDisplayName": "Bytes"},
		},
	}, nil
}

func siteMap(map[string]any) (any, error) {
	return map[string]any{
		"chartTitle": "Sites",
		"circles": []map[string]any{
			{"center": []float64{42.36, -71.06}, "title": "Boston", "value": 1536000, "units": "B", "formatter": "formatBytes", "radius": 12},
			{"center": []float64{37.77, -122.42}, "title": "San Francisco", "value": 980000, "units": "B", "formatter": "formatBytes", "radius": 9},
			{"center": []float64{51.51, -0.13}, "title": "London", "value": 2048000, "units": "B", "formatter": "formatBytes", "radius": 14},
		},
	}, nil
}

func summaryHTML(criteria map[string]any) (any, error) {
	who, _ := criteria["widget_id"].(string)
	if who == "" {
		who = "dashboard"
	}
	return fmt.Sprintf("<p>Summary for <b>%s</b>: all collectors reporting.</p>", html.EscapeString(who)), nil
}
