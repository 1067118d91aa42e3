package config

import (
	"fmt"
	"sort"

	"github.com/jpalmerr/reportboard"
	"github.com/jpalmerr/reportboard/render"
)

// BuildWidgets converts parsed configuration into SDK Widget objects.
//
// It processes both direct widgets and grids, returning a combined slice in
// file order. Grid dimensions are expanded via cartesian product.
func BuildWidgets(cfg *Config) ([]reportboard.Widget, error) {
	var widgets []reportboard.Widget

	for _, wc := range cfg.Widgets {
		opts, err := settingsOptions(wc.WidgetSettings, cfg.PollDelay)
		if err != nil {
			return nil, fmt.Errorf("widget (%s): %w", wc.ID, err)
		}
		if wc.Title != "" {
			opts = append(opts, reportboard.WithWidgetTitle(wc.Title))
		}
		if wc.Criteria != nil {
			opts = append(opts, reportboard.WithCriteria(wc.Criteria))
		}
		if len(wc.Labels) > 0 {
			opts = append(opts, reportboard.WithLabels(mapToKeyValuePairs(wc.Labels)...))
		}
		if len(wc.Headers) > 0 {
			opts = append(opts, reportboard.WithHeaders(mapToKeyValuePairs(wc.Headers)...))
		}

		w, err := reportboard.NewWidget(wc.ID, wc.URL, opts...)
		if err != nil {
			return nil, fmt.Errorf("widget (%s): %w", wc.ID, err)
		}
		widgets = append(widgets, w)
	}

	for _, gc := range cfg.Grids {
		gridWidgets, err := buildGridWidgets(gc, cfg.PollDelay)
		if err != nil {
			return nil, fmt.Errorf("grid (%s): %w", gc.ID, err)
		}
		widgets = append(widgets, gridWidgets...)
	}

	return widgets, nil
}

// buildGridWidgets expands a GridConfig through reportboard.NewWidgetGrid.
func buildGridWidgets(gc GridConfig, pollDelay Duration) ([]reportboard.Widget, error) {
	widgetOpts, err := settingsOptions(gc.WidgetSettings, pollDelay)
	if err != nil {
		return nil, err
	}

	opts := []reportboard.GridOption{
		reportboard.WithURLTemplate(gc.URLTemplate),
		reportboard.WithDimensions(gc.Dimensions),
		reportboard.WithGridWidgetOptions(widgetOpts...),
	}
	if gc.Title != "" {
		opts = append(opts, reportboard.WithGridTitle(gc.Title))
	}
	if criteria, ok := gc.Criteria.(map[string]any); ok {
		opts = append(opts, reportboard.WithGridCriteria(criteria))
	}
	if len(gc.Labels) > 0 {
		opts = append(opts, reportboard.WithGridLabels(mapToKeyValuePairs(gc.Labels)...))
	}
	if len(gc.Headers) > 0 {
		opts = append(opts, reportboard.WithGridHeaders(mapToKeyValuePairs(gc.Headers)...))
	}

	return reportboard.NewWidgetGrid(gc.ID, opts...)
}

// settingsOptions converts the fields shared by widgets and grids. Title,
// criteria, labels and headers are left to the caller since grids merge
// them per combination.
func settingsOptions(s WidgetSettings, pollDelay Duration) ([]reportboard.WidgetOption, error) {
	var opts []reportboard.WidgetOption

	if s.Mode == "direct" {
		opts = append(opts, reportboard.WithDirectPoll())
	}
	if s.WidgetParam != "" {
		opts = append(opts, reportboard.WithWidgetParam(s.WidgetParam))
	}

	r, err := render.ByName(s.Renderer)
	if err != nil {
		return nil, err
	}
	opts = append(opts, reportboard.WithRenderer(r))

	opts = append(opts, reportboard.WithStatusCodes(buildStatusCodes(s.StatusCodes)))

	delay := s.PollDelay
	if delay == 0 {
		delay = pollDelay
	}
	if delay != 0 {
		opts = append(opts, reportboard.WithPollDelay(delay.Duration()))
	}
	if s.Timeout != 0 {
		opts = append(opts, reportboard.WithTimeout(s.Timeout.Duration()))
	}
	if s.MaxWait != 0 {
		opts = append(opts, reportboard.WithMaxWait(s.MaxWait.Duration()))
	}

	if s.Width != 0 {
		opts = append(opts, reportboard.WithWidth(s.Width))
	}
	if s.Height != 0 {
		opts = append(opts, reportboard.WithHeight(s.Height))
	}
	if s.MinHeight != 0 {
		opts = append(opts, reportboard.WithMinHeight(s.MinHeight))
	}

	return opts, nil
}

// buildStatusCodes resolves a preset name or explicit codes.
func buildStatusCodes(sc StatusCodesConfig) reportboard.StatusCodes {
	if sc.Explicit() {
		return reportboard.StatusCodes{
			Complete: sc.Complete,
			Error:    sc.Error,
			Pending:  append([]int(nil), sc.Pending...),
			Running:  append([]int(nil), sc.Running...),
		}
	}
	if sc.Preset == "legacy" {
		return reportboard.LegacyStatusCodes
	}
	return reportboard.PortalStatusCodes
}

// mapToKeyValuePairs converts a map to a sorted slice of key-value pairs.
func mapToKeyValuePairs(m map[string]string) []string {
	// sort keys for deterministic ordering
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(m)*2)
	for _, k := range keys {
		pairs = append(pairs, k, m[k])
	}
	return pairs
}
