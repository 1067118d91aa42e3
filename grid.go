package reportboard

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"text/template"
	"unicode"
)

// NewWidgetGrid creates one widget per combination of dimension values
// (cartesian product), all sharing a URL template and base criteria.
//
// The URL template uses Go's text/template syntax; values are URL-encoded
// before interpolation and missing keys are an error. Each combination is
// also merged into the criteria, so one report template can be fanned out
// over several criteria values.
//
// Widget ids are "baseID-val1-val2" and titles "Title (val1/val2)", with
// values ordered by sorted key. Dimension values become labels; static
// labels from [WithGridLabels] win on collision.
//
// Example:
//
//	widgets, err := NewWidgetGrid("traffic",
//	    WithURLTemplate("https://reports.example.com/{{.site}}/start"),
//	    WithDimensions(map[string][]string{
//	        "site": {"bos", "sfo"},
//	    }),
//	    WithGridCriteria(map[string]any{"duration": "1h"}),
//	    WithGridWidgetOptions(WithRenderer(render.TimeSeries())),
//	)
//	// Returns 2 widgets, usable with WithWidgets(widgets...)
func NewWidgetGrid(baseID string, opts ...GridOption) ([]Widget, error) {
	if strings.TrimSpace(baseID) == "" {
		return nil, errors.New("base id cannot be empty")
	}

	cfg := &gridConfig{
		staticLabels: make(map[string]string),
		headers:      make(map[string]string),
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.urlTemplate == "" {
		return nil, errors.New("URL template required")
	}
	if len(cfg.dimensions) == 0 {
		return nil, errors.New("at least one dimension required")
	}

	// missingkey=error fails fast on template typos
	tmpl, err := template.New("url").Option("missingkey=error").Parse(cfg.urlTemplate)
	if err != nil {
		return nil, fmt.Errorf("invalid URL template: %w", err)
	}

	combinations := cartesianProduct(cfg.dimensions)
	if len(combinations) == 0 {
		return nil, nil
	}

	title := cfg.title
	if title == "" {
		title = baseID
	}

	widgets := make([]Widget, 0, len(combinations))
	for _, combo := range combinations {
		urlStr, err := executeTemplate(tmpl, urlEncodeMap(combo))
		if err != nil {
			return nil, fmt.Errorf("template execution failed: %w", err)
		}

		id := formatWidgetID(baseID, combo)
		labels := mergeMaps(combo, cfg.staticLabels)

		criteria := make(map[string]any, len(cfg.criteria)+len(combo))
		for k, v := range cfg.criteria {
			criteria[k] = v
		}
		for k, v := range combo {
			criteria[k] = v
		}

		wOpts := []WidgetOption{
			WithWidgetTitle(formatGridTitle(title, combo)),
			WithLabels(flattenMap(labels)...),
			WithCriteria(criteria),
		}
		if len(cfg.headers) > 0 {
			wOpts = append(wOpts, WithHeaders(flattenMap(cfg.headers)...))
		}
		if cfg.timeout > 0 {
			wOpts = append(wOpts, WithTimeout(cfg.timeout))
		}
		wOpts = append(wOpts, cfg.widgetOpts...)

		w, err := NewWidget(id, urlStr, wOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create widget '%s': %w", id, err)
		}
		widgets = append(widgets, w)
	}

	return widgets, nil
}

// cartesianProduct generates all combinations of dimension values.
// Keys are sorted alphabetically for deterministic output.
// Values maintain their original slice order.
//
// Example:
//
//	Input:  {"x": ["a","b"], "y": ["1","2"]}
//	Output: [{"x":"a","y":"1"}, {"x":"a","y":"2"}, {"x":"b","y":"1"}, {"x":"b","y":"2"}]
func cartesianProduct(dims map[string][]string) []map[string]string {
	if len(dims) == 0 {
		return nil
	}

	// sort keys for deterministic iteration
	keys := make([]string, 0, len(dims))
	for k := range dims {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// also validated in WithDimensions
	for _, k := range keys {
		if len(dims[k]) == 0 {
			return nil
		}
	}

	// calculate total combinations
	total := 1
	for _, k := range keys {
		total *= len(dims[k])
	}

	result := make([]map[string]string, 0, total)

	// cartesian product
	indices := make([]int, len(keys))
	for {
		// combo is like our position in grid
		combo := make(map[string]string, len(keys))
		for i, k := range keys {
			combo[k] = dims[k][indices[i]]
		}
		result = append(result, combo)

		// increment indices (rightmost first)
		for i := len(keys) - 1; i >= 0; i-- {
			indices[i]++
			if indices[i] < len(dims[keys[i]]) {
				break
			}
			indices[i] = 0
			if i == 0 {
				return result
			}
		}

	}
}

// urlEncodeMap returns a new map with all values URL-encoded.
func urlEncodeMap(m map[string]string) map[string]string {
	result := make(map[string]string, len(m))
	for k, v := range m {
		result[k] = url.QueryEscape(v)
	}
	return result
}

// executeTemplate renders the template with the given data.
func executeTemplate(tmpl *template.Template, data map[string]string) (string, error) {
	var buf strings.Builder
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// sortedValues returns combo's values ordered by key.
func sortedValues(combo map[string]string) []string {
	keys := make([]string, 0, len(combo))
	for k := range combo {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := make([]string, len(keys))
	for i, k := range keys {
		values[i] = combo[k]
	}
	return values
}

// formatGridTitle creates a title in the format "Base (v1/v2)".
func formatGridTitle(base string, combo map[string]string) string {
	return fmt.Sprintf("%s (%s)", base, strings.Join(sortedValues(combo), "/"))
}

// formatWidgetID creates an id in the format "base-v1-v2". Whitespace in
// values becomes "_" so the id stays a valid element id.
func formatWidgetID(base string, combo map[string]string) string {
	parts := append([]string{base}, sortedValues(combo)...)
	id := strings.Join(parts, "-")
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, id)
}

// mergeMaps merges multiple maps, with later maps taking precedence.
func mergeMaps(maps ...map[string]string) map[string]string {
	result := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			result[k] = v
		}
	}
	return result
}

// flattenMap converts a map to a slice of key-value pairs for variadic functions.
// Keys are sorted for deterministic output.
func flattenMap(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]string, 0, len(m)*2)
	for _, k := range keys {
		result = append(result, k, m[k])
	}
	return result
}
