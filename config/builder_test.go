package config

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/jpalmerr/reportboard"
	"github.com/jpalmerr/reportboard/render"
)

func TestBuildWidgets_SingleWidget(t *testing.T) {
	cfg := &Config{
		PollDelay: Duration(time.Second),
		Widgets: []WidgetConfig{
			{ID: "hosts", URL: "https://reports.example.com/reports/hosts/start"},
		},
	}

	widgets, err := BuildWidgets(cfg)
	if err != nil {
		t.Fatalf("BuildWidgets() error = %v", err)
	}

	if len(widgets) != 1 {
		t.Fatalf("len(widgets) = %d, want 1", len(widgets))
	}

	w := widgets[0]
	if w.ID() != "hosts" || w.Title() != "hosts" {
		t.Errorf("ID/Title = %q/%q, want hosts/hosts", w.ID(), w.Title())
	}
	if w.Mode() != reportboard.ModeSubmit {
		t.Errorf("Mode() = %q, want submit", w.Mode())
	}
	if _, ok := w.Renderer().(render.HTML); !ok {
		t.Errorf("Renderer() = %T, want render.HTML", w.Renderer())
	}
	if w.StatusCodes().Complete != 3 || w.StatusCodes().Error != 4 {
		t.Errorf("StatusCodes() = %+v, want portal", w.StatusCodes())
	}
	if string(w.Criteria()) != "{}" {
		t.Errorf("Criteria() = %s, want {}", w.Criteria())
	}
}

func TestBuildWidgets_AllOptions(t *testing.T) {
	cfg := &Config{
		PollDelay: Duration(time.Second),
		Widgets: []WidgetConfig{
			{
				ID:  "legacy-status",
				URL: "http://legacy.example.com/data",
				WidgetSettings: WidgetSettings{
					Title:       "Legacy Status",
					Mode:        "direct",
					Criteria:    map[string]any{"view": "top"},
					WidgetParam: "legacy-status",
					Renderer:    "table",
					StatusCodes: StatusCodesConfig{Preset: "legacy"},
					PollDelay:   Duration(250 * time.Millisecond),
					Timeout:     Duration(5 * time.Second),
					MaxWait:     Duration(time.Minute),
					Headers:     map[string]string{"Authorization": "Bearer token"},
					Labels:      map[string]string{"team": "netops", "env": "prod"},
					Width:       800,
					Height:      400,
					MinHeight:   200,
				},
			},
		},
	}

	widgets, err := BuildWidgets(cfg)
	if err != nil {
		t.Fatalf("BuildWidgets() error = %v", err)
	}

	w := widgets[0]
	if w.Title() != "Legacy Status" {
		t.Errorf("Title() = %q", w.Title())
	}
	if w.Mode() != reportboard.ModeDirect {
		t.Errorf("Mode() = %q, want direct", w.Mode())
	}
	if w.WidgetParam() != "legacy-status" {
		t.Errorf("WidgetParam() = %q", w.WidgetParam())
	}
	if _, ok := w.Renderer().(render.Table); !ok {
		t.Errorf("Renderer() = %T, want render.Table", w.Renderer())
	}
	if w.StatusCodes().Complete != 2 || w.StatusCodes().Error != 3 {
		t.Errorf("StatusCodes() = %+v, want legacy", w.StatusCodes())
	}
	if w.PollDelay() != 250*time.Millisecond {
		t.Errorf("PollDelay() = %v, want 250ms", w.PollDelay())
	}
	if w.Timeout() != 5*time.Second {
		t.Errorf("Timeout() = %v, want 5s", w.Timeout())
	}
	if w.MaxWait() != time.Minute {
		t.Errorf("MaxWait() = %v, want 1m", w.MaxWait())
	}
	if w.Headers()["Authorization"] != "Bearer token" {
		t.Errorf("Headers() = %v", w.Headers())
	}
	if w.Labels()["team"] != "netops" || w.Labels()["env"] != "prod" {
		t.Errorf("Labels() = %v", w.Labels())
	}
	if w.Width() != 800 || w.Height() != 400 || w.MinHeight() != 200 {
		t.Errorf("size = %dx%d min %d", w.Width(), w.Height(), w.MinHeight())
	}

	var criteria map[string]any
	if err := json.Unmarshal(w.Criteria(), &criteria); err != nil {
		t.Fatalf("Criteria() is not JSON: %v", err)
	}
	if criteria["view"] != "top" {
		t.Errorf("Criteria() = %s", w.Criteria())
	}
}

func TestBuildWidgets_GlobalPollDelay(t *testing.T) {
	cfg := &Config{
		PollDelay: Duration(3 * time.Second),
		Widgets: []WidgetConfig{
			{ID: "a", URL: "https://example.com"},
			{ID: "b", URL: "https://example.com", WidgetSettings: WidgetSettings{PollDelay: Duration(time.Second)}},
		},
	}

	widgets, err := BuildWidgets(cfg)
	if err != nil {
		t.Fatalf("BuildWidgets() error = %v", err)
	}

	if got := widgets[0].PollDelay(); got != 3*time.Second {
		t.Errorf("a PollDelay() = %v, want global 3s", got)
	}
	if got := widgets[1].PollDelay(); got != time.Second {
		t.Errorf("b PollDelay() = %v, want own 1s", got)
	}
}

func TestBuildWidgets_ExplicitStatusCodes(t *testing.T) {
	cfg, err := Parse([]byte(`
widgets:
  - id: a
    url: https://example.com
    status_codes: {complete: 10, error: 11, running: [5]}
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	widgets, err := BuildWidgets(cfg)
	if err != nil {
		t.Fatalf("BuildWidgets() error = %v", err)
	}

	codes := widgets[0].StatusCodes()
	if codes.Complete != 10 || codes.Error != 11 {
		t.Errorf("StatusCodes() = %+v", codes)
	}
	if len(codes.Running) != 1 || codes.Running[0] != 5 {
		t.Errorf("Running = %v, want [5]", codes.Running)
	}
}

func TestBuildWidgets_Grid(t *testing.T) {
	cfg := &Config{
		PollDelay: Duration(time.Second),
		Grids: []GridConfig{
			{
				ID:          "traffic",
				URLTemplate: "https://{{.env}}.example.com/reports/{{.svc}}/start",
				Dimensions: map[string][]string{
					"env": {"prod", "staging"},
					"svc": {"api", "web"},
				},
				WidgetSettings: WidgetSettings{
					Title:    "Traffic",
					Criteria: map[string]any{"limit": 5},
					Renderer: "timeseries",
					Labels:   map[string]string{"tier": "core"},
				},
			},
		},
	}

	widgets, err := BuildWidgets(cfg)
	if err != nil {
		t.Fatalf("BuildWidgets() error = %v", err)
	}

	// 2 envs * 2 svcs = 4 widgets
	if len(widgets) != 4 {
		t.Fatalf("len(widgets) = %d, want 4", len(widgets))
	}

	first := widgets[0]
	if first.ID() != "traffic-prod-api" {
		t.Errorf("ID() = %q, want traffic-prod-api", first.ID())
	}
	if first.Title() != "Traffic (prod/api)" {
		t.Errorf("Title() = %q, want Traffic (prod/api)", first.Title())
	}
	if first.URL() != "https://prod.example.com/reports/api/start" {
		t.Errorf("URL() = %q", first.URL())
	}
	if _, ok := first.Renderer().(render.Chart); !ok {
		t.Errorf("Renderer() = %T, want render.Chart", first.Renderer())
	}

	for _, w := range widgets {
		labels := w.Labels()
		if labels["env"] == "" || labels["svc"] == "" || labels["tier"] != "core" {
			t.Errorf("widget %q labels = %v", w.ID(), labels)
		}

		var criteria map[string]any
		if err := json.Unmarshal(w.Criteria(), &criteria); err != nil {
			t.Fatalf("Criteria() is not JSON: %v", err)
		}
		if criteria["limit"] != float64(5) || criteria["env"] != labels["env"] {
			t.Errorf("widget %q criteria = %s", w.ID(), w.Criteria())
		}
	}
}

func TestBuildWidgets_MixedWidgetsAndGrids(t *testing.T) {
	cfg := &Config{
		PollDelay: Duration(time.Second),
		Widgets: []WidgetConfig{
			{ID: "summary", URL: "https://direct.example.com"},
		},
		Grids: []GridConfig{
			{
				ID:          "traffic",
				URLTemplate: "https://{{.env}}.example.com",
				Dimensions: map[string][]string{
					"env": {"prod", "staging"},
				},
			},
		},
	}

	widgets, err := BuildWidgets(cfg)
	if err != nil {
		t.Fatalf("BuildWidgets() error = %v", err)
	}

	// 1 direct + 2 from grid = 3, direct widgets first
	if len(widgets) != 3 {
		t.Fatalf("len(widgets) = %d, want 3", len(widgets))
	}
	if widgets[0].ID() != "summary" {
		t.Errorf("widgets[0].ID() = %q, want summary", widgets[0].ID())
	}
}

func TestBuildWidgets_EmptyConfig(t *testing.T) {
	widgets, err := BuildWidgets(&Config{})
	if err != nil {
		t.Fatalf("BuildWidgets() error = %v", err)
	}

	if len(widgets) != 0 {
		t.Errorf("len(widgets) = %d, want 0", len(widgets))
	}
}

// TestBuildWidgets_GridMissingScheme verifies that grid URLs are checked
// after template expansion, since the template itself is not a URL.
func TestBuildWidgets_GridMissingScheme(t *testing.T) {
	cfg := &Config{
		Grids: []GridConfig{
			{
				ID:          "invalid",
				URLTemplate: "{{.env}}.example.com/start",
				Dimensions: map[string][]string{
					"env": {"prod"},
				},
			},
		},
	}

	_, err := BuildWidgets(cfg)
	if err == nil {
		t.Fatal("BuildWidgets() expected error for missing scheme, got nil")
	}
	if !strings.Contains(err.Error(), "grid (invalid)") || !strings.Contains(err.Error(), "scheme") {
		t.Errorf("error = %q, want grid context and scheme", err.Error())
	}
}

// TestBuildWidgets_GridTemplateExecutionError verifies that a template key
// missing from the dimensions fails with the grid id in the error.
func TestBuildWidgets_GridTemplateExecutionError(t *testing.T) {
	cfg := &Config{
		Grids: []GridConfig{
			{
				ID:          "platform",
				URLTemplate: "https://{{.region}}.example.com/start",
				Dimensions: map[string][]string{
					"env": {"prod"},
				},
			},
		},
	}

	_, err := BuildWidgets(cfg)
	if err == nil {
		t.Fatal("expected error for missing template variable, got nil")
	}

	errStr := err.Error()
	if !strings.Contains(errStr, "grid (platform)") {
		t.Errorf("error should contain grid id, got: %s", errStr)
	}
	if !strings.Contains(errStr, "template execution failed") {
		t.Errorf("error should indicate template execution failure, got: %s", errStr)
	}
	if !strings.Contains(errStr, "region") {
		t.Errorf("error should mention the missing key, got: %s", errStr)
	}
}
