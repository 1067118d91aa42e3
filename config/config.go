// Package config provides YAML configuration for running a report board
// as a standalone binary.
//
// Example configuration:
//
//	title: Network Reports
//	port: 8080
//	poll_delay: 1s
//
//	widgets:
//	  - id: top-hosts
//	    title: Top Hosts
//	    url: ${REPORTS_URL:-http://localhost:9000}/reports/hosts/start
//	    criteria: {limit: 10}
//	    renderer: table
//
//	  - id: status
//	    url: http://legacy.local/data
//	    mode: direct
//	    status_codes: legacy
//
//	grids:
//	  - id: traffic
//	    url_template: "http://localhost:9000/reports/traffic/start"
//	    dimensions:
//	      site: [bos, sfo]
//	    renderer: timeseries
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"text/template"
	"time"
	"unicode"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jpalmerr/reportboard/render"
)

const (
	defaultPort           = 8080
	defaultMaxConcurrency = 10
	defaultPollDelay      = time.Second

	minPollDelay = 10 * time.Millisecond
	maxPollDelay = time.Minute
)

// Config is the root configuration structure.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is the dashboard title. Defaults to "ReportBoard" if not set.
	Title string `yaml:"title"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// MaxConcurrency caps in-flight requests across all widgets. Defaults to 10.
	MaxConcurrency int `yaml:"max_concurrency"`

	// PollDelay is the default wait between polls for widgets that do not
	// set their own. Defaults to 1s.
	PollDelay Duration `yaml:"poll_delay"`

	// Widgets defines individual report widgets.
	Widgets []WidgetConfig `yaml:"widgets"`

	// Grids defines widget grids that expand via cartesian product.
	Grids []GridConfig `yaml:"grids"`
}

// WidgetSettings are the fields shared by widgets and grids.
type WidgetSettings struct {
	// Title is the display title. Widgets default to their id.
	Title string `yaml:"title"`

	// Mode is "submit" (default) or "direct".
	Mode string `yaml:"mode"`

	// Criteria is any YAML value; it is posted as JSON on submit.
	Criteria any `yaml:"criteria"`

	// WidgetParam is sent as the widget_id form field when set.
	WidgetParam string `yaml:"widget_param"`

	// Renderer names the render backend (html, table, raw_table,
	// timeseries, column, pie, map). Defaults to html.
	Renderer string `yaml:"renderer"`

	// StatusCodes selects the wire status codes. Defaults to portal.
	StatusCodes StatusCodesConfig `yaml:"status_codes"`

	// PollDelay overrides the global poll_delay. Must be within 10ms..1m.
	PollDelay Duration `yaml:"poll_delay"`

	// Timeout is the request timeout. Defaults to 10s.
	Timeout Duration `yaml:"timeout"`

	// MaxWait bounds the whole job. Zero polls until a terminal status.
	MaxWait Duration `yaml:"max_wait"`

	// Headers are sent with each request. Values support environment
	// variable substitution.
	Headers map[string]string `yaml:"headers"`

	// Labels are metadata key-value pairs.
	Labels map[string]string `yaml:"labels"`

	Width     int `yaml:"width"`
	Height    int `yaml:"height"`
	MinHeight int `yaml:"min_height"`
}

// WidgetConfig defines a single report widget.
type WidgetConfig struct {
	// ID is the container element id. Required and unique.
	ID string `yaml:"id"`

	// URL is the submit or data endpoint.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	URL string `yaml:"url"`

	WidgetSettings `yaml:",inline"`
}

// GridConfig defines a widget grid that expands via cartesian product.
//
// For example, with dimensions {site: [bos, sfo], duration: [1h, 1d]}, the
// grid expands to 4 widgets. Dimension values are also merged into the
// criteria of each widget.
type GridConfig struct {
	// ID is the base id for generated widgets.
	ID string `yaml:"id"`

	// URLTemplate is a Go template for generating widget URLs.
	// Dimension keys are available as template variables: {{.site}}
	// Supports environment variable substitution in the template.
	URLTemplate string `yaml:"url_template"`

	// Dimensions maps dimension names to their possible values.
	Dimensions map[string][]string `yaml:"dimensions"`

	WidgetSettings `yaml:",inline"`
}

// StatusCodesConfig selects the wire status codes of a backend.
//
// It supports two formats in YAML:
//
// Preset name:
//
//	status_codes: portal   # 3 complete, 4 error
//	status_codes: legacy   # 2 complete, 3 error
//
// Explicit codes:
//
//	status_codes:
//	  complete: 3
//	  error: 4
//	  pending: [0]
//	  running: [1, 2]
type StatusCodesConfig struct {
	// Preset is "portal", "legacy" or empty when codes are explicit.
	Preset string

	Complete int
	Error    int
	Pending  []int
	Running  []int

	explicit bool
}

// Explicit reports whether the codes were given as an object.
func (s StatusCodesConfig) Explicit() bool {
	return s.explicit
}

// UnmarshalYAML implements yaml.Unmarshaler for StatusCodesConfig.
func (s *StatusCodesConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var name string
		if err := node.Decode(&name); err != nil {
			return err
		}
		name = strings.ToLower(strings.TrimSpace(name))
		switch name {
		case "", "portal", "legacy":
			s.Preset = name
			return nil
		default:
			return fmt.Errorf("unknown status_codes preset %q (expected 'portal' or 'legacy')", name)
		}
	}

	if node.Kind == yaml.MappingNode {
		// temporary struct to avoid infinite recursion
		var raw struct {
			Complete *int  `yaml:"complete"`
			Error    *int  `yaml:"error"`
			Pending  []int `yaml:"pending"`
			Running  []int `yaml:"running"`
		}
		if err := node.Decode(&raw); err != nil {
			return err
		}
		if raw.Complete == nil || raw.Error == nil {
			return errors.New("status_codes requires both complete and error")
		}
		s.Complete, s.Error = *raw.Complete, *raw.Error
		s.Pending, s.Running = raw.Pending, raw.Running
		s.explicit = true
		return nil
	}

	return fmt.Errorf("status_codes must be a string or object, got %v", node.Kind)
}

// validate checks that explicit codes are unambiguous.
func (s StatusCodesConfig) validate() error {
	if !s.explicit {
		return nil
	}
	if s.Complete == s.Error {
		return fmt.Errorf("status_codes: complete and error must differ, both are %d", s.Complete)
	}
	seen := map[int]string{s.Complete: "complete", s.Error: "error"}
	for _, group := range []struct {
		name  string
		codes []int
	}{{"pending", s.Pending}, {"running", s.Running}} {
		for _, c := range group.codes {
			if prev, dup := seen[c]; dup {
				return fmt.Errorf("status_codes: %d is both %s and %s", c, prev, group.name)
			}
			seen[c] = group.name
		}
	}
	return nil
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// already have an error, skip processing
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		// submatches[2] is ":-..." (non-empty if default syntax was used)
		// submatches[3] is the actual default value (may be empty for ${VAR:-})
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// LoadEnvFile loads KEY=value pairs from a dotenv file into the process
// environment so they can be referenced as ${VAR} in the configuration.
// Variables already set in the environment are not overridden.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded after parsing.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in URL, URLTemplate, and Header values.
// Defaults are applied for Port (8080), MaxConcurrency (10) and
// PollDelay (1s).
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.MaxConcurrency == 0 {
		cfg.MaxConcurrency = defaultMaxConcurrency
	}
	if cfg.PollDelay == 0 {
		cfg.PollDelay = Duration(defaultPollDelay)
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.MaxConcurrency < 0 {
		return fmt.Errorf("max_concurrency must be positive, got %d", c.MaxConcurrency)
	}
	if err := validatePollDelay(c.PollDelay); err != nil {
		return err
	}

	ids := make(map[string]string)
	claim := func(id, where string) error {
		if prev, dup := ids[id]; dup {
			return fmt.Errorf("%s: id %q already used by %s", where, id, prev)
		}
		ids[id] = where
		return nil
	}

	for i := range c.Widgets {
		w := &c.Widgets[i]

		if w.ID == "" {
			return fmt.Errorf("widgets[%d]: id is required", i)
		}
		where := fmt.Sprintf("widgets[%d] (%s)", i, w.ID)
		if strings.ContainsFunc(w.ID, unicode.IsSpace) {
			return fmt.Errorf("%s: id must not contain whitespace", where)
		}
		if err := claim(w.ID, where); err != nil {
			return err
		}

		if w.URL == "" {
			return fmt.Errorf("%s: url is required", where)
		}
		expanded, err := expandEnvVars(w.URL)
		if err != nil {
			return fmt.Errorf("%s: url: %w", where, err)
		}
		w.URL = expanded
		if err := validateURL(w.URL); err != nil {
			return fmt.Errorf("%s: %w", where, err)
		}

		if err := w.WidgetSettings.expandAndValidate(where); err != nil {
			return err
		}
	}

	for i := range c.Grids {
		g := &c.Grids[i]

		if g.ID == "" {
			return fmt.Errorf("grids[%d]: id is required", i)
		}
		where := fmt.Sprintf("grids[%d] (%s)", i, g.ID)
		if strings.ContainsFunc(g.ID, unicode.IsSpace) {
			return fmt.Errorf("%s: id must not contain whitespace", where)
		}

		if g.URLTemplate == "" {
			return fmt.Errorf("%s: url_template is required", where)
		}
		expanded, err := expandEnvVars(g.URLTemplate)
		if err != nil {
			return fmt.Errorf("%s: url_template: %w", where, err)
		}
		g.URLTemplate = expanded

		// fail fast before the SDK tries to use an invalid template
		if _, err := template.New("").Parse(g.URLTemplate); err != nil {
			return fmt.Errorf("%s: invalid url_template: %w", where, err)
		}

		if len(g.Dimensions) == 0 {
			return fmt.Errorf("%s: at least one dimension is required", where)
		}
		for dimName, dimValues := range g.Dimensions {
			if len(dimValues) == 0 {
				return fmt.Errorf("%s: dimension %q has no values", where, dimName)
			}
			seen := make(map[string]struct{}, len(dimValues))
			for _, v := range dimValues {
				if _, exists := seen[v]; exists {
					return fmt.Errorf("%s: dimension %q has duplicate value %q", where, dimName, v)
				}
				seen[v] = struct{}{}
			}
		}

		if g.Criteria != nil {
			if _, ok := g.Criteria.(map[string]any); !ok {
				return fmt.Errorf("%s: grid criteria must be a mapping", where)
			}
		}

		if err := g.WidgetSettings.expandAndValidate(where); err != nil {
			return err
		}
	}

	if len(c.Widgets) == 0 && len(c.Grids) == 0 {
		return errors.New("at least one widget or grid must be defined")
	}

	return nil
}

// expandAndValidate checks the shared widget fields. where prefixes errors.
func (s *WidgetSettings) expandAndValidate(where string) error {
	switch s.Mode {
	case "", "submit", "direct":
	default:
		return fmt.Errorf("%s: mode must be submit or direct, got %q", where, s.Mode)
	}

	if _, err := json.Marshal(s.Criteria); err != nil {
		return fmt.Errorf("%s: criteria cannot be encoded as JSON: %w", where, err)
	}

	if _, err := render.ByName(s.Renderer); err != nil {
		return fmt.Errorf("%s: %w", where, err)
	}

	if err := s.StatusCodes.validate(); err != nil {
		return fmt.Errorf("%s: %w", where, err)
	}

	if s.PollDelay != 0 {
		if err := validatePollDelay(s.PollDelay); err != nil {
			return fmt.Errorf("%s: %w", where, err)
		}
	}

	if s.Timeout < 0 {
		return fmt.Errorf("%s: timeout cannot be negative, got %s", where, s.Timeout.Duration())
	}
	if s.MaxWait < 0 {
		return fmt.Errorf("%s: max_wait cannot be negative, got %s", where, s.MaxWait.Duration())
	}

	for k, v := range s.Headers {
		expanded, err := expandEnvVars(v)
		if err != nil {
			return fmt.Errorf("%s: headers[%s]: %w", where, k, err)
		}
		s.Headers[k] = expanded
	}

	if s.Width < 0 || s.Height < 0 || s.MinHeight < 0 {
		return fmt.Errorf("%s: width, height and min_height cannot be negative", where)
	}
	return nil
}

func validatePollDelay(d Duration) error {
	if d.Duration() < minPollDelay || d.Duration() > maxPollDelay {
		return fmt.Errorf("poll_delay must be between %s and %s, got %s", minPollDelay, maxPollDelay, d.Duration())
	}
	return nil
}

func validateURL(raw string) error {
	parsedURL, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if parsedURL.Scheme == "" {
		return errors.New("url must have a scheme (http:// or https://)")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", parsedURL.Scheme)
	}
	return nil
}
