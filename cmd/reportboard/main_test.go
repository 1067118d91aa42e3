package main

import (
	"bytes"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"

	"github.com/jpalmerr/reportboard/internal/mockjobs"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// execute runs the root command with args and returns captured stdout.
// Flag values are reset afterwards since cobra keeps them between runs.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		resetFlags(rootCmd.PersistentFlags())
		for _, c := range rootCmd.Commands() {
			resetFlags(c.Flags())
		}
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlags(fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	})
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reportboard.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestVersion(t *testing.T) {
	output, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version command error = %v", err)
	}
	if !strings.Contains(output, "reportboard dev") {
		t.Errorf("output = %q, want version line", output)
	}
}

func TestRunValidate_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
port: 8080
poll_delay: 2s
widgets:
  - id: hosts
    url: https://reports.example.com/reports/hosts/start
    renderer: table
grids:
  - id: traffic
    url_template: "https://reports.example.com/reports/traffic/start?site={{.site}}"
    dimensions:
      site: [bos, sfo]
`)

	output, err := execute(t, "validate", "-c", configPath)
	if err != nil {
		t.Fatalf("validate command error = %v", err)
	}

	expectedPhrases := []string{
		"Config is valid!",
		"Port:            8080",
		"Poll delay:      2s",
		"Max concurrency: 10",
		"1 direct + 2 from grids = 3 total",
	}
	for _, phrase := range expectedPhrases {
		if !strings.Contains(output, phrase) {
			t.Errorf("output missing %q\nGot: %s", phrase, output)
		}
	}
}

func TestRunValidate_InvalidConfig(t *testing.T) {
	configPath := writeConfig(t, `
widgets:
  - id: hosts
    url: https://example.com
    renderer: sparkline
`)

	_, err := execute(t, "validate", "-c", configPath)
	if err == nil {
		t.Fatal("validate command expected error for invalid config, got nil")
	}
	if !strings.Contains(err.Error(), "unknown renderer") {
		t.Errorf("error should mention 'unknown renderer', got: %v", err)
	}
}

func TestRunValidate_MissingFile(t *testing.T) {
	_, err := execute(t, "validate", "-c", "/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("validate command expected error for missing file, got nil")
	}
	if !strings.Contains(err.Error(), "failed to read") {
		t.Errorf("error should mention 'failed to read', got: %v", err)
	}
}

func TestRunValidate_EnvFile(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(envPath, []byte("REPORTBOARD_CLI_TEST_HOST=reports.internal\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("REPORTBOARD_CLI_TEST_HOST", "")
	os.Unsetenv("REPORTBOARD_CLI_TEST_HOST")

	configPath := writeConfig(t, `
widgets:
  - id: hosts
    url: https://${REPORTBOARD_CLI_TEST_HOST}/reports/hosts/start
`)

	if _, err := execute(t, "validate", "-c", configPath); err == nil {
		t.Fatal("expected error without env file, got nil")
	}
	if _, err := execute(t, "validate", "-c", configPath, "--env-file", envPath); err != nil {
		t.Fatalf("validate with env file error = %v", err)
	}
}

func TestRunOnce(t *testing.T) {
	backend := mockjobs.New(mockjobs.PortalCodes)
	backend.RegisterDemo()
	srv := httptest.NewServer(backend.Handler())
	t.Cleanup(srv.Close)

	configPath := writeConfig(t, `
poll_delay: 10ms
widgets:
  - id: hosts
    url: `+srv.URL+`/reports/hosts/start
    renderer: table
  - id: summary
    url: `+srv.URL+`/reports/summary/start
    widget_param: summary
`)

	output, err := execute(t, "run", "-c", configPath, "--timeout", "10s", "--html")
	if err != nil {
		t.Fatalf("run command error = %v\n%s", err, output)
	}

	lines := strings.Split(output, "\n")
	if fields := strings.Fields(lines[1]); len(fields) < 2 || fields[0] != "hosts" || fields[1] != "complete" {
		t.Errorf("hosts line = %q", lines[1])
	}
	if fields := strings.Fields(lines[2]); len(fields) < 2 || fields[0] != "summary" || fields[1] != "complete" {
		t.Errorf("summary line = %q", lines[2])
	}
	if !strings.Contains(output, "<td>10.0.0.1</td>") {
		t.Errorf("output missing rendered table\nGot: %s", output)
	}
	if !strings.Contains(output, "Summary for <b>summary</b>") {
		t.Errorf("output missing rendered summary\nGot: %s", output)
	}
}

func TestRunOnce_FailedWidget(t *testing.T) {
	backend := mockjobs.New(mockjobs.PortalCodes)
	backend.RegisterDemo()
	srv := httptest.NewServer(backend.Handler())
	t.Cleanup(srv.Close)

	configPath := writeConfig(t, `
poll_delay: 10ms
widgets:
  - id: summary
    url: `+srv.URL+`/reports/summary/start
  - id: broken
    url: `+srv.URL+`/reports/broken/start
`)

	output, err := execute(t, "run", "-c", configPath, "--timeout", "10s")
	if err == nil {
		t.Fatal("run command expected error for failed widget, got nil")
	}
	if !strings.Contains(err.Error(), "1 of 2 widgets failed") {
		t.Errorf("error = %v", err)
	}
	if !strings.Contains(output, "report database unavailable") {
		t.Errorf("output missing server message\nGot: %s", output)
	}
}
