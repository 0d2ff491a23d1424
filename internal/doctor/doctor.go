// Package doctor runs readiness diagnostics for the tools, model files, and
// environment a listen session depends on.
package doctor

import (
	"fmt"
	"os"
	"strings"

	"github.com/ewhitt/murmur/internal/config"
	"github.com/ewhitt/murmur/internal/ipc"
	"github.com/ewhitt/murmur/internal/proc"
)

// Check is one doctor assertion result. Optional checks are reported but do
// not fail the report.
type Check struct {
	Name     string
	Pass     bool
	Optional bool
	Message  string
}

// Report is the full doctor output.
type Report struct {
	Checks []Check
}

// OK returns true when every required check passes.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass && !check.Optional {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		switch {
		case !check.Pass && check.Optional:
			status = "SKIP"
		case !check.Pass:
			status = "FAIL"
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", status, check.Name, check.Message)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes all checks against a loaded configuration.
func Run(cfg config.Config) Report {
	checks := []Check{
		checkBinary("recognizer", binaryOr(cfg.StreamBinary, "whisper-stream"), false),
		checkBinary("transcriber", binaryOr(cfg.OneShotBinary, "whisper-cli"), false),
		checkBinary("recorder", binaryOr(cfg.RecordBinary, "sox"), false),
		checkBinary("indicator", binaryOr(cfg.Indicator.Binary, "murmur-indicator"), true),
		checkModel(cfg.Model),
		checkRuntimeDir(),
	}
	return Report{Checks: checks}
}

func binaryOr(configured, fallback string) string {
	if strings.TrimSpace(configured) != "" {
		return configured
	}
	return fallback
}

func checkBinary(name, bin string, optional bool) Check {
	path, err := proc.LookPath(bin)
	if err != nil {
		return Check{Name: name, Optional: optional, Message: fmt.Sprintf("%s not found in PATH", bin)}
	}
	return Check{Name: name, Pass: true, Optional: optional, Message: fmt.Sprintf("%s at %s", bin, path)}
}

func checkModel(model string) Check {
	path, err := config.ModelPath(model)
	if err != nil {
		return Check{Name: "model", Message: err.Error()}
	}
	info, err := os.Stat(path)
	if err != nil {
		return Check{Name: "model", Message: fmt.Sprintf("missing %s, download a ggml model there", path)}
	}
	return Check{Name: "model", Pass: true, Message: fmt.Sprintf("%s (%d MB)", path, info.Size()>>20)}
}

func checkRuntimeDir() Check {
	path, err := ipc.SocketPath()
	if err != nil {
		return Check{Name: "runtime", Message: err.Error()}
	}
	return Check{Name: "runtime", Pass: true, Message: "control socket at " + path}
}
