package code

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/nevindra/catalyst"
)

// missingModule extracts the module name from Python import errors like
// "ModuleNotFoundError: No module named 'requests'".
var missingModule = regexp.MustCompile(`No module named '([^']+)'`)

// Installer installs Python packages with pip. It publishes a recovery
// rule so failed executions with a missing module get an install step.
type Installer struct {
	pythonBin string
	cfg       runnerConfig
}

var (
	_ catalyst.Tool             = (*Installer)(nil)
	_ catalyst.RecoveryProvider = (*Installer)(nil)
)

// NewInstaller creates a package_installer tool using the given Python
// binary. The default timeout is two minutes.
func NewInstaller(pythonBin string, opts ...Option) *Installer {
	cfg := defaultConfig()
	cfg.timeout = 2 * time.Minute
	for _, o := range opts {
		o(&cfg)
	}
	return &Installer{pythonBin: pythonBin, cfg: cfg}
}

func (i *Installer) Name() string { return "package_installer" }

func (i *Installer) Description() string {
	return "Installs Python packages with pip. Use when code execution fails because a module is missing."
}

func (i *Installer) Schema() catalyst.Schema {
	return catalyst.Schema{
		Params: []catalyst.Param{
			{Name: "packages", Type: "array", Description: "Package names to install", Required: true},
			{Name: "upgrade", Type: "boolean", Description: "Upgrade packages that are already installed. Defaults to false"},
		},
		Example: `package_installer(packages=["requests"])`,
	}
}

func (i *Installer) Execute(ctx context.Context, args map[string]any) (any, error) {
	packages, err := toStringSlice(args["packages"])
	if err != nil || len(packages) == 0 {
		return nil, fmt.Errorf("missing required parameter: packages")
	}
	for _, p := range packages {
		// Names starting with a dash would be read as pip options.
		if strings.HasPrefix(p, "-") || strings.ContainsAny(p, " \t\n") {
			return nil, fmt.Errorf("invalid package name: %s", p)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, i.cfg.timeout)
	defer cancel()

	pipArgs := []string{"-m", "pip", "install"}
	if upgrade, _ := args["upgrade"].(bool); upgrade {
		pipArgs = append(pipArgs, "--upgrade")
	}
	pipArgs = append(pipArgs, packages...)

	cmd := exec.CommandContext(ctx, i.pythonBin, pipArgs...)
	output := &cappedBuffer{max: i.cfg.maxOutput}
	cmd.Stdout = output
	cmd.Stderr = output

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("pip install timed out after %s", i.cfg.timeout)
		}
		return nil, fmt.Errorf("pip install failed: %s", strings.TrimSpace(output.String()))
	}

	return fmt.Sprintf("Successfully installed: %s", strings.Join(packages, ", ")), nil
}

// RecoveryRules proposes an install step when an execution failure names
// a missing module.
func (i *Installer) RecoveryRules() []catalyst.RecoveryRule {
	return []catalyst.RecoveryRule{{
		Pattern: "No module named",
		Recoverer: catalyst.ErrorRecovererFunc(func(failed *catalyst.PlanStep, execErr error) *catalyst.PlanStep {
			module := extractModule(execErr.Error())
			if module == "" {
				return nil
			}
			return catalyst.NewStep(
				"Install missing Python module "+module,
				"package_installer",
				map[string]any{"packages": []any{module}},
			)
		}),
	}}
}

// extractModule pulls the module name out of an import error. Quoted
// names are preferred; older unquoted errors fall back to the first
// token after the marker.
func extractModule(text string) string {
	if m := missingModule.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	_, after, ok := strings.Cut(text, "No module named ")
	if !ok {
		return ""
	}
	fields := strings.Fields(after)
	if len(fields) == 0 {
		return ""
	}
	return strings.Trim(fields[0], `'"`)
}

func toStringSlice(v any) ([]string, error) {
	switch vv := v.(type) {
	case []string:
		return vv, nil
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected string, got %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		if vv == "" {
			return nil, fmt.Errorf("empty package name")
		}
		return []string{vv}, nil
	default:
		return nil, fmt.Errorf("expected list of strings, got %T", v)
	}
}
