package code

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/nevindra/catalyst"
)

// maxTimeoutSeconds caps the per-call timeout parameter.
const maxTimeoutSeconds = 300

// blockedPatterns are checked before execution to reject obviously
// dangerous code.
var blockedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`os\.system\s*\(`),
	regexp.MustCompile(`subprocess\.\w+\s*\(`),
}

// Executor runs Python code in a subprocess and captures its output.
type Executor struct {
	pythonBin string
	cfg       runnerConfig
}

var _ catalyst.Tool = (*Executor)(nil)

// NewExecutor creates an execute_python tool using the given Python
// binary (e.g. "python3").
func NewExecutor(pythonBin string, opts ...Option) *Executor {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return &Executor{pythonBin: pythonBin, cfg: cfg}
}

func (e *Executor) Name() string { return "execute_python" }

func (e *Executor) Description() string {
	return "Executes Python code in a subprocess and returns its stdout and stderr. Use for calculations, data processing, and quick scripts."
}

func (e *Executor) Schema() catalyst.Schema {
	return catalyst.Schema{
		Params: []catalyst.Param{
			{Name: "code", Type: "string", Description: "The Python code to execute", Required: true},
			{Name: "timeout", Type: "integer", Description: "Timeout in seconds. Defaults to 30, capped at 300"},
		},
		Example: `execute_python(code="print(2 + 2)")`,
	}
}

func (e *Executor) Execute(ctx context.Context, args map[string]any) (any, error) {
	code, _ := args["code"].(string)
	if code == "" {
		return nil, fmt.Errorf("missing required parameter: code")
	}

	// Pre-execution blocklist check.
	for _, pat := range blockedPatterns {
		if pat.MatchString(code) {
			return nil, fmt.Errorf("blocked: code contains prohibited pattern: %s", pat.String())
		}
	}

	timeout := e.cfg.timeout
	if secs, ok := toInt(args["timeout"]); ok && secs > 0 {
		if secs > maxTimeoutSeconds {
			secs = maxTimeoutSeconds
		}
		timeout = time.Duration(secs) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.pythonBin, "-")
	cmd.Stdin = strings.NewReader(code)
	cmd.Dir = e.workDir()
	cmd.Env = minimalEnv()

	stdout := &cappedBuffer{max: e.cfg.maxOutput}
	stderr := &cappedBuffer{max: e.cfg.maxOutput}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("execution timed out after %s", timeout)
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			// Include stderr so recovery handlers can match on it.
			return nil, fmt.Errorf("exit code %d: %s", exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("execution failed: %v", err)
	}

	return map[string]any{
		"stdout": stdout.String(),
		"stderr": stderr.String(),
	}, nil
}

func (e *Executor) workDir() string {
	if e.cfg.workspace != "" {
		return e.cfg.workspace
	}
	return os.TempDir()
}

// minimalEnv gives the subprocess just enough to run Python.
func minimalEnv() []string {
	return []string{
		"PATH=" + os.Getenv("PATH"),
		"HOME=" + os.Getenv("HOME"),
		"LANG=en_US.UTF-8",
	}
}

// cappedBuffer limits captured output to max bytes. Writes past the cap
// are dropped but reported as fully written so the subprocess copy loop
// does not fail with a short write.
type cappedBuffer struct {
	buf       strings.Builder
	max       int
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if b.buf.Len() < b.max {
		if remaining := b.max - b.buf.Len(); len(p) > remaining {
			p = p[:remaining]
			b.truncated = true
		}
		b.buf.Write(p)
	} else if n > 0 {
		b.truncated = true
	}
	return n, nil
}

func (b *cappedBuffer) String() string {
	if b.truncated {
		return b.buf.String() + "\n... (truncated)"
	}
	return b.buf.String()
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}
