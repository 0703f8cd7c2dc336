// Package code provides the execute_python and package_installer tools.
package code

import "time"

// Option configures an Executor or Installer.
type Option func(*runnerConfig)

type runnerConfig struct {
	timeout   time.Duration
	maxOutput int
	workspace string
}

func defaultConfig() runnerConfig {
	return runnerConfig{
		timeout:   30 * time.Second,
		maxOutput: 64 * 1024, // 64KB
	}
}

// WithTimeout sets the maximum execution duration.
// Default: 30s for execution, 2m for installs.
func WithTimeout(d time.Duration) Option {
	return func(c *runnerConfig) { c.timeout = d }
}

// WithMaxOutput sets the maximum captured output size in bytes.
// Output beyond this limit is truncated. Default: 64KB.
func WithMaxOutput(bytes int) Option {
	return func(c *runnerConfig) { c.maxOutput = bytes }
}

// WithWorkspace sets the working directory for subprocesses.
// Default: the system temp directory.
func WithWorkspace(dir string) Option {
	return func(c *runnerConfig) { c.workspace = dir }
}
