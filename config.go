package catalyst

import (
	"log/slog"
	"time"
)

// AgentConfig carries the tunable settings shared by the library and the
// binaries. The zero value is not useful; start from DefaultConfig.
type AgentConfig struct {
	ModelName         string  `toml:"model" json:"model"`
	Provider          string  `toml:"provider" json:"provider"`
	Temperature       float64 `toml:"temperature" json:"temperature"`
	MaxTokens         int     `toml:"max_tokens" json:"max_tokens"`
	PlanningEnabled   bool    `toml:"planning_enabled" json:"planning_enabled"`
	Verbose           bool    `toml:"verbose" json:"verbose"`
	ShortTermCapacity int     `toml:"short_term_capacity" json:"short_term_capacity"`
	LongTermEnabled   bool    `toml:"long_term_enabled" json:"long_term_enabled"`
	BlobStoragePath   string  `toml:"blob_storage_path" json:"blob_storage_path"`
}

// DefaultConfig returns the stock agent configuration.
func DefaultConfig() AgentConfig {
	return AgentConfig{
		ModelName:         "gpt-4o",
		Provider:          "azure",
		Temperature:       0.7,
		MaxTokens:         1000,
		PlanningEnabled:   true,
		Verbose:           false,
		ShortTermCapacity: 10,
		LongTermEnabled:   true,
		BlobStoragePath:   "./",
	}
}

type agentOptions struct {
	config      AgentConfig
	tools       []Tool
	guards      []Guard
	bus         *Bus
	store       LongTermStore
	logger      *slog.Logger
	toolTimeout time.Duration
	currentDate string
}

// Option configures an Agent during construction.
type Option func(*agentOptions)

// WithConfig replaces the default AgentConfig wholesale.
func WithConfig(cfg AgentConfig) Option {
	return func(o *agentOptions) { o.config = cfg }
}

// WithTools registers tools with the agent's registry at construction.
func WithTools(tools ...Tool) Option {
	return func(o *agentOptions) { o.tools = append(o.tools, tools...) }
}

// WithGuards installs input guards, checked in order before each message
// is processed.
func WithGuards(guards ...Guard) Option {
	return func(o *agentOptions) { o.guards = append(o.guards, guards...) }
}

// WithEventBus shares an externally owned event bus. When omitted the
// agent creates its own.
func WithEventBus(bus *Bus) Option {
	return func(o *agentOptions) { o.bus = bus }
}

// WithLongTermStore attaches durable memory. Without a store, important
// entries stay in the short-term ring only.
func WithLongTermStore(store LongTermStore) Option {
	return func(o *agentOptions) { o.store = store }
}

// WithLogger sets the structured logger for the agent and every component
// it constructs. Default: no-op logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *agentOptions) { o.logger = l }
}

// WithMemoryCapacity sets the short-term memory ring size.
func WithMemoryCapacity(n int) Option {
	return func(o *agentOptions) { o.config.ShortTermCapacity = n }
}

// WithTemperature sets the sampling temperature for LLM calls.
func WithTemperature(t float64) Option {
	return func(o *agentOptions) { o.config.Temperature = t }
}

// WithMaxTokens caps completion length for LLM calls.
func WithMaxTokens(n int) Option {
	return func(o *agentOptions) { o.config.MaxTokens = n }
}

// WithStoragePath sets the blob storage root referenced in prompts and
// used by file tools.
func WithStoragePath(path string) Option {
	return func(o *agentOptions) { o.config.BlobStoragePath = path }
}

// WithPlanning toggles the planning engine. When disabled, messages go
// straight to response generation.
func WithPlanning(enabled bool) Option {
	return func(o *agentOptions) { o.config.PlanningEnabled = enabled }
}

// WithVerbose includes the generated plan in CanAccomplish assessments.
func WithVerbose(enabled bool) Option {
	return func(o *agentOptions) { o.config.Verbose = enabled }
}

// WithToolTimeout bounds each tool execution. Default 30s.
func WithToolTimeout(d time.Duration) Option {
	return func(o *agentOptions) { o.toolTimeout = d }
}

// WithCurrentDate pins the date injected into prompts, in the form
// "January 2, 2006". Default: today. Mainly for tests.
func WithCurrentDate(date string) Option {
	return func(o *agentOptions) { o.currentDate = date }
}
