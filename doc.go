// Package catalyst is an agentic task runner for building plan-and-execute
// AI agents in Go.
//
// An agent turns a natural-language goal into an executable plan, runs the
// plan step by step (calling registered tools or falling back to language
// generation), re-plans after every step based on what actually happened,
// and synthesizes a final response from the outcome.
//
// # Quick Start
//
// Create an agent with a provider and a set of tools:
//
//	provider := azure.NewProvider(apiKey, endpoint, deployment)
//
//	agent, err := catalyst.New(provider,
//		catalyst.WithTools(
//			calculator.New(),
//			file.NewReader("./blobs"),
//		),
//		catalyst.WithLongTermStore(jsonfile.New("memory.json")),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	response, err := agent.ProcessMessage(ctx, "What is 2 + 3?")
//
// # Core Interfaces
//
// The root package defines the contracts that all components implement:
//
//   - [Provider] — LM backend (chat completion, token estimation)
//   - [Tool] — pluggable capability executed by plan steps
//   - [LongTermStore] — durable memory persistence
//   - [ErrorRecoverer] — tool-declared recovery for failed executions
//   - [Guard] — input screening before a message reaches the agent
//
// # Included Implementations
//
// Providers: provider/azure (Azure OpenAI), provider/gemini (Google Gemini).
// Storage: store/jsonfile (local JSON), store/sqlite (pure-Go SQLite),
// store/postgres (pgx pool).
// Tools: tools/calculator, tools/file, tools/web, tools/code.
//
// See the cmd/catalyst directory for a complete reference CLI and
// cmd/catalyst-web for the HTTP frontend with SSE streaming.
package catalyst
