// Binary catalyst is the command-line interface for the catalyst agent.
//
// Usage:
//
//	catalyst interactive [flags]     start an interactive session
//	catalyst query <text> [flags]    process a single query and exit
//
// Flags: --model, --provider, --verbose, --config. Configuration not
// covered by flags comes from catalyst.toml and the environment; see
// internal/config.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nevindra/catalyst"
	"github.com/nevindra/catalyst/internal/config"
	"github.com/nevindra/catalyst/provider/resolve"
)

// agentRunner is the part of the agent the command loop uses.
type agentRunner interface {
	ProcessMessage(ctx context.Context, message string, opts ...catalyst.ProcessOption) (string, error)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return 1
	}

	command := args[0]
	switch command {
	case "interactive", "query":
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		printUsage(stderr)
		return 1
	}

	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	fs.SetOutput(stderr)
	model := fs.String("model", "", "model name (overrides config)")
	providerName := fs.String("provider", "", "provider: azure or gemini (overrides config)")
	verbose := fs.Bool("verbose", false, "log agent internals to stderr")
	configPath := fs.String("config", "", "path to catalyst.toml")
	if err := fs.Parse(args[1:]); err != nil {
		return 1
	}

	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if command == "query" && query == "" {
		fmt.Fprintln(stderr, "query: text argument is required")
		return 1
	}

	cfg := config.Load(*configPath)
	if *providerName != "" {
		cfg.Provider.Name = *providerName
	}
	if *model != "" {
		// Deployment tracked the old model name unless the config pinned
		// its own; keep them in sync on override.
		if cfg.Provider.Deployment == cfg.Provider.Model {
			cfg.Provider.Deployment = *model
		}
		cfg.Provider.Model = *model
	}

	agent, cleanup, err := newAgent(cfg, *verbose, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error initializing agent: %v\n", err)
		return 1
	}
	defer cleanup()

	if command == "interactive" {
		return runInteractive(ctx, agent, stdin, stdout)
	}
	return runQuery(ctx, agent, query, stdout, stderr)
}

func runInteractive(ctx context.Context, agent agentRunner, stdin io.Reader, stdout io.Writer) int {
	fmt.Fprintln(stdout, "Catalyst Agent Interactive Mode")
	fmt.Fprintln(stdout, "Type 'exit' or 'quit' to end the session")
	fmt.Fprintln(stdout)

	scanner := bufio.NewScanner(stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for {
		fmt.Fprint(stdout, "You: ")
		if !scanner.Scan() {
			fmt.Fprintln(stdout)
			fmt.Fprintln(stdout, "Goodbye!")
			return 0
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if lower := strings.ToLower(input); lower == "exit" || lower == "quit" {
			fmt.Fprintln(stdout, "Goodbye!")
			return 0
		}

		response, err := agent.ProcessMessage(ctx, input)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				fmt.Fprintln(stdout)
				fmt.Fprintln(stdout, "Session terminated by user")
				return 0
			}
			fmt.Fprintf(stdout, "Error: %v\n", err)
			continue
		}
		fmt.Fprintf(stdout, "Agent: %s\n\n", response)
	}
}

func runQuery(ctx context.Context, agent agentRunner, query string, stdout, stderr io.Writer) int {
	response, err := agent.ProcessMessage(ctx, query)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, response)
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage: catalyst <command> [flags]

Commands:
  interactive     start an interactive session
  query <text>    process a single query and print the response

Flags:
  --model      model name (overrides config)
  --provider   provider: azure or gemini (overrides config)
  --verbose    log agent internals to stderr
  --config     path to catalyst.toml
`)
}

func newAgent(cfg config.Config, verbose bool, logOut io.Writer) (*catalyst.Agent, func(), error) {
	provider, err := resolve.Provider(resolve.Config{
		Provider:   cfg.Provider.Name,
		APIKey:     cfg.Provider.APIKey,
		Model:      cfg.Provider.Model,
		Endpoint:   cfg.Provider.Endpoint,
		Deployment: cfg.Provider.Deployment,
		APIVersion: cfg.Provider.APIVersion,
	})
	if err != nil {
		return nil, nil, err
	}

	opts := []catalyst.Option{
		catalyst.WithVerbose(verbose),
		catalyst.WithMemoryCapacity(cfg.Memory.ShortTermCapacity),
		catalyst.WithStoragePath(cfg.Storage.BlobPath),
		catalyst.WithTemperature(cfg.Provider.Temperature),
		catalyst.WithMaxTokens(cfg.Provider.MaxTokens),
		catalyst.WithTools(defaultTools(cfg.Storage.BlobPath)...),
	}
	if verbose {
		opts = append(opts, catalyst.WithLogger(slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))))
	}

	cleanup := func() {}
	if cfg.Memory.LongTerm {
		store, closeStore, err := openStore(context.Background(), cfg.Memory)
		if err != nil {
			return nil, nil, fmt.Errorf("open long-term store: %w", err)
		}
		opts = append(opts, catalyst.WithLongTermStore(store))
		cleanup = closeStore
	}

	agent, err := catalyst.New(provider, opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return agent, cleanup, nil
}
