// Package main provides the docqa binary entry point.
// Docqa answers questions from uploaded documents, enriching them with the
// content of any links they reference.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "docqa"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Document Q&A with link-following enrichment",
		Long: `Docqa ingests plain-text and markdown documents, fetches the content
behind any links they reference, and answers questions strictly from
that material via an OpenAI-compatible LLM endpoint.

Link content is fetched once per URL with retries, cleaned of HTML
chrome, bounded in size, and appended to the document before chunking.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			configureLogging(logLevel)
		},
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(askCmd())
	cmd.AddCommand(enrichCmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

// configureLogging installs the default slog logger at the requested level.
func configureLogging(logLevel string) {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}
