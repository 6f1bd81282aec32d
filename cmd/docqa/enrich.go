package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docuchat/docqa/config"
	"github.com/docuchat/docqa/enrich"
)

func enrichCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "enrich <file>",
		Short: "Print a document's text with its linked content appended",
		Long: `Enrich reads one document, fetches the content behind every link it
references, and prints the enriched text to stdout. Useful for
inspecting what the Q&A engine will actually see.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnrich(configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")

	return cmd
}

func runEnrich(configPath, path string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}

	enricher, err := enrich.NewEnricher(cfg.Enrich, enrich.NewCache())
	if err != nil {
		return fmt.Errorf("create enricher: %w", err)
	}

	base := filepath.Base(path)
	title := strings.TrimSuffix(base, filepath.Ext(base))

	enriched := enricher.Enrich(context.Background(), string(content), title)
	fmt.Println(enriched)
	return nil
}
