package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docuchat/docqa/config"
	"github.com/docuchat/docqa/enrich"
	"github.com/docuchat/docqa/llm"
	"github.com/docuchat/docqa/qa"
	"github.com/docuchat/docqa/source/chunker"
	"github.com/docuchat/docqa/store"
)

func askCmd() *cobra.Command {
	var (
		configPath string
		docsDir    string
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from a directory of documents",
		Long: `Ask ingests every .txt and .md file under the documents directory,
enriches their links, and answers the question in one shot.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(configPath, docsDir, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.Flags().StringVarP(&docsDir, "docs", "d", ".", "Directory of documents to load")

	return cmd
}

func runAsk(configPath, docsDir, question string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.Default()
	ctx := context.Background()

	enricher, err := enrich.NewEnricher(cfg.Enrich, enrich.NewCache())
	if err != nil {
		return fmt.Errorf("create enricher: %w", err)
	}
	ch, err := chunker.New(cfg.Chunker)
	if err != nil {
		return fmt.Errorf("create chunker: %w", err)
	}
	st := store.New(enricher, ch, logger)

	if err := loadDocuments(ctx, st, docsDir); err != nil {
		return err
	}
	logger.Info("Documents loaded", "dir", docsDir, "count", st.Len())

	client, err := llm.NewClient(cfg.LLM)
	if err != nil {
		return fmt.Errorf("create llm client: %w", err)
	}
	engine := qa.NewEngine(st, client)

	answer, err := engine.Ask(ctx, question)
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}

	fmt.Println(answer.Text)
	if len(answer.Sources) > 0 {
		fmt.Printf("\nSources: %s\n", strings.Join(answer.Sources, ", "))
	}
	return nil
}

// loadDocuments ingests every .txt and .md file under dir.
func loadDocuments(ctx context.Context, st *store.Store, dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			base := filepath.Base(path)
			if path != dir && strings.HasPrefix(base, ".") {
				return filepath.SkipDir
			}
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".txt" && ext != ".md" && ext != ".markdown" {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		base := filepath.Base(path)
		title := strings.TrimSuffix(base, filepath.Ext(base))
		if _, err := st.Add(ctx, title, base, string(content)); err != nil {
			return fmt.Errorf("ingest %s: %w", path, err)
		}
		return nil
	})
}
