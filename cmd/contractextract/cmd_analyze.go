package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"contractextract/internal/analyzer"
	"contractextract/internal/config"
	"contractextract/internal/llm"
	"contractextract/internal/report"
	"contractextract/internal/rulepack"
)

var analyzeFlags struct {
	packDir string
	packID  string
	outDir  string
	format  string
	workers int
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>...",
	Short: "Analyze contract documents against the loaded rule packs",
	Long: `Analyze one or more documents and write a compliance report per document.

Usage:
  contractextract analyze lease.pdf
  contractextract analyze --packs ./packs --format markdown contracts/*.pdf

The Anthropic API key is read from ANTHROPIC_API_KEY. Without it the
keyword classifier still runs but LLM field extraction is disabled.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.StringVar(&analyzeFlags.packDir, "packs", "packs", "Rule pack directory")
	f.StringVar(&analyzeFlags.packID, "pack", "", "Force a rule pack, skipping classification")
	f.StringVarP(&analyzeFlags.outDir, "out", "o", "", "Output directory (default: report next to each input)")
	f.StringVar(&analyzeFlags.format, "format", "json", "Report format: json, markdown, html")
	f.IntVar(&analyzeFlags.workers, "workers", 4, "Concurrent documents")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	switch analyzeFlags.format {
	case "json", "markdown", "html":
	default:
		return fmt.Errorf("unknown format: %s (available: json, markdown, html)", analyzeFlags.format)
	}

	log := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))

	packs, err := rulepack.LoadDir(analyzeFlags.packDir)
	if err != nil {
		return fmt.Errorf("load rule packs: %w", err)
	}

	cfg := config.Load()
	if analyzeFlags.workers > 0 {
		cfg.BatchWorkers = analyzeFlags.workers
	}

	var client llm.Client
	if cfg.AnthropicAPIKey != "" {
		c := llm.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.LLMTimeout)
		defer c.Close()
		client = c
	}

	a := analyzer.New(cfg, packs, client, log)

	inputs := make([]analyzer.Input, 0, len(args))
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		inputs = append(inputs, analyzer.Input{
			Name:   filepath.Base(path),
			Data:   data,
			PackID: analyzeFlags.packID,
		})
	}

	if analyzeFlags.outDir != "" {
		if err := os.MkdirAll(analyzeFlags.outDir, 0755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	outcomes := a.AnalyzeBatch(context.Background(), inputs)

	failed := 0
	for i, out := range outcomes {
		if out.Err != "" {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", out.Name, out.Err)
			continue
		}

		content, ext, err := renderReport(out.Report, analyzeFlags.format)
		if err != nil {
			return err
		}

		path := reportPath(args[i], analyzeFlags.outDir, ext)
		if err := os.WriteFile(path, content, 0600); err != nil {
			return fmt.Errorf("write report: %w", err)
		}

		status := "PASS"
		if !out.Report.OverallPassed {
			status = "FAIL"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%s) -> %s\n", out.Name, status, packLabel(out.Report), path)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d document(s) could not be analyzed", failed, len(outcomes))
	}
	return nil
}

func renderReport(rep *report.Report, format string) ([]byte, string, error) {
	switch format {
	case "markdown":
		return []byte(report.RenderMarkdown(rep)), ".md", nil
	case "html":
		html, err := report.RenderHTML(rep)
		if err != nil {
			return nil, "", fmt.Errorf("render html: %w", err)
		}
		return []byte(html), ".html", nil
	default:
		data, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			return nil, "", fmt.Errorf("marshal report: %w", err)
		}
		return data, ".json", nil
	}
}

func reportPath(inputPath, outDir, ext string) string {
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath)) + ".report" + ext
	if outDir != "" {
		return filepath.Join(outDir, base)
	}
	return filepath.Join(filepath.Dir(inputPath), base)
}

func packLabel(rep *report.Report) string {
	if rep.Classification.PackID == "" {
		return "unclassified"
	}
	return rep.Classification.PackID
}
