package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ecu-analyzer/backend/internal/config"
	"github.com/ecu-analyzer/backend/internal/interchange"
	"github.com/ecu-analyzer/backend/internal/kpi"
	"github.com/ecu-analyzer/backend/internal/loader"
	"github.com/ecu-analyzer/backend/internal/logging"
	"github.com/ecu-analyzer/backend/internal/models"
	"github.com/ecu-analyzer/backend/internal/pipeline"
	"github.com/spf13/cobra"
	"github.com/vmihailenco/msgpack/v5"
)

var parseCmd = &cobra.Command{
	Use:   "parse FILE...",
	Short: "Convert log files into unified messages",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runParse,
}

var kpiCmd = &cobra.Command{
	Use:   "kpi FILE...",
	Short: "Evaluate a KPI suite against log files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runKPI,
}

var extractCmd = &cobra.Command{
	Use:   "extract FILE...",
	Short: "Print the lines matching each keyword",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runExtract,
}

func init() {
	parseCmd.Flags().StringP("output", "o", "", "Write messages to this file instead of stdout")
	parseCmd.Flags().String("format", "json", "Output format (json, msgpack)")
	parseCmd.Flags().Int("limit", 0, "Only write the first N messages (0 = all)")
	parseCmd.Flags().Int("year", 0, "Session year for timestamps without one (0 = config)")
	parseCmd.Flags().Bool("diagnostics", false, "Print the diagnostics report to stderr")

	kpiCmd.Flags().String("suite", "", "Suite name (qnx, caros, android)")
	kpiCmd.Flags().String("suites-file", "", "YAML suites file layered over the built-in suites")
	kpiCmd.MarkFlagRequired("suite")

	extractCmd.Flags().StringSliceP("keyword", "k", nil, "Keyword to extract (repeatable)")
	extractCmd.MarkFlagRequired("keyword")
}

// loadOfflineConfig is loadConfig without creating a missing file.
func loadOfflineConfig(cmd *cobra.Command) (*config.AppConfig, error) {
	path, _ := cmd.Flags().GetString("config")
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfg := config.DefaultConfig()
		logging.Init(logging.Config{Level: logging.ParseLevel(cfg.Logging.Level)})
		return cfg, nil
	}
	cfg, _, err := loadConfig(cmd)
	return cfg, err
}

// readFiles loads the named files and concatenates them in argument order.
func readFiles(ctx context.Context, cfg *config.AppConfig, paths []string) (string, error) {
	sources := make([]loader.Source, len(paths))
	for i, p := range paths {
		sources[i] = loader.File(p, filepath.Base(p))
	}

	batch, err := loader.NewReader(readerOptions(cfg)).Read(ctx, sources)
	if err != nil {
		if batch != nil {
			for _, fe := range batch.Errors() {
				fmt.Fprintf(os.Stderr, "  %v\n", fe)
			}
		}
		return "", err
	}
	log := logging.WithComponent("cli")
	for _, fe := range batch.Errors() {
		log.Warn().Str("file", fe.Name).Err(fe.Err).Msg("file skipped")
	}
	return batch.Text(), nil
}

func runParse(cmd *cobra.Command, args []string) error {
	cfg, err := loadOfflineConfig(cmd)
	if err != nil {
		return err
	}
	output, _ := cmd.Flags().GetString("output")
	format, _ := cmd.Flags().GetString("format")
	limit, _ := cmd.Flags().GetInt("limit")
	year, _ := cmd.Flags().GetInt("year")
	showDiag, _ := cmd.Flags().GetBool("diagnostics")

	if format != "json" && format != "msgpack" {
		return fmt.Errorf("invalid format %q (json, msgpack)", format)
	}
	if limit < 0 {
		return fmt.Errorf("invalid limit %d", limit)
	}

	text, err := readFiles(cmd.Context(), cfg, args)
	if err != nil {
		return err
	}

	pcfg := pipelineConfig(cfg)
	if year > 0 {
		pcfg.SessionYear = year
	}
	res, err := pipeline.New(pcfg).Run(text)
	if showDiag && res != nil && res.Diagnostics != nil {
		printDiagnostics(os.Stderr, res.Diagnostics)
	}
	if err != nil {
		return err
	}

	msgs := res.Messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if format == "msgpack" {
		return msgpack.NewEncoder(w).Encode(msgs)
	}
	return interchange.Encode(w, msgs)
}

func printDiagnostics(w io.Writer, d *models.Diagnostics) {
	fmt.Fprintf(w, "lines=%d records=%d messages=%d\n", d.Lines, d.Records, d.Messages)
	for _, kind := range models.DiagnosticKinds {
		s, ok := d.Kinds[kind]
		if !ok || s.Count == 0 {
			continue
		}
		fmt.Fprintf(w, "  %-20s %d\n", kind, s.Count)
		for _, sample := range s.Samples {
			fmt.Fprintf(w, "      %s\n", sample)
		}
	}
}

func runKPI(cmd *cobra.Command, args []string) error {
	cfg, err := loadOfflineConfig(cmd)
	if err != nil {
		return err
	}
	suiteName, _ := cmd.Flags().GetString("suite")
	suitesFile, _ := cmd.Flags().GetString("suites-file")
	if suitesFile != "" {
		cfg.KPI.SuitesFile = suitesFile
	}

	board, err := loadBoard(cfg)
	if err != nil {
		return fmt.Errorf("failed to load kpi suites: %w", err)
	}
	suite, err := board.Suites().Get(suiteName)
	if err != nil {
		return fmt.Errorf("%w (have %s)", err, strings.Join(board.Suites().Names(), ", "))
	}

	text, err := readFiles(cmd.Context(), cfg, args)
	if err != nil {
		return err
	}

	statuses := kpi.Check(text, suite.KPIs, time.Now())

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KPI\tSTATUS\tACTUAL\tTARGET")
	failed := 0
	for _, st := range statuses {
		if st.Status == models.KPIFail {
			failed++
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", st.Name, st.Status, st.ActualValue, st.TargetValue)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d KPIs failed", failed, len(statuses))
	}
	return nil
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := loadOfflineConfig(cmd)
	if err != nil {
		return err
	}
	keywords, _ := cmd.Flags().GetStringSlice("keyword")

	text, err := readFiles(cmd.Context(), cfg, args)
	if err != nil {
		return err
	}

	_, err = fmt.Fprint(os.Stdout, kpi.FormatBlocks(kpi.Extract(text, keywords)))
	return err
}
