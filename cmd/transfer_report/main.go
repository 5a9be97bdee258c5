package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"

	config "stock-transfer-api/configs"
	"stock-transfer-api/pkg/logger"
	"stock-transfer-api/pkg/models"
	"stock-transfer-api/pkg/services"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// options コマンドライン引数（未指定の項目は環境変数の設定値を使う）
type options struct {
	Input       string
	Output      string
	Locations   []string
	HeaderRow   int
	Sheet       string
	Placeholder string
	Workers     int
	Top         int
	JSON        bool
}

func parseFlags(args []string, cfg *config.Config) (*options, error) {
	opts := &options{}
	fs := pflag.NewFlagSet("transfer_report", pflag.ContinueOnError)
	fs.StringVarP(&opts.Input, "input", "i", "", "sales/stock report (.xlsx or .csv)")
	fs.StringVarP(&opts.Output, "output", "o", services.ExportFileName, "suggestion workbook to write")
	fs.StringSliceVar(&opts.Locations, "locations", cfg.TransferLocations, "location order, as in the report columns")
	fs.IntVar(&opts.HeaderRow, "header-row", cfg.ReportHeaderRow, "1-based row holding the column header")
	fs.StringVar(&opts.Sheet, "sheet", cfg.ReportSheet, "worksheet to read (default: first)")
	fs.StringVar(&opts.Placeholder, "placeholder", cfg.ReportPlaceholder, "cell text meaning zero")
	fs.IntVar(&opts.Workers, "workers", cfg.EvaluationWorkers, "evaluation workers")
	fs.IntVar(&opts.Top, "top", cfg.TopProducts, "products listed in the summary")
	fs.BoolVar(&opts.JSON, "json", false, "print the analysis as JSON instead of a summary")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if opts.Input == "" && fs.NArg() > 0 {
		opts.Input = fs.Arg(0)
	}
	if opts.Input == "" {
		return nil, fmt.Errorf("an input report is required (--input)")
	}
	return opts, nil
}

// run writes the summary or JSON to stdout; logs go to stderr so stdout stays machine readable.
func run(ctx context.Context, opts *options, stdout, stderr io.Writer, logCfg logger.Config) error {
	log := logger.NewWithWriter(logCfg, stderr)

	locations := make([]models.LocationID, len(opts.Locations))
	for i, loc := range opts.Locations {
		locations[i] = models.LocationID(loc)
	}

	svc, err := services.NewTransferService(services.TransferServiceConfig{
		Layout: services.ReportLayout{
			HeaderRow:   opts.HeaderRow,
			SheetName:   opts.Sheet,
			Placeholder: opts.Placeholder,
			Locations:   locations,
		},
		Workers: opts.Workers,
		TopN:    opts.Top,
	}, nil, log)
	if err != nil {
		return err
	}

	in, err := os.Open(opts.Input)
	if err != nil {
		return fmt.Errorf("failed to open report: %w", err)
	}
	defer in.Close()

	analysis, err := svc.AnalyzeReport(ctx, filepath.Base(opts.Input), in)
	if err != nil {
		return err
	}

	// 提案がない場合、前回の出力が残らないよう削除する
	if len(analysis.Suggestions) == 0 {
		if err := os.Remove(opts.Output); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove stale %s: %w", opts.Output, err)
		}
	} else {
		out, err := os.Create(opts.Output)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", opts.Output, err)
		}
		if err := svc.WriteWorkbook(out, analysis); err != nil {
			out.Close()
			return err
		}
		if err := out.Close(); err != nil {
			return err
		}
	}

	if opts.JSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(analysis)
	}
	printSummary(stdout, analysis, opts.Output)
	return nil
}

func printSummary(w io.Writer, a *services.TransferAnalysis, output string) {
	fmt.Fprintf(w, "Records read:    %d (discarded rows: %d, skipped: %d)\n", a.RecordsRead, a.DiscardedRows, len(a.SkippedRecords))
	if len(a.Suggestions) == 0 {
		fmt.Fprintln(w, services.NoTransfersMessage)
		fmt.Fprintln(w, "Workbook:        not written")
		return
	}
	fmt.Fprintf(w, "Suggestions:     %d for %d products\n", a.Summary.SuggestionCount, a.Summary.ProductCount)
	fmt.Fprintf(w, "Units to move:   %d\n", a.Summary.TotalQuantity)
	for _, lq := range a.Summary.BySource {
		fmt.Fprintf(w, "  from %-14s %d\n", lq.Location, lq.Quantity)
	}
	for _, lq := range a.Summary.ByDestination {
		fmt.Fprintf(w, "  to   %-14s %d\n", lq.Location, lq.Quantity)
	}
	for _, s := range a.SkippedRecords {
		fmt.Fprintf(w, "  skipped %s (%s): %s\n", s.ProductCode, s.Kind, s.Reason)
	}
	fmt.Fprintf(w, "Workbook:        %s\n", output)
}

func main() {
	_ = godotenv.Load()
	cfg := config.LoadConfig()
	logCfg := logger.Config{Environment: cfg.Environment, Level: cfg.LogLevel}

	opts, err := parseFlags(os.Args[1:], cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err = run(ctx, opts, os.Stdout, os.Stderr, logCfg)
	stop()
	if err != nil {
		logger.NewWithWriter(logCfg, os.Stderr).Error().Err(err).Msg("❌ レポート作成失敗")
		os.Exit(1)
	}
}
