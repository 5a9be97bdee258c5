package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"stock-transfer-api/pkg/logger"
	"stock-transfer-api/pkg/models"

	"github.com/google/uuid"
)

// NoTransfersMessage is shown when a snapshot yields no suggestions; it is not an error.
const NoTransfersMessage = "no transfers needed"

// TransferAnalysis 1ファイル分の分析結果
type TransferAnalysis struct {
	RunID          string                      `json:"run_id"`
	FileName       string                      `json:"file_name"`
	Locations      []models.LocationID         `json:"locations"`
	RecordsRead    int                         `json:"records_read"`
	DiscardedRows  int                         `json:"discarded_rows"`
	Suggestions    []models.TransferSuggestion `json:"suggestions"`
	SkippedRecords []models.SkippedRecord      `json:"skipped_records"`
	Summary        models.TransferSummary      `json:"summary"`
	Message        string                      `json:"message"`
}

// TransferServiceConfig TransferServiceの設定
type TransferServiceConfig struct {
	Layout  ReportLayout
	Workers int
	TopN    int
}

// TransferService ties the report reader, the engine and the workbook writer together.
type TransferService struct {
	reader  *ReportReader
	engine  *TransferEngine
	writer  *ReportWriter
	monitor *MonitoringService
	cfg     TransferServiceConfig
	logger  *logger.Logger
}

// NewTransferService 新しい在庫移動サービスを作成
func NewTransferService(cfg TransferServiceConfig, monitor *MonitoringService, log *logger.Logger) (*TransferService, error) {
	if log == nil {
		log = logger.Nop()
	}
	locs, err := ValidateLocationSet(cfg.Layout.Locations)
	if err != nil {
		return nil, fmt.Errorf("invalid location configuration: %w", err)
	}
	cfg.Layout.Locations = locs

	return &TransferService{
		reader:  NewReportReader(cfg.Layout, log),
		engine:  NewTransferEngine(log),
		writer:  NewReportWriter(log),
		monitor: monitor,
		cfg:     cfg,
		logger:  log,
	}, nil
}

// Locations returns the canonical location order (a copy).
func (s *TransferService) Locations() []models.LocationID {
	out := make([]models.LocationID, len(s.cfg.Layout.Locations))
	copy(out, s.cfg.Layout.Locations)
	return out
}

// AnalyzeReport reads an uploaded report and evaluates every record.
// Invalid records are skipped and listed; they never abort the analysis.
func (s *TransferService) AnalyzeReport(ctx context.Context, fileName string, src io.Reader) (*TransferAnalysis, error) {
	start := time.Now()
	runID := uuid.New().String()
	log := s.logger.With("run_id", runID)
	log.Info().Str("file", fileName).Msg("📂 ファイル分析開始")

	run := models.AnalysisRun{RunID: runID, FileName: fileName, StartedAt: start}
	analysis, err := s.analyze(ctx, runID, fileName, src)
	run.Duration = time.Since(start)
	if err != nil {
		run.Error = err.Error()
		s.record(run)
		log.Error().Err(err).Msg("❌ ファイル分析失敗")
		return nil, err
	}

	run.RecordsRead = analysis.RecordsRead
	run.RecordsSkipped = len(analysis.SkippedRecords)
	run.SuggestionCount = analysis.Summary.SuggestionCount
	run.TotalQuantity = analysis.Summary.TotalQuantity
	s.record(run)

	log.Info().
		Int("records", analysis.RecordsRead).
		Int("skipped", run.RecordsSkipped).
		Int("suggestions", run.SuggestionCount).
		Dur("elapsed", run.Duration).
		Msg("✅ ファイル分析完了")
	return analysis, nil
}

func (s *TransferService) analyze(ctx context.Context, runID, fileName string, src io.Reader) (*TransferAnalysis, error) {
	data, err := s.reader.Read(fileName, src)
	if err != nil {
		return nil, err
	}

	res, err := s.engine.EvaluateBatch(ctx, data.Records, s.cfg.Layout.Locations, BatchOptions{
		Workers: s.cfg.Workers,
		Policy:  SkipInvalid,
	})
	if err != nil {
		return nil, err
	}

	analysis := &TransferAnalysis{
		RunID:          runID,
		FileName:       fileName,
		Locations:      s.Locations(),
		RecordsRead:    len(data.Records),
		DiscardedRows:  data.DiscardedRows,
		Suggestions:    res.Suggestions,
		SkippedRecords: ToSkipped(res.Skipped),
		Summary:        SummarizeTransfers(res.Suggestions, s.cfg.TopN),
	}
	if len(res.Suggestions) == 0 {
		analysis.Message = NoTransfersMessage
	} else {
		analysis.Message = fmt.Sprintf("%d transfer suggestions for %d products", analysis.Summary.SuggestionCount, analysis.Summary.ProductCount)
	}
	return analysis, nil
}

// ExportReport analyzes the report and writes the suggestion workbook to out.
func (s *TransferService) ExportReport(ctx context.Context, fileName string, src io.Reader, out io.Writer) (*TransferAnalysis, error) {
	analysis, err := s.AnalyzeReport(ctx, fileName, src)
	if err != nil {
		return nil, err
	}
	if err := s.WriteWorkbook(out, analysis); err != nil {
		return nil, err
	}
	return analysis, nil
}

// WriteWorkbook writes an existing analysis as xlsx.
func (s *TransferService) WriteWorkbook(out io.Writer, analysis *TransferAnalysis) error {
	return s.writer.Write(out, analysis.Suggestions, analysis.Summary)
}

// EvaluateRecords runs the engine on records that are already normalized.
// An empty locations slice means the configured order.
func (s *TransferService) EvaluateRecords(ctx context.Context, records []models.ProductRecord, locations []models.LocationID, policy BatchPolicy) (*BatchResult, error) {
	if len(locations) == 0 {
		locations = s.cfg.Layout.Locations
	}
	return s.engine.EvaluateBatch(ctx, records, locations, BatchOptions{Workers: s.cfg.Workers, Policy: policy})
}

// Summarize 設定済みのTopNで集計する
func (s *TransferService) Summarize(suggestions []models.TransferSuggestion) models.TransferSummary {
	return SummarizeTransfers(suggestions, s.cfg.TopN)
}

func (s *TransferService) record(run models.AnalysisRun) {
	if s.monitor != nil {
		s.monitor.RecordAnalysis(run)
	}
}
