package services

import (
	"context"
	"fmt"
	"sort"

	"stock-transfer-api/pkg/logger"
	"stock-transfer-api/pkg/models"

	"golang.org/x/sync/errgroup"
)

// BatchPolicy バッチ内で不正なレコードを見つけた時の扱い
type BatchPolicy int

const (
	// HaltOnError stops at the first invalid record (lowest index wins)
	HaltOnError BatchPolicy = iota
	// SkipInvalid drops invalid records and reports them in BatchResult.Skipped
	SkipInvalid
)

// BatchOptions バッチ評価のオプション
type BatchOptions struct {
	Workers int // 1以下なら逐次処理
	Policy  BatchPolicy
}

// BatchResult holds suggestions in canonical order plus the records that were skipped.
type BatchResult struct {
	Suggestions []models.TransferSuggestion
	Skipped     []RecordError
}

// TransferEngine applies the demand-anchor allocation rule.
// It keeps no state between calls; the location order is always passed in by the caller.
type TransferEngine struct {
	logger *logger.Logger
}

// NewTransferEngine 新しい移動提案エンジンを作成
func NewTransferEngine(log *logger.Logger) *TransferEngine {
	if log == nil {
		log = logger.Nop()
	}
	return &TransferEngine{logger: log}
}

// ValidateLocationSet checks that the location order is usable and returns a private copy of it.
func ValidateLocationSet(locations []models.LocationID) ([]models.LocationID, error) {
	if len(locations) == 0 {
		return nil, ErrEmptyLocationSet
	}
	seen := make(map[models.LocationID]struct{}, len(locations))
	for _, loc := range locations {
		if _, dup := seen[loc]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateLocation, loc)
		}
		seen[loc] = struct{}{}
	}
	out := make([]models.LocationID, len(locations))
	copy(out, locations)
	return out, nil
}

// EvaluateRecord returns the suggestions for one product.
// An empty result is normal: no surplus anywhere, or no demand at all.
func (e *TransferEngine) EvaluateRecord(record models.ProductRecord, locations []models.LocationID) ([]models.TransferSuggestion, error) {
	locs, err := ValidateLocationSet(locations)
	if err != nil {
		return nil, err
	}
	return evaluateRecord(record, locs)
}

// Evaluate runs the engine sequentially and stops at the first invalid record.
func (e *TransferEngine) Evaluate(records []models.ProductRecord, locations []models.LocationID) ([]models.TransferSuggestion, error) {
	res, err := e.EvaluateBatch(context.Background(), records, locations, BatchOptions{Policy: HaltOnError})
	if err != nil {
		return nil, err
	}
	return res.Suggestions, nil
}

// EvaluateLenient skips invalid records instead of failing the batch.
func (e *TransferEngine) EvaluateLenient(records []models.ProductRecord, locations []models.LocationID) (*BatchResult, error) {
	return e.EvaluateBatch(context.Background(), records, locations, BatchOptions{Policy: SkipInvalid})
}

// EvaluateConcurrent spreads records over a bounded worker pool; the result equals Evaluate.
func (e *TransferEngine) EvaluateConcurrent(ctx context.Context, records []models.ProductRecord, locations []models.LocationID, workers int) ([]models.TransferSuggestion, error) {
	res, err := e.EvaluateBatch(ctx, records, locations, BatchOptions{Workers: workers, Policy: HaltOnError})
	if err != nil {
		return nil, err
	}
	return res.Suggestions, nil
}

// EvaluateBatch is the common path of all batch entry points.
// Suggestions come back in product order, then location order, whatever the worker count.
// With HaltOnError the returned error is a RecordError for the lowest failing index.
func (e *TransferEngine) EvaluateBatch(ctx context.Context, records []models.ProductRecord, locations []models.LocationID, opts BatchOptions) (*BatchResult, error) {
	locs, err := ValidateLocationSet(locations)
	if err != nil {
		return nil, err
	}

	perRecord := make([][]models.TransferSuggestion, len(records))
	recordErrs := make([]error, len(records))

	if opts.Workers <= 1 {
		for i := range records {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			perRecord[i], recordErrs[i] = evaluateRecord(records[i], locs)
			if recordErrs[i] != nil && opts.Policy == HaltOnError {
				break
			}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.Workers)
		for i := range records {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				// レコード単位のエラーはここでは返さない（最小インデックスのエラーを後で選ぶため）
				perRecord[i], recordErrs[i] = evaluateRecord(records[i], locs)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	res := &BatchResult{Suggestions: make([]models.TransferSuggestion, 0)}
	for i, out := range perRecord {
		if recordErrs[i] != nil {
			recErr := RecordError{Index: i, ProductCode: records[i].ProductCode, Err: recordErrs[i]}
			if opts.Policy == HaltOnError {
				return nil, recErr
			}
			e.logger.Warn().
				Int("index", i).
				Str("product_code", records[i].ProductCode).
				Str("kind", recErr.Kind()).
				Err(recordErrs[i]).
				Msg("⚠️ レコードをスキップしました")
			res.Skipped = append(res.Skipped, recErr)
			continue
		}
		res.Suggestions = append(res.Suggestions, out...)
	}

	e.logger.Debug().
		Int("records", len(records)).
		Int("suggestions", len(res.Suggestions)).
		Int("skipped", len(res.Skipped)).
		Int("workers", opts.Workers).
		Msg("📦 移動提案の評価完了")
	return res, nil
}

// evaluateRecord assumes locs was already validated.
func evaluateRecord(record models.ProductRecord, locs []models.LocationID) ([]models.TransferSuggestion, error) {
	if err := validateRecord(record, locs); err != nil {
		return nil, err
	}

	// 需要アンカー: 販売数が最大の店舗。同数の場合は店舗順で先のもの
	anchor := locs[0]
	anchorSales := record.Locations[anchor].UnitsSold
	for _, loc := range locs[1:] {
		if sold := record.Locations[loc].UnitsSold; sold > anchorSales {
			anchor = loc
			anchorSales = sold
		}
	}

	// 需要ゼロの店舗には送らない
	if anchorSales == 0 {
		return nil, nil
	}

	var out []models.TransferSuggestion
	for _, loc := range locs {
		if loc == anchor {
			continue
		}
		m := record.Locations[loc]
		// 在庫ゼロの店舗は送り元にならない
		if m.UnitsInStock > m.UnitsSold && m.UnitsInStock > 0 {
			out = append(out, models.TransferSuggestion{
				ProductCode:         record.ProductCode,
				Description:         record.Description,
				Reference:           record.Reference,
				SourceLocation:      loc,
				SourceStock:         m.UnitsInStock,
				SourceSales:         m.UnitsSold,
				DestinationLocation: anchor,
				DestinationSales:    anchorSales,
				QuantityToTransfer:  m.UnitsInStock - m.UnitsSold,
			})
		}
	}
	return out, nil
}

func validateRecord(record models.ProductRecord, locs []models.LocationID) error {
	var missing []models.LocationID
	for _, loc := range locs {
		if _, ok := record.Locations[loc]; !ok {
			missing = append(missing, loc)
		}
	}
	// 店舗数が同じで欠落がなければ余分なキーもない
	if len(missing) > 0 || len(record.Locations) != len(locs) {
		known := make(map[models.LocationID]struct{}, len(locs))
		for _, loc := range locs {
			known[loc] = struct{}{}
		}
		var extra []models.LocationID
		for loc := range record.Locations {
			if _, ok := known[loc]; !ok {
				extra = append(extra, loc)
			}
		}
		sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
		return &MalformedRecordError{ProductCode: record.ProductCode, Missing: missing, Extra: extra}
	}

	for _, loc := range locs {
		m := record.Locations[loc]
		if m.UnitsSold < 0 {
			return &InvalidMetricError{ProductCode: record.ProductCode, Location: loc, Field: "units_sold", Value: m.UnitsSold}
		}
		if m.UnitsInStock < 0 {
			return &InvalidMetricError{ProductCode: record.ProductCode, Location: loc, Field: "units_in_stock", Value: m.UnitsInStock}
		}
	}
	return nil
}
