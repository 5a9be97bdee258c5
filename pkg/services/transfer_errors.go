package services

import (
	"errors"
	"fmt"
	"strings"

	"stock-transfer-api/pkg/models"
)

var (
	// ErrEmptyLocationSet 店舗リストが空
	ErrEmptyLocationSet = errors.New("location set is empty")
	// ErrDuplicateLocation 店舗リストに重複がある
	ErrDuplicateLocation = errors.New("location set contains a duplicate")
)

// Error kinds reported for skipped records
const (
	KindMalformedRecord = "malformed_record"
	KindInvalidMetric   = "invalid_metric"
)

// MalformedRecordError is returned when a record's locations differ from the location set.
type MalformedRecordError struct {
	ProductCode string
	Missing     []models.LocationID
	Extra       []models.LocationID
}

func (e *MalformedRecordError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+joinLocations(e.Missing))
	}
	if len(e.Extra) > 0 {
		parts = append(parts, "unexpected "+joinLocations(e.Extra))
	}
	return fmt.Sprintf("product %s: location set mismatch (%s)", e.ProductCode, strings.Join(parts, "; "))
}

// InvalidMetricError 販売数または在庫数が負の値
type InvalidMetricError struct {
	ProductCode string
	Location    models.LocationID
	Field       string // "units_sold" or "units_in_stock"
	Value       int
}

func (e *InvalidMetricError) Error() string {
	return fmt.Sprintf("product %s: %s at %s is negative (%d)", e.ProductCode, e.Field, e.Location, e.Value)
}

// RecordError ties an engine error to the record position in the batch.
type RecordError struct {
	Index       int
	ProductCode string
	Err         error
}

func (e RecordError) Error() string {
	return fmt.Sprintf("record %d: %v", e.Index, e.Err)
}

func (e RecordError) Unwrap() error { return e.Err }

// Kind classifies the underlying error for reporting
func (e RecordError) Kind() string {
	var malformed *MalformedRecordError
	if errors.As(e.Err, &malformed) {
		return KindMalformedRecord
	}
	return KindInvalidMetric
}

// ToSkipped converts record errors into their JSON representation
func ToSkipped(errs []RecordError) []models.SkippedRecord {
	out := make([]models.SkippedRecord, 0, len(errs))
	for _, e := range errs {
		out = append(out, models.SkippedRecord{
			ProductCode: e.ProductCode,
			Kind:        e.Kind(),
			Reason:      e.Err.Error(),
		})
	}
	return out
}

func joinLocations(ids []models.LocationID) string {
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = string(id)
	}
	return strings.Join(names, ", ")
}
