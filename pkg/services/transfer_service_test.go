package services

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"stock-transfer-api/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func newTestTransferService(t *testing.T) (*TransferService, *MonitoringService) {
	t.Helper()
	monitor := NewMonitoringService(nil)
	svc, err := NewTransferService(TransferServiceConfig{Layout: testLayout(), Workers: 2, TopN: 5}, monitor, nil)
	require.NoError(t, err)
	return svc, monitor
}

func csvReport(extra ...[]string) string {
	var b strings.Builder
	for _, row := range append(reportRows(), extra...) {
		b.WriteString(strings.Join(row, ","))
		b.WriteString("\n")
	}
	return b.String()
}

func TestNewTransferService_InvalidLocations(t *testing.T) {
	_, err := NewTransferService(TransferServiceConfig{Layout: ReportLayout{HeaderRow: 1}}, nil, nil)
	assert.ErrorIs(t, err, ErrEmptyLocationSet)

	_, err = NewTransferService(TransferServiceConfig{Layout: ReportLayout{HeaderRow: 1, Locations: []models.LocationID{"A", "A"}}}, nil, nil)
	assert.ErrorIs(t, err, ErrDuplicateLocation)
}

func TestTransferService_AnalyzeReport(t *testing.T) {
	svc, monitor := newTestTransferService(t)

	bad := []string{"104", "Luva", "", "0", "0", "0", "0", "-5", "1", "0", "3"}
	analysis, err := svc.AnalyzeReport(context.Background(), "relatorio.csv", strings.NewReader(csvReport(bad)))
	require.NoError(t, err)

	assert.NotEmpty(t, analysis.RunID)
	assert.Equal(t, twoStores, analysis.Locations)
	assert.Equal(t, 4, analysis.RecordsRead)
	assert.Equal(t, 2, analysis.DiscardedRows)

	require.Len(t, analysis.Suggestions, 2)
	assert.Equal(t, models.TransferSuggestion{
		ProductCode: "101", Description: "Camiseta", Reference: "REF-1",
		SourceLocation: "Mascote", SourceStock: 8, SourceSales: 2,
		DestinationLocation: "Mega_Loja", DestinationSales: 10, QuantityToTransfer: 6,
	}, analysis.Suggestions[0])
	assert.Equal(t, "103", analysis.Suggestions[1].ProductCode)
	assert.Equal(t, models.LocationID("Mega_Loja"), analysis.Suggestions[1].SourceLocation)
	assert.Equal(t, 4, analysis.Suggestions[1].QuantityToTransfer)

	require.Len(t, analysis.SkippedRecords, 1)
	assert.Equal(t, "104", analysis.SkippedRecords[0].ProductCode)
	assert.Equal(t, KindInvalidMetric, analysis.SkippedRecords[0].Kind)

	assert.Equal(t, 10, analysis.Summary.TotalQuantity)
	assert.Contains(t, analysis.Message, "2 transfer suggestions")

	runs := monitor.RecentAnalyses(0)
	require.Len(t, runs, 1)
	assert.Equal(t, analysis.RunID, runs[0].RunID)
	assert.Equal(t, 1, runs[0].RecordsSkipped)
	assert.Equal(t, 2, runs[0].SuggestionCount)
}

func TestTransferService_NoTransfersNeeded(t *testing.T) {
	svc, _ := newTestTransferService(t)
	rows := [][]string{{"t"}, {"p"}, reportHeader(), {"1", "X", "", "0", "0", "0", "0", "0", "5", "0", "9"}}

	var b strings.Builder
	for _, row := range rows {
		b.WriteString(strings.Join(row, ",") + "\n")
	}
	analysis, err := svc.AnalyzeReport(context.Background(), "r.csv", strings.NewReader(b.String()))
	require.NoError(t, err)

	assert.Empty(t, analysis.Suggestions)
	assert.NotNil(t, analysis.Suggestions)
	assert.Equal(t, NoTransfersMessage, analysis.Message)
}

func TestTransferService_AnalyzeReportErrorsAreRecorded(t *testing.T) {
	svc, monitor := newTestTransferService(t)

	_, err := svc.AnalyzeReport(context.Background(), "r.txt", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	runs := monitor.RecentAnalyses(1)
	require.Len(t, runs, 1)
	assert.NotEmpty(t, runs[0].Error)
}

func TestTransferService_ExportReport(t *testing.T) {
	svc, _ := newTestTransferService(t)

	var out bytes.Buffer
	analysis, err := svc.ExportReport(context.Background(), "relatorio.csv", strings.NewReader(csvReport()), &out)
	require.NoError(t, err)
	require.Len(t, analysis.Suggestions, 2)

	f, err := excelize.OpenReader(&out)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(SheetSuggestions)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestTransferService_EvaluateRecords(t *testing.T) {
	svc, _ := newTestTransferService(t)

	records := []models.ProductRecord{{
		ProductCode: "9",
		Locations: map[models.LocationID]models.LocationMetric{
			"Mega_Loja": {UnitsSold: 1, UnitsInStock: 0},
			"Mascote":   {UnitsSold: 0, UnitsInStock: 2},
		},
	}}
	res, err := svc.EvaluateRecords(context.Background(), records, nil, HaltOnError)
	require.NoError(t, err)
	require.Len(t, res.Suggestions, 1)
	assert.Equal(t, models.LocationID("Mega_Loja"), res.Suggestions[0].DestinationLocation)

	// 指定した店舗順が優先される
	_, err = svc.EvaluateRecords(context.Background(), records, abc, HaltOnError)
	var recErr RecordError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, KindMalformedRecord, recErr.Kind())
}
