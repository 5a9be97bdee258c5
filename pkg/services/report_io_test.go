package services

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"stock-transfer-api/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var twoStores = []models.LocationID{"Mega_Loja", "Mascote"}

func testLayout() ReportLayout {
	return ReportLayout{HeaderRow: 3, Placeholder: "-", Locations: twoStores}
}

func reportHeader() []string {
	return []string{"Código", "Descrição", "Referência", "Saldo Ant.", "Receb.", "Vendas", "Saldo",
		"Vendas Mega", "Saldo Mega", "Vendas Mascote", "Saldo Mascote"}
}

// reportRows はタイトル行・ヘッダー行・データ行・合計行を含むレポートを組み立てる
func reportRows() [][]string {
	return [][]string{
		{"Relatório de vendas por loja"},
		{"Período: 01/09/2024 a 30/09/2024"},
		reportHeader(),
		{"101", "Camiseta", "REF-1", "0", "0", "12", "10", "10", "2", "2", "8"},
		{"Grupo: Vestuário"},
		{"102.0", "Bermuda", "", "0", "0", "0", "0", "-", "-", "3", "-"},
		{"103", "Meia", "REF-3", "", "", "", "", "abc", "4.9", "1", "7"},
		{"Total", "", "", "0", "0", "12", "10", "10", "2", "2", "8"},
	}
}

func TestReportReader_ParseRows(t *testing.T) {
	reader := NewReportReader(testLayout(), nil)

	data, err := reader.ParseRows(reportRows())
	require.NoError(t, err)

	assert.Equal(t, 5, data.DataRows)
	assert.Equal(t, 2, data.DiscardedRows)
	require.Len(t, data.Records, 3)

	assert.Equal(t, models.ProductRecord{
		ProductCode: "101",
		Description: "Camiseta",
		Reference:   "REF-1",
		Locations: map[models.LocationID]models.LocationMetric{
			"Mega_Loja": {UnitsSold: 10, UnitsInStock: 2},
			"Mascote":   {UnitsSold: 2, UnitsInStock: 8},
		},
	}, data.Records[0])

	// プレースホルダー "-" は0
	assert.Equal(t, "102", data.Records[1].ProductCode)
	assert.Equal(t, "", data.Records[1].Reference)
	assert.Equal(t, models.LocationMetric{}, data.Records[1].Locations["Mega_Loja"])
	assert.Equal(t, models.LocationMetric{UnitsSold: 3}, data.Records[1].Locations["Mascote"])

	// 数値でない値は0、小数は切り捨て
	assert.Equal(t, models.LocationMetric{UnitsSold: 0, UnitsInStock: 4}, data.Records[2].Locations["Mega_Loja"])
}

func TestReportReader_LayoutErrors(t *testing.T) {
	reader := NewReportReader(testLayout(), nil)

	_, err := reader.ParseRows([][]string{{"only one row"}})
	assert.ErrorIs(t, err, ErrReportLayout)

	rows := reportRows()
	rows[2] = rows[2][:9]
	_, err = reader.ParseRows(rows)
	assert.ErrorIs(t, err, ErrReportLayout)

	bad := NewReportReader(ReportLayout{HeaderRow: 0, Locations: twoStores}, nil)
	_, err = bad.ParseRows(reportRows())
	assert.ErrorIs(t, err, ErrReportLayout)
}

func TestReportReader_Read(t *testing.T) {
	reader := NewReportReader(testLayout(), nil)

	f := excelize.NewFile()
	for i, row := range reportRows() {
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		cellName, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cellName, &values))
	}
	// 数値セルとしても読めること
	require.NoError(t, f.SetCellValue("Sheet1", "A4", 101))
	require.NoError(t, f.SetCellValue("Sheet1", "H4", 10))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	fromXLSX, err := reader.Read("Relatorio.XLSX", bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	fromRows, err := reader.ParseRows(reportRows())
	require.NoError(t, err)
	assert.Equal(t, fromRows.Records, fromXLSX.Records)

	var csvText strings.Builder
	for _, row := range reportRows() {
		csvText.WriteString(strings.Join(row, ","))
		csvText.WriteString("\n")
	}
	fromCSV, err := reader.Read("relatorio.csv", strings.NewReader(csvText.String()))
	require.NoError(t, err)
	assert.Equal(t, fromRows.Records, fromCSV.Records)

	_, err = reader.Read("relatorio.pdf", strings.NewReader(""))
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestReportReader_NamedSheet(t *testing.T) {
	layout := testLayout()
	layout.SheetName = "Missing"
	reader := NewReportReader(layout, nil)

	f := excelize.NewFile()
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	_, err = reader.ReadXLSX(bytes.NewReader(buf.Bytes()))
	assert.ErrorIs(t, err, ErrUnreadableReport)

	_, err = reader.ReadXLSX(strings.NewReader("not a zip"))
	assert.ErrorIs(t, err, ErrUnreadableReport)
}

func TestNormalizeProductCode(t *testing.T) {
	testCases := []struct {
		in       string
		expected string
		ok       bool
	}{
		{"123", "123", true},
		{" 123.0 ", "123", true},
		{"12.5", "12.5", true},
		{"", "", false},
		{"Total", "", false},
		{"NaN", "", false},
	}

	for _, tc := range testCases {
		got, ok := normalizeProductCode(tc.in)
		assert.Equal(t, tc.ok, ok, "input %q", tc.in)
		assert.Equal(t, tc.expected, got, "input %q", tc.in)
	}
}

func TestReportWriter_Write(t *testing.T) {
	engine := NewTransferEngine(nil)
	suggestions, err := engine.Evaluate([]models.ProductRecord{
		record("P", []int{10, 2, 0}, []int{5, 8, 3}),
		record("Q", []int{0, 1, 9}, []int{4, 0, 0}),
	}, abc)
	require.NoError(t, err)
	summary := SummarizeTransfers(suggestions, 5)

	var buf bytes.Buffer
	require.NoError(t, NewReportWriter(nil).Write(&buf, suggestions, summary))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetSuggestions, SheetBySource, SheetByDestination, SheetMatrix, SheetTopProducts}, f.GetSheetList())

	rows, err := f.GetRows(SheetSuggestions)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, SuggestionColumns, rows[0])
	assert.Equal(t, []string{"P", "desc P", "ref-P", "B", "8", "2", "A", "10", "6"}, rows[1])
	assert.Equal(t, []string{"P", "desc P", "ref-P", "C", "3", "0", "A", "10", "3"}, rows[2])
	assert.Equal(t, []string{"Q", "desc Q", "ref-Q", "A", "4", "0", "C", "9", "4"}, rows[3])

	bySource, err := f.GetRows(SheetBySource)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Loja_Origem", "Transferir_Qtd"}, {"B", "6"}, {"C", "3"}, {"A", "4"}}, bySource)

	matrix, err := f.GetRows(SheetMatrix)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Origem \\ Destino", "A", "C"}, {"B", "6", "0"}, {"C", "3", "0"}, {"A", "0", "4"}}, matrix)
}

func TestReportWriter_NoSuggestions(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewReportWriter(nil).Write(&buf, nil, SummarizeTransfers(nil, 5)))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetSuggestions)
	require.NoError(t, err)
	assert.Equal(t, [][]string{SuggestionColumns}, rows)
}
