package services

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"stock-transfer-api/pkg/logger"
	"stock-transfer-api/pkg/models"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrUnsupportedFormat .xlsx / .csv 以外のファイル
	ErrUnsupportedFormat = errors.New("unsupported file format, upload .xlsx or .csv")
	// ErrReportLayout ヘッダー行や列数がレイアウトと合わない
	ErrReportLayout = errors.New("report layout mismatch")
	// ErrUnreadableReport ファイルが壊れている・形式と内容が一致しない
	ErrUnreadableReport = errors.New("report could not be read")
)

// leadingColumns: Codigo, Descricao, Referencia, Saldo_Anterior, Total_Recebimento, Total_Vendas, Saldo_Atual
const leadingColumns = 7

// ReportLayout describes where data sits in the sales/stock report.
// After the leading columns each location has a (sales, stock) column pair, in Locations order.
type ReportLayout struct {
	HeaderRow   int                 // ヘッダー行（1始まり）
	SheetName   string              // 空なら先頭シート
	Placeholder string              // "データなし"を表す文字列（0として扱う）
	Locations   []models.LocationID // 列の並び順 = 店舗の正規順
}

// RequiredColumns 必要な最小列数
func (l ReportLayout) RequiredColumns() int {
	return leadingColumns + 2*len(l.Locations)
}

// ReportData is what the reader hands to the engine.
type ReportData struct {
	Header        []string
	Records       []models.ProductRecord
	DataRows      int // ヘッダー以降の行数
	DiscardedRows int // 商品コードが数値でない行
}

// ReportReader 販売・在庫レポートの読み込み
type ReportReader struct {
	layout ReportLayout
	logger *logger.Logger
}

// NewReportReader 新しいレポートリーダーを作成
func NewReportReader(layout ReportLayout, log *logger.Logger) *ReportReader {
	if log == nil {
		log = logger.Nop()
	}
	return &ReportReader{layout: layout, logger: log}
}

// Layout returns the layout the reader was built with
func (r *ReportReader) Layout() ReportLayout {
	return r.layout
}

// Read picks the parser from the file extension.
func (r *ReportReader) Read(fileName string, src io.Reader) (*ReportData, error) {
	lower := strings.ToLower(fileName)
	switch {
	case strings.HasSuffix(lower, ".xlsx"):
		return r.ReadXLSX(src)
	case strings.HasSuffix(lower, ".csv"):
		return r.ReadCSV(src)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, fileName)
	}
}

// ReadXLSX reads the configured (or first) sheet of a workbook.
func (r *ReportReader) ReadXLSX(src io.Reader) (*ReportData, error) {
	f, err := excelize.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open workbook: %w", ErrUnreadableReport, err)
	}
	defer f.Close()

	sheet := r.layout.SheetName
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	// 書式付きの表示値ではなく生の値を使う（桁区切りなどを避ける）
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read sheet %q: %w", ErrUnreadableReport, sheet, err)
	}
	return r.ParseRows(rows)
}

// ReadCSV reads a CSV export of the same report.
func (r *ReportReader) ReadCSV(src io.Reader) (*ReportData, error) {
	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse CSV: %w", ErrUnreadableReport, err)
	}
	return r.ParseRows(rows)
}

// ParseRows turns raw rows into product records.
// Rows before the header are ignored; rows whose first cell is not numeric are discarded.
func (r *ReportReader) ParseRows(rows [][]string) (*ReportData, error) {
	if r.layout.HeaderRow < 1 {
		return nil, fmt.Errorf("%w: header row must be >= 1, got %d", ErrReportLayout, r.layout.HeaderRow)
	}
	if len(rows) < r.layout.HeaderRow {
		return nil, fmt.Errorf("%w: report has %d rows, header expected on row %d", ErrReportLayout, len(rows), r.layout.HeaderRow)
	}

	header := rows[r.layout.HeaderRow-1]
	if len(header) < r.layout.RequiredColumns() {
		return nil, fmt.Errorf("%w: header has %d columns, %d required for %d locations",
			ErrReportLayout, len(header), r.layout.RequiredColumns(), len(r.layout.Locations))
	}

	dataRows := rows[r.layout.HeaderRow:]
	data := &ReportData{
		Header:   header,
		Records:  make([]models.ProductRecord, 0, len(dataRows)),
		DataRows: len(dataRows),
	}

	for rowIdx, row := range dataRows {
		code, ok := normalizeProductCode(cell(row, 0))
		if !ok {
			data.DiscardedRows++
			continue
		}

		rec := models.ProductRecord{
			ProductCode: code,
			Description: strings.TrimSpace(cell(row, 1)),
			Reference:   strings.TrimSpace(cell(row, 2)),
			Locations:   make(map[models.LocationID]models.LocationMetric, len(r.layout.Locations)),
		}
		for i, loc := range r.layout.Locations {
			col := leadingColumns + 2*i
			rec.Locations[loc] = models.LocationMetric{
				UnitsSold:    r.coerceQuantity(cell(row, col)),
				UnitsInStock: r.coerceQuantity(cell(row, col+1)),
			}
		}
		data.Records = append(data.Records, rec)

		if len(data.Records) == 1 {
			r.logger.Debug().Int("row", r.layout.HeaderRow+rowIdx+1).Str("product_code", code).Msg("✅ 初回成功")
		}
	}

	r.logger.Info().
		Int("data_rows", data.DataRows).
		Int("records", len(data.Records)).
		Int("discarded", data.DiscardedRows).
		Msg("📊 レポート解析結果")
	return data, nil
}

// coerceQuantity: placeholder, blank and non-numeric cells become 0; decimals are truncated.
func (r *ReportReader) coerceQuantity(raw string) int {
	v := strings.TrimSpace(raw)
	if v == "" || (r.layout.Placeholder != "" && v == r.layout.Placeholder) {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int(f)
}

// normalizeProductCode accepts numeric codes only; "123.0" becomes "123".
func normalizeProductCode(raw string) (string, bool) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return "", false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return "", false
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10), true
	}
	return v, true
}

// cell 行が短い場合は空文字を返す
func cell(row []string, idx int) string {
	if idx < len(row) {
		return row[idx]
	}
	return ""
}
