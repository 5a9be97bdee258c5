package services

import (
	"fmt"
	"io"

	"stock-transfer-api/pkg/logger"
	"stock-transfer-api/pkg/models"

	"github.com/xuri/excelize/v2"
)

const (
	// ExportFileName ダウンロード時のファイル名
	ExportFileName = "sugestao_transferencias.xlsx"
	// ExportContentType xlsx の MIME タイプ
	ExportContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	SheetSuggestions   = "Sugestoes"
	SheetBySource      = "Por_Origem"
	SheetByDestination = "Por_Destino"
	SheetMatrix        = "Matriz"
	SheetTopProducts   = "Top_Produtos"
)

// SuggestionColumns follows the TransferSuggestion field order.
var SuggestionColumns = []string{
	"Codigo", "Descricao", "Referencia",
	"Loja_Origem", "Estoque_Origem", "Vendas_Origem",
	"Loja_Destino", "Vendas_Destino", "Transferir_Qtd",
}

// ReportWriter 移動提案をExcelブックに書き出す
type ReportWriter struct {
	logger *logger.Logger
}

// NewReportWriter 新しいレポートライターを作成
func NewReportWriter(log *logger.Logger) *ReportWriter {
	if log == nil {
		log = logger.Nop()
	}
	return &ReportWriter{logger: log}
}

// Write serializes the workbook to out.
func (w *ReportWriter) Write(out io.Writer, suggestions []models.TransferSuggestion, summary models.TransferSummary) error {
	f, err := w.Build(suggestions, summary)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// Build creates the workbook: the suggestion table first, then the summary sheets.
func (w *ReportWriter) Build(suggestions []models.TransferSuggestion, summary models.TransferSummary) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := w.build(f, suggestions, summary); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func (w *ReportWriter) build(f *excelize.File, suggestions []models.TransferSuggestion, summary models.TransferSummary) error {
	if err := f.SetSheetName(f.GetSheetName(0), SheetSuggestions); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	rows := make([][]interface{}, 0, len(suggestions))
	for _, s := range suggestions {
		rows = append(rows, []interface{}{
			s.ProductCode, s.Description, s.Reference,
			string(s.SourceLocation), s.SourceStock, s.SourceSales,
			string(s.DestinationLocation), s.DestinationSales, s.QuantityToTransfer,
		})
	}
	if err := writeTable(f, SheetSuggestions, toRow(SuggestionColumns), rows); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetSuggestions, "B", "B", 40); err != nil {
		return err
	}

	if err := w.writeLocationSheet(f, SheetBySource, "Loja_Origem", summary.BySource); err != nil {
		return err
	}
	if err := w.writeLocationSheet(f, SheetByDestination, "Loja_Destino", summary.ByDestination); err != nil {
		return err
	}
	if err := writeMatrix(f, summary.Matrix); err != nil {
		return err
	}

	topRows := make([][]interface{}, 0, len(summary.TopProducts))
	for _, p := range summary.TopProducts {
		topRows = append(topRows, []interface{}{p.ProductCode, p.Description, p.Quantity})
	}
	if _, err := f.NewSheet(SheetTopProducts); err != nil {
		return err
	}
	if err := writeTable(f, SheetTopProducts, []interface{}{"Codigo", "Descricao", "Transferir_Qtd"}, topRows); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	w.logger.Debug().Int("suggestions", len(suggestions)).Msg("📝 Excelブック作成完了")
	return nil
}

// writeLocationSheet writes a grouped sum and, when there is data, a column chart next to it.
func (w *ReportWriter) writeLocationSheet(f *excelize.File, sheet, label string, sums []models.LocationQuantity) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	rows := make([][]interface{}, 0, len(sums))
	for _, s := range sums {
		rows = append(rows, []interface{}{string(s.Location), s.Quantity})
	}
	if err := writeTable(f, sheet, []interface{}{label, "Transferir_Qtd"}, rows); err != nil {
		return err
	}
	if len(sums) == 0 {
		return nil
	}

	last := len(sums) + 1
	chart := &excelize.Chart{
		Type: excelize.Col,
		Series: []excelize.ChartSeries{{
			Name:       fmt.Sprintf("%s!$B$1", sheet),
			Categories: fmt.Sprintf("%s!$A$2:$A$%d", sheet, last),
			Values:     fmt.Sprintf("%s!$B$2:$B$%d", sheet, last),
		}},
		Title: []excelize.RichTextRun{{Text: "Transferir_Qtd por " + label}},
	}
	if err := f.AddChart(sheet, "D2", chart); err != nil {
		return fmt.Errorf("failed to add chart to %s: %w", sheet, err)
	}
	return nil
}

// writeMatrix 移動元×移動先のクロス集計（該当なしは0）
func writeMatrix(f *excelize.File, m models.TransferMatrix) error {
	if _, err := f.NewSheet(SheetMatrix); err != nil {
		return err
	}
	header := []interface{}{"Origem \\ Destino"}
	for _, d := range m.Destinations {
		header = append(header, string(d))
	}
	rows := make([][]interface{}, 0, len(m.Sources))
	for i, src := range m.Sources {
		row := []interface{}{string(src)}
		for _, q := range m.Cells[i] {
			row = append(row, q)
		}
		rows = append(rows, row)
	}
	return writeTable(f, SheetMatrix, header, rows)
}

func writeTable(f *excelize.File, sheet string, header []interface{}, rows [][]interface{}) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header of %s: %w", sheet, err)
	}
	for i := range rows {
		cellName, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cellName, &rows[i]); err != nil {
			return fmt.Errorf("failed to write row %d of %s: %w", i+2, sheet, err)
		}
	}
	return nil
}

func toRow(values []string) []interface{} {
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	return row
}
