package models

import "time"

// LocationID identifies a store (e.g. "Mega_Loja")
type LocationID string

// LocationMetric 1商品・1店舗あたりの直近販売数と在庫数
type LocationMetric struct {
	UnitsSold    int `json:"units_sold"`
	UnitsInStock int `json:"units_in_stock"`
}

// ProductRecord represents one row of the stock snapshot
type ProductRecord struct {
	ProductCode string                        `json:"product_code" binding:"required"`
	Description string                        `json:"description"`
	Reference   string                        `json:"reference"`              // 空の場合あり
	Locations   map[LocationID]LocationMetric `json:"locations" binding:"required"`
}

// TransferSuggestion 在庫移動の提案（フィールド順はExcel出力の列順と同じ）
type TransferSuggestion struct {
	ProductCode         string     `json:"product_code"`
	Description         string     `json:"description"`
	Reference           string     `json:"reference"`
	SourceLocation      LocationID `json:"source_location"`
	SourceStock         int        `json:"source_stock"`
	SourceSales         int        `json:"source_sales"`
	DestinationLocation LocationID `json:"destination_location"`
	DestinationSales    int        `json:"destination_sales"`
	QuantityToTransfer  int        `json:"quantity_to_transfer"`
}

// EvaluateRequest represents a JSON request that runs the engine on already-normalized records
type EvaluateRequest struct {
	Records   []ProductRecord `json:"records" binding:"required,dive"`
	Locations []LocationID    `json:"locations,omitempty"` // 省略時は設定の店舗順
}

// SkippedRecord 評価できずにスキップされたレコード
type SkippedRecord struct {
	ProductCode string `json:"product_code"`
	Kind        string `json:"kind"` // "malformed_record" or "invalid_metric"
	Reason      string `json:"reason"`
}

// LocationQuantity 店舗ごとの移動数量の合計
type LocationQuantity struct {
	Location LocationID `json:"location"`
	Quantity int        `json:"quantity"`
}

// ProductQuantity 商品ごとの移動数量の合計
type ProductQuantity struct {
	ProductCode string `json:"product_code"`
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
}

// TransferMatrix is the (source, destination) cross-tabulation of transfer quantities.
// Cells[i][j] is the quantity from Sources[i] to Destinations[j]; absent pairs are 0.
type TransferMatrix struct {
	Sources      []LocationID `json:"sources"`
	Destinations []LocationID `json:"destinations"`
	Cells        [][]int      `json:"cells"`
}

// Quantity returns the cell for a pair, 0 when either side is absent
func (m TransferMatrix) Quantity(src, dst LocationID) int {
	i, j := -1, -1
	for k, id := range m.Sources {
		if id == src {
			i = k
		}
	}
	for k, id := range m.Destinations {
		if id == dst {
			j = k
		}
	}
	if i < 0 || j < 0 {
		return 0
	}
	return m.Cells[i][j]
}

// TransferSummary 提案一覧の集計ビュー
type TransferSummary struct {
	SuggestionCount int                `json:"suggestion_count"`
	ProductCount    int                `json:"product_count"`
	LocationCount   int                `json:"location_count"`
	TotalQuantity   int                `json:"total_quantity"`
	BySource        []LocationQuantity `json:"by_source"`
	ByDestination   []LocationQuantity `json:"by_destination"`
	TopProducts     []ProductQuantity  `json:"top_products"`
	Matrix          TransferMatrix     `json:"matrix"`
}

// AnalysisRun 1回の分析実行の記録（モニタリング用）
type AnalysisRun struct {
	RunID           string        `json:"run_id"`
	FileName        string        `json:"file_name"`
	StartedAt       time.Time     `json:"started_at"`
	Duration        time.Duration `json:"duration"`
	RecordsRead     int           `json:"records_read"`
	RecordsSkipped  int           `json:"records_skipped"`
	SuggestionCount int           `json:"suggestion_count"`
	TotalQuantity   int           `json:"total_quantity"`
	Error           string        `json:"error,omitempty"`
}
