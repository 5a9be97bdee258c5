package services

import (
	"sort"

	"stock-transfer-api/pkg/models"
)

// 集計はすべて読み取り専用で、入力の提案一覧は変更しない。
// グループの並びは初出順（提案一覧の順序に従うので決定的）。

// CountProducts returns the number of distinct product codes.
func CountProducts(suggestions []models.TransferSuggestion) int {
	seen := make(map[string]struct{})
	for _, s := range suggestions {
		seen[s.ProductCode] = struct{}{}
	}
	return len(seen)
}

// CountLocations counts locations appearing as source or destination.
func CountLocations(suggestions []models.TransferSuggestion) int {
	seen := make(map[models.LocationID]struct{})
	for _, s := range suggestions {
		seen[s.SourceLocation] = struct{}{}
		seen[s.DestinationLocation] = struct{}{}
	}
	return len(seen)
}

// TotalQuantity 移動数量の総計
func TotalQuantity(suggestions []models.TransferSuggestion) int {
	total := 0
	for _, s := range suggestions {
		total += s.QuantityToTransfer
	}
	return total
}

// SumBySource 移動元店舗ごとの数量合計
func SumBySource(suggestions []models.TransferSuggestion) []models.LocationQuantity {
	return sumByLocation(suggestions, func(s models.TransferSuggestion) models.LocationID { return s.SourceLocation })
}

// SumByDestination 移動先店舗ごとの数量合計
func SumByDestination(suggestions []models.TransferSuggestion) []models.LocationQuantity {
	return sumByLocation(suggestions, func(s models.TransferSuggestion) models.LocationID { return s.DestinationLocation })
}

func sumByLocation(suggestions []models.TransferSuggestion, key func(models.TransferSuggestion) models.LocationID) []models.LocationQuantity {
	index := make(map[models.LocationID]int)
	out := make([]models.LocationQuantity, 0)
	for _, s := range suggestions {
		loc := key(s)
		i, ok := index[loc]
		if !ok {
			i = len(out)
			index[loc] = i
			out = append(out, models.LocationQuantity{Location: loc})
		}
		out[i].Quantity += s.QuantityToTransfer
	}
	return out
}

// TopProducts returns the n products with the largest total quantity.
// Ties keep first-appearance order; n <= 0 returns every product.
func TopProducts(suggestions []models.TransferSuggestion, n int) []models.ProductQuantity {
	index := make(map[string]int)
	products := make([]models.ProductQuantity, 0)
	for _, s := range suggestions {
		i, ok := index[s.ProductCode]
		if !ok {
			i = len(products)
			index[s.ProductCode] = i
			products = append(products, models.ProductQuantity{ProductCode: s.ProductCode, Description: s.Description})
		}
		products[i].Quantity += s.QuantityToTransfer
	}

	sort.SliceStable(products, func(i, j int) bool {
		return products[i].Quantity > products[j].Quantity
	})
	if n > 0 && n < len(products) {
		products = products[:n]
	}
	return products
}

// CrossTabulate sums quantities per (source, destination) pair.
func CrossTabulate(suggestions []models.TransferSuggestion) models.TransferMatrix {
	srcIndex := make(map[models.LocationID]int)
	dstIndex := make(map[models.LocationID]int)
	m := models.TransferMatrix{
		Sources:      make([]models.LocationID, 0),
		Destinations: make([]models.LocationID, 0),
	}
	for _, s := range suggestions {
		if _, ok := srcIndex[s.SourceLocation]; !ok {
			srcIndex[s.SourceLocation] = len(m.Sources)
			m.Sources = append(m.Sources, s.SourceLocation)
		}
		if _, ok := dstIndex[s.DestinationLocation]; !ok {
			dstIndex[s.DestinationLocation] = len(m.Destinations)
			m.Destinations = append(m.Destinations, s.DestinationLocation)
		}
	}

	m.Cells = make([][]int, len(m.Sources))
	for i := range m.Cells {
		m.Cells[i] = make([]int, len(m.Destinations))
	}
	for _, s := range suggestions {
		m.Cells[srcIndex[s.SourceLocation]][dstIndex[s.DestinationLocation]] += s.QuantityToTransfer
	}
	return m
}

// SummarizeTransfers builds every view at once for the API and the workbook.
func SummarizeTransfers(suggestions []models.TransferSuggestion, topN int) models.TransferSummary {
	return models.TransferSummary{
		SuggestionCount: len(suggestions),
		ProductCount:    CountProducts(suggestions),
		LocationCount:   CountLocations(suggestions),
		TotalQuantity:   TotalQuantity(suggestions),
		BySource:        SumBySource(suggestions),
		ByDestination:   SumByDestination(suggestions),
		TopProducts:     TopProducts(suggestions, topN),
		Matrix:          CrossTabulate(suggestions),
	}
}
