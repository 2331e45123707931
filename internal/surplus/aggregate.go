// server/internal/surplus/aggregate.go
package surplus

import (
	"sort"

	"ecoset-logistics-api-server/internal/models"
)

// RowKind phân biệt hàng hiển thị "new" (chưa mở) và "started" (đã mở).
type RowKind string

const (
	RowNew     RowKind = "NEW"
	RowStarted RowKind = "STARTED"
)

// DisplayRow là một hàng hiển thị tổng hợp theo name. Quantity của hàng NEW
// và STARTED cùng name là hai phần rời nhau của quantityCurrent từng item,
// nên tổng không bao giờ bị đếm trùng.
type DisplayRow struct {
	Name            string                  `json:"name"`
	Kind            RowKind                 `json:"kind"`
	Unit            string                  `json:"unit"`
	Quantity        int                     `json:"quantity"`
	QuantityStarted int                     `json:"quantityStarted,omitempty"`
	Items           []models.ConsumableItem `json:"items"` // Constituent items cho drill-down
}

// AggregateByName gom các item per-unit thành hàng "new"/"started" theo name.
// Mỗi item đóng góp max(0, current-started) vào bucket new và started vào
// bucket started; một item có cả phần chưa mở lẫn đã mở xuất hiện ở cả hai
// hàng. Kết quả sort theo name, NEW trước STARTED trong cùng name.
func AggregateByName(items []models.ConsumableItem) []DisplayRow {
	type key struct {
		name string
		kind RowKind
	}
	buckets := make(map[key]*DisplayRow)

	add := func(k key, item models.ConsumableItem, qty, started int) {
		row, ok := buckets[k]
		if !ok {
			row = &DisplayRow{Name: k.name, Kind: k.kind, Unit: item.Unit}
			buckets[k] = row
		}
		row.Quantity += qty
		row.QuantityStarted += started
		row.Items = append(row.Items, item)
	}

	for _, item := range items {
		item.Sanitize()

		newQty := item.QuantityCurrent - item.QuantityStarted
		if newQty > 0 {
			add(key{item.Name, RowNew}, item, newQty, 0)
		}
		if item.QuantityStarted > 0 {
			add(key{item.Name, RowStarted}, item, item.QuantityStarted, item.QuantityStarted)
		}
	}

	rows := make([]DisplayRow, 0, len(buckets))
	for _, row := range buckets {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Name != rows[j].Name {
			return rows[i].Name < rows[j].Name
		}
		return rows[i].Kind == RowNew && rows[j].Kind == RowStarted
	})
	return rows
}

// View là một trong các danh sách lọc của màn hình surplus.
type View string

const (
	ViewPending     View = "pending"
	ViewMarketplace View = "marketplace"
	ViewDonations   View = "donations"
	ViewStorage     View = "storage"
	ViewBuyback     View = "buyback"
	ViewReleased    View = "released"
)

// viewActions ánh xạ view sang các action bucket nó hiển thị.
// Donations gộp cả SHORT_FILM: cùng một kênh cho đi.
var viewActions = map[View][]models.SurplusAction{
	ViewPending:     {models.ActionNone},
	ViewMarketplace: {models.ActionMarketplace},
	ViewDonations:   {models.ActionDonation, models.ActionShortFilm},
	ViewStorage:     {models.ActionStorage},
	ViewBuyback:     {models.ActionBuyback},
	ViewReleased:    {models.ActionReleased},
}

// FilterByView trả về các item thuộc view cho trước.
func FilterByView(items []models.ConsumableItem, view View) ([]models.ConsumableItem, error) {
	actions, ok := viewActions[view]
	if !ok {
		return nil, errValidationf("unknown view %q", view)
	}

	filtered := []models.ConsumableItem{}
	for _, item := range items {
		for _, action := range actions {
			if item.SurplusAction == action {
				filtered = append(filtered, item)
				break
			}
		}
	}
	return filtered, nil
}
