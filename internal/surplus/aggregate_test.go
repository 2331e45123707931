// server/internal/surplus/aggregate_test.go
package surplus

import (
	"testing"

	"ecoset-logistics-api-server/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateByNameSplitsNewAndStarted(t *testing.T) {
	items := []models.ConsumableItem{
		{ItemID: "ITEM-1", Name: "Water 1.5L", Unit: "bottle", QuantityCurrent: 10, QuantityStarted: 4},
	}

	rows := AggregateByName(items)
	require.Len(t, rows, 2)

	assert.Equal(t, RowNew, rows[0].Kind)
	assert.Equal(t, 6, rows[0].Quantity)
	assert.Equal(t, RowStarted, rows[1].Kind)
	assert.Equal(t, 4, rows[1].Quantity)

	// Hai hàng là hai phần rời nhau của cùng một stock.
	assert.Equal(t, 10, rows[0].Quantity+rows[1].Quantity)
}

func TestAggregateByNameMergesAcrossItems(t *testing.T) {
	items := []models.ConsumableItem{
		{ItemID: "ITEM-1", Name: "Coffee", Unit: "bag", QuantityCurrent: 3},
		{ItemID: "ITEM-2", Name: "Coffee", Unit: "bag", QuantityCurrent: 2, QuantityStarted: 2},
		{ItemID: "ITEM-3", Name: "Apple juice", Unit: "carton", QuantityCurrent: 5},
	}

	rows := AggregateByName(items)
	require.Len(t, rows, 3)

	// Sort theo name, NEW trước STARTED.
	assert.Equal(t, "Apple juice", rows[0].Name)
	assert.Equal(t, RowNew, rows[0].Kind)
	assert.Equal(t, "Coffee", rows[1].Name)
	assert.Equal(t, RowNew, rows[1].Kind)
	assert.Equal(t, 3, rows[1].Quantity)
	assert.Len(t, rows[1].Items, 1)
	assert.Equal(t, "Coffee", rows[2].Name)
	assert.Equal(t, RowStarted, rows[2].Kind)
	assert.Equal(t, 2, rows[2].Quantity)
}

func TestAggregateByNameDropsEmptyBuckets(t *testing.T) {
	items := []models.ConsumableItem{
		{ItemID: "ITEM-1", Name: "Tape", Unit: "roll", QuantityCurrent: 0},
		{ItemID: "ITEM-2", Name: "Gels", Unit: "sheet", QuantityCurrent: 2, QuantityStarted: 2},
	}

	rows := AggregateByName(items)
	require.Len(t, rows, 1, "empty items and empty new-buckets produce no rows")
	assert.Equal(t, "Gels", rows[0].Name)
	assert.Equal(t, RowStarted, rows[0].Kind)
}

func TestAggregateByNameSanitizesCorruptQuantities(t *testing.T) {
	items := []models.ConsumableItem{
		// started > current: kẹp về current, tất cả về bucket STARTED.
		{ItemID: "ITEM-1", Name: "Wipes", Unit: "pack", QuantityCurrent: 3, QuantityStarted: 7},
	}

	rows := AggregateByName(items)
	require.Len(t, rows, 1)
	assert.Equal(t, RowStarted, rows[0].Kind)
	assert.Equal(t, 3, rows[0].Quantity)
}

func TestFilterByView(t *testing.T) {
	items := []models.ConsumableItem{
		{ItemID: "ITEM-1", SurplusAction: models.ActionNone},
		{ItemID: "ITEM-2", SurplusAction: models.ActionDonation},
		{ItemID: "ITEM-3", SurplusAction: models.ActionShortFilm},
		{ItemID: "ITEM-4", SurplusAction: models.ActionMarketplace},
		{ItemID: "ITEM-5", SurplusAction: models.ActionBuyback},
	}

	cases := []struct {
		view View
		want []string
	}{
		{ViewPending, []string{"ITEM-1"}},
		{ViewDonations, []string{"ITEM-2", "ITEM-3"}},
		{ViewMarketplace, []string{"ITEM-4"}},
		{ViewBuyback, []string{"ITEM-5"}},
		{ViewStorage, []string{}},
	}

	for _, tc := range cases {
		t.Run(string(tc.view), func(t *testing.T) {
			filtered, err := FilterByView(items, tc.view)
			require.NoError(t, err)
			got := make([]string, 0, len(filtered))
			for _, it := range filtered {
				got = append(got, it.ItemID)
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFilterByViewUnknown(t *testing.T) {
	_, err := FilterByView(nil, View("attic"))
	assert.True(t, IsKind(err, KindValidation))
}
