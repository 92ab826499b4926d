package discount

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhhieu1/electronic-store/internal/domain/deal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func intPtr(n int) *int {
	return &n
}

func line(price string, qty int) LineItem {
	return LineItem{ProductID: "p1", UnitPrice: dec(price), Quantity: qty}
}

func percentageDeal(pct *decimal.Decimal, minQty *int) deal.Deal {
	return deal.Deal{
		ID:              "d1",
		ProductID:       "p1",
		Type:            deal.Type{ID: "percentage-off", Name: "Percentage Off", StrategyID: StrategyPercentage},
		ExpirationDate:  time.Now().Add(time.Hour),
		DiscountPercent: pct,
		MinimumQuantity: minQty,
	}
}

func fixedDeal(amount *decimal.Decimal, minQty *int) deal.Deal {
	return deal.Deal{
		ID:              "d2",
		ProductID:       "p1",
		Type:            deal.Type{ID: "flat-discount", Name: "Flat Discount", StrategyID: StrategyFixedAmount},
		ExpirationDate:  time.Now().Add(time.Hour),
		DiscountAmount:  amount,
		MinimumQuantity: minQty,
	}
}

func buyNDeal(pct *decimal.Decimal, minQty *int) deal.Deal {
	return deal.Deal{
		ID:              "d3",
		ProductID:       "p1",
		Type:            deal.Type{ID: "buy-n-half-off", Name: "Buy N Get Half Off", StrategyID: StrategyBuyNHalfOff},
		ExpirationDate:  time.Now().Add(time.Hour),
		DiscountPercent: pct,
		MinimumQuantity: minQty,
	}
}

func TestPercentageStrategy(t *testing.T) {
	tests := []struct {
		name string
		item LineItem
		deal deal.Deal
		want string
	}{
		{
			name: "ten percent off two units",
			item: line("100.00", 2),
			deal: percentageDeal(decPtr("10"), nil),
			want: "20",
		},
		{
			name: "rounds half up to cents",
			item: line("49.99", 3), // 149.97 * 10% = 14.997
			deal: percentageDeal(decPtr("10"), nil),
			want: "15",
		},
		{
			name: "nil percent gives nothing",
			item: line("100.00", 2),
			deal: percentageDeal(nil, nil),
			want: "0",
		},
		{
			name: "zero percent gives nothing",
			item: line("100.00", 2),
			deal: percentageDeal(decPtr("0"), nil),
			want: "0",
		},
		{
			name: "negative percent gives nothing",
			item: line("100.00", 2),
			deal: percentageDeal(decPtr("-5"), nil),
			want: "0",
		},
		{
			name: "below minimum quantity gives nothing",
			item: line("100.00", 1),
			deal: percentageDeal(decPtr("10"), intPtr(2)),
			want: "0",
		},
		{
			name: "at minimum quantity applies",
			item: line("100.00", 2),
			deal: percentageDeal(decPtr("10"), intPtr(2)),
			want: "20",
		},
		{
			name: "over one hundred percent exceeds line total",
			item: line("10.00", 1),
			deal: percentageDeal(decPtr("150"), nil),
			want: "15",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PercentageStrategy{}.Apply(tt.item, tt.deal)
			assert.True(t, got.Equal(dec(tt.want)), "got %s, want %s", got, tt.want)
		})
	}
}

func TestFixedAmountStrategy(t *testing.T) {
	tests := []struct {
		name string
		item LineItem
		deal deal.Deal
		want string
	}{
		{
			name: "amount below line total applies in full",
			item: line("10.00", 2),
			deal: fixedDeal(decPtr("5"), nil),
			want: "5",
		},
		{
			name: "amount clamped to line total",
			item: line("10.00", 2),
			deal: fixedDeal(decPtr("50"), nil),
			want: "20",
		},
		{
			name: "nil amount gives nothing",
			item: line("10.00", 2),
			deal: fixedDeal(nil, nil),
			want: "0",
		},
		{
			name: "zero amount gives nothing",
			item: line("10.00", 2),
			deal: fixedDeal(decPtr("0"), nil),
			want: "0",
		},
		{
			name: "negative amount gives nothing",
			item: line("10.00", 2),
			deal: fixedDeal(decPtr("-3"), nil),
			want: "0",
		},
		{
			name: "below minimum quantity gives nothing",
			item: line("10.00", 1),
			deal: fixedDeal(decPtr("5"), intPtr(3)),
			want: "0",
		},
		{
			name: "sub-cent amount is not rounded",
			item: line("100.00", 1),
			deal: fixedDeal(decPtr("5.555"), nil),
			want: "5.555",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FixedAmountStrategy{}.Apply(tt.item, tt.deal)
			assert.True(t, got.Equal(dec(tt.want)), "got %s, want %s", got, tt.want)
		})
	}
}

func TestBuyNHalfOffStrategy(t *testing.T) {
	tests := []struct {
		name string
		item LineItem
		deal deal.Deal
		want string
	}{
		{
			name: "defaults to buy two half off one",
			item: line("10.00", 2),
			deal: buyNDeal(nil, nil),
			want: "5",
		},
		{
			name: "one discounted unit per pair",
			item: line("10.00", 5),
			deal: buyNDeal(nil, nil),
			want: "10", // 2 discounted units at 5.00 each
		},
		{
			name: "below group size gives nothing",
			item: line("10.00", 1),
			deal: buyNDeal(nil, nil),
			want: "0",
		},
		{
			name: "custom group size",
			item: line("10.00", 7),
			deal: buyNDeal(nil, intPtr(3)),
			want: "10", // 7/3 = 2 discounted units
		},
		{
			name: "custom percentage",
			item: line("9.99", 2),
			deal: buyNDeal(decPtr("25"), nil),
			want: "2.50", // 9.99 * 25% = 2.4975, rounded per unit
		},
		{
			name: "per unit rounding happens before scaling",
			item: line("0.05", 4),
			deal: buyNDeal(nil, nil),
			want: "0.06", // 0.025 rounds to 0.03, two units
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuyNHalfOffStrategy{}.Apply(tt.item, tt.deal)
			assert.True(t, got.Equal(dec(tt.want)), "got %s, want %s", got, tt.want)
		})
	}
}

func TestRegistry_Resolve(t *testing.T) {
	r := NewRegistry()

	for _, id := range []string{StrategyPercentage, StrategyFixedAmount, StrategyBuyNHalfOff} {
		s, err := r.Resolve(id)
		require.NoError(t, err)
		require.NotNil(t, s)
	}
}

func TestRegistry_UnknownStrategy(t *testing.T) {
	r := NewRegistry()

	_, err := r.Resolve("loyalty_points")
	require.Error(t, err)

	var unknownErr *UnknownStrategyError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "loyalty_points", unknownErr.StrategyID)
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	r := NewRegistry()
	r.Register(StrategyPercentage, FixedAmountStrategy{})

	s, err := r.Resolve(StrategyPercentage)
	require.NoError(t, err)
	assert.IsType(t, FixedAmountStrategy{}, s)
}

func TestLineItem_Total(t *testing.T) {
	assert.True(t, line("19.99", 3).Total().Equal(dec("59.97")))
}
