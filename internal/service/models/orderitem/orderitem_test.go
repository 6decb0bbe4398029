package orderitem_test

import (
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/curbfare/fulfillment/internal/service/models/orderitem"
	"github.com/stretchr/testify/require"
)

func validItem() orderitem.OrderItem {
	return orderitem.OrderItem{
		Name:       gofakeit.Dinner(),
		PriceCents: int64(gofakeit.Number(100, 5000)),
		Quantity:   gofakeit.Number(1, 5),
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		items   []orderitem.OrderItem
		wantErr error
	}{
		{
			name:  "valid cart",
			items: []orderitem.OrderItem{validItem(), validItem()},
		},
		{
			name:    "empty cart",
			wantErr: orderitem.ErrEmptyCart,
		},
		{
			name: "zero quantity",
			items: func() []orderitem.OrderItem {
				item := validItem()
				item.Quantity = 0
				return []orderitem.OrderItem{item}
			}(),
			wantErr: orderitem.ErrInvalidQuantity,
		},
		{
			name: "negative price",
			items: func() []orderitem.OrderItem {
				item := validItem()
				item.PriceCents = -100
				return []orderitem.OrderItem{item}
			}(),
			wantErr: orderitem.ErrInvalidPrice,
		},
		{
			name: "missing name",
			items: func() []orderitem.OrderItem {
				item := validItem()
				item.Name = ""
				return []orderitem.OrderItem{item}
			}(),
			wantErr: orderitem.ErrMissingName,
		},
		{
			name: "one bad line fails the cart",
			items: func() []orderitem.OrderItem {
				bad := validItem()
				bad.Quantity = -1
				return []orderitem.OrderItem{validItem(), bad}
			}(),
			wantErr: orderitem.ErrInvalidQuantity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := orderitem.Validate(tt.items)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}
