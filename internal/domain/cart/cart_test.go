package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "tee-classic:M", Key("tee-classic", "M"))

	li := LineItem{ProductID: "tee-classic", Variant: "M"}
	assert.Equal(t, Key(li.ProductID, li.Variant), li.Key())
}

func TestLineItemSubtotal(t *testing.T) {
	li := LineItem{UnitPrice: decimal.RequireFromString("19.90"), Quantity: 3}
	assert.True(t, li.Subtotal().Equal(decimal.RequireFromString("59.70")))
}

func TestCartTotal(t *testing.T) {
	c := Cart{}
	assert.True(t, c.Total().IsZero(), "empty cart totals zero")

	c["a:M"] = LineItem{UnitPrice: decimal.RequireFromString("10.00"), Quantity: 2}
	c["b:L"] = LineItem{UnitPrice: decimal.RequireFromString("5.50"), Quantity: 1}
	assert.True(t, c.Total().Equal(decimal.RequireFromString("25.50")))
}

func TestCartClone(t *testing.T) {
	orig := Cart{"a:M": LineItem{ProductID: "a", Variant: "M", Quantity: 1}}

	cp := orig.Clone()
	li := cp["a:M"]
	li.Quantity = 5
	cp["a:M"] = li
	cp["b:L"] = LineItem{ProductID: "b", Variant: "L", Quantity: 1}

	assert.Equal(t, 1, orig["a:M"].Quantity)
	assert.Len(t, orig, 1)
}
