// Package pricing computes line and cart totals. It is pure: no I/O, no
// validation beyond treating unknown discount types as fixed amounts.
package pricing

import (
	"salepoint/backend/internal/domain"
	"salepoint/backend/internal/money"
)

// Line is the priced result of a single cart line.
type Line struct {
	Subtotal       float64
	DiscountAmount float64
	AfterDiscount  float64
	Tax            float64
	Total          float64
}

// Cart is the priced result of a whole cart.
type Cart struct {
	Subtotal       float64
	DiscountAmount float64
	AfterDiscount  float64
	Tax            float64
	GrandTotal     float64
}

// ComputeLine prices one line. The discount applies to the line subtotal and
// tax is computed on the discounted amount.
func ComputeLine(qty, unitPrice, discount float64, discountType string, taxRate float64) Line {
	subtotal := money.Round2(qty * unitPrice)

	discountAmount := discount
	if discountType == domain.DiscountTypePercentage {
		discountAmount = subtotal * discount / 100
	}
	discountAmount = money.Round2(discountAmount)

	afterDiscount := money.Round2(subtotal - discountAmount)
	tax := money.Round2(afterDiscount * taxRate / 100)

	return Line{
		Subtotal:       subtotal,
		DiscountAmount: discountAmount,
		AfterDiscount:  afterDiscount,
		Tax:            tax,
		Total:          money.Round2(afterDiscount + tax),
	}
}

// ComputeCart aggregates priced items and applies one overall discount on top
// of the summed item subtotals. The cart discount total includes the item-level
// discounts; a percentage overall discount is taken on the summed subtotal.
// Item taxes are already computed on each line's discounted amount and carry
// through unchanged.
func ComputeCart(items []domain.SaleItem, discount float64, discountType string) Cart {
	var subtotal, itemDiscount, tax float64
	for _, it := range items {
		subtotal += it.Subtotal
		tax += it.Tax
		lineDiscount := it.Discount
		if it.DiscountType == domain.DiscountTypePercentage {
			lineDiscount = it.Subtotal * it.Discount / 100
		}
		itemDiscount += lineDiscount
	}
	subtotal = money.Round2(subtotal)
	itemDiscount = money.Round2(itemDiscount)
	tax = money.Round2(tax)

	overallDiscount := discount
	if discountType == domain.DiscountTypePercentage {
		overallDiscount = subtotal * discount / 100
	}
	overallDiscount = money.Round2(overallDiscount)

	discountAmount := money.Round2(itemDiscount + overallDiscount)
	afterDiscount := money.Round2(subtotal - discountAmount)

	return Cart{
		Subtotal:       subtotal,
		DiscountAmount: discountAmount,
		AfterDiscount:  afterDiscount,
		Tax:            tax,
		GrandTotal:     money.Round2(afterDiscount + tax),
	}
}
