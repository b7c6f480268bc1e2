package domain

import "errors"

// DiscountType selects how a discount value is interpreted.
type DiscountType string

const (
	DiscountNone    DiscountType = "none"
	DiscountPercent DiscountType = "percent"
	DiscountAmount  DiscountType = "amount"
)

// Discount is chosen when the ride starts and stays fixed for the ride.
type Discount struct {
	Type  DiscountType `json:"type"`
	Value float64      `json:"value"`
}

// ErrInvalidDiscount is returned for an unknown type or an out-of-range value.
var ErrInvalidDiscount = errors.New("invalid discount")

// Validate checks the discount type and value. An empty type is treated as none.
func (d Discount) Validate() error {
	if d.Value < 0 {
		return ErrInvalidDiscount
	}
	switch d.Type {
	case "", DiscountNone, DiscountAmount:
		return nil
	case DiscountPercent:
		if d.Value > 100 {
			return ErrInvalidDiscount
		}
		return nil
	}
	return ErrInvalidDiscount
}
