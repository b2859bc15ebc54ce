// Package fees holds the payment plan table used to price an FPS checkout.
//
// Amounts are whole euros. The fee is rounded to the euro before conversion to
// cents, so displayed and charged totals always agree.
package fees

import (
	"errors"
	"math"
	"strings"
)

type Method string

const (
	MethodImmediate Method = "immediate"
	MethodSplit3    Method = "split3"
	MethodDeferred  Method = "deferred"
)

var ErrUnknownMethod = errors.New("unknown payment method")

type plan struct {
	rate        float64
	label       string
	feeLabel    string
	extraMethod string
}

var plans = map[Method]plan{
	MethodImmediate: {rate: 0, label: "Paiement immédiat"},
	MethodSplit3:    {rate: 0.20, label: "Paiement en 3 fois", feeLabel: "Paiement fractionné", extraMethod: "klarna"},
	MethodDeferred:  {rate: 0.15, label: "Paiement différé 30 jours", feeLabel: "Paiement différé", extraMethod: "klarna"},
}

func ParseMethod(raw string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := plans[m]; !ok {
		return "", ErrUnknownMethod
	}
	return m, nil
}

func (m Method) Rate() float64 {
	return plans[m].rate
}

// Label is the invoice wording for the payment plan. Unknown values fall back
// to the deferred wording.
func (m Method) Label() string {
	if p, ok := plans[m]; ok {
		return p.label
	}
	return plans[MethodDeferred].label
}

// FeeLabel completes "Frais de service Zenia - <label>" on the fee invoice line.
func (m Method) FeeLabel() string {
	if m == MethodSplit3 {
		return plans[MethodSplit3].feeLabel
	}
	return plans[MethodDeferred].feeLabel
}

// PaymentMethodTypes lists the hosted checkout methods for the plan.
func (m Method) PaymentMethodTypes() []string {
	types := []string{"card"}
	if extra := plans[m].extraMethod; extra != "" {
		types = append(types, extra)
	}
	return types
}

type Breakdown struct {
	Method Method
	Base   int64
	Fee    int64
	Total  int64
}

func Compute(base int64, m Method) Breakdown {
	fee := int64(math.Round(float64(base) * m.Rate()))
	return Breakdown{
		Method: m,
		Base:   base,
		Fee:    fee,
		Total:  base + fee,
	}
}

// Matches reports whether client supplied fee and total agree with the table.
func (b Breakdown) Matches(fee, total int64) bool {
	return b.Fee == fee && b.Total == total
}

func ToCents(euros int64) int64 {
	return euros * 100
}
