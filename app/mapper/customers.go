package mapper

import (
	"time"

	"github.com/vibast-solutions/ms-go-fps-payments/app/entity"
	"github.com/vibast-solutions/ms-go-fps-payments/app/provider"
	"github.com/vibast-solutions/ms-go-fps-payments/app/service"
	"github.com/vibast-solutions/ms-go-fps-payments/app/types"
)

func PaymentMethodToResponse(item *provider.PaymentMethod) *types.PaymentMethod {
	if item == nil {
		return nil
	}

	out := &types.PaymentMethod{ID: item.ID, Type: item.Type}
	if item.Card != nil {
		out.Card = &types.Card{
			Brand:    item.Card.Brand,
			Last4:    item.Card.Last4,
			ExpMonth: item.Card.ExpMonth,
			ExpYear:  item.Card.ExpYear,
		}
	}
	if item.Type == "link" {
		out.Link = &types.Link{Email: item.LinkEmail}
	}
	return out
}

// PaymentMethodsToResponse leaves customer null when the user has no usable
// provider customer.
func PaymentMethodsToResponse(item *service.PaymentMethods) *types.PaymentMethodsResponse {
	out := &types.PaymentMethodsResponse{PaymentMethods: make([]*types.PaymentMethod, 0)}
	if item == nil {
		return out
	}

	out.Message = item.Message
	for _, pm := range item.Methods {
		out.PaymentMethods = append(out.PaymentMethods, PaymentMethodToResponse(pm))
	}
	if item.CustomerID != "" {
		out.Customer = &types.CustomerSummary{CustomerID: item.CustomerID}
		if item.DefaultPaymentMethodID != "" {
			defaultID := item.DefaultPaymentMethodID
			out.Customer.DefaultPaymentMethod = &defaultID
		}
	}
	return out
}

func SubscriptionToResponse(item *entity.Subscription) *types.Subscription {
	if item == nil {
		return nil
	}

	return &types.Subscription{
		CustomerID:         item.CustomerID,
		SubscriptionID:     derefString(item.SubscriptionID),
		PriceID:            derefString(item.PriceID),
		CurrentPeriodStart: derefInt64(item.CurrentPeriodStart),
		CurrentPeriodEnd:   derefInt64(item.CurrentPeriodEnd),
		CancelAtPeriodEnd:  item.CancelAtPeriodEnd,
		PaymentMethodBrand: derefString(item.PaymentMethodBrand),
		PaymentMethodLast4: derefString(item.PaymentMethodLast4),
		Status:             item.Status,
		UpdatedAt:          item.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
