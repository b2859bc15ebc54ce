package mapper

import (
	"github.com/vibast-solutions/ms-go-fps-payments/app/provider"
	"github.com/vibast-solutions/ms-go-fps-payments/app/types"
)

// SessionToView fills the defaults the success page relies on when the
// session predates a metadata key.
func SessionToView(item *provider.SessionDetails) *types.SessionViewResponse {
	if item == nil {
		return nil
	}

	md := item.Metadata
	return &types.SessionViewResponse{
		AmountTotal:   item.AmountTotal,
		Currency:      withDefault(item.Currency, "eur"),
		PaymentStatus: withDefault(item.PaymentStatus, "unpaid"),
		Metadata: types.SessionMetadata{
			FPSNumber:     md["fps_number"],
			FPSKey:        md["fps_key"],
			LicensePlate:  md["license_plate"],
			FPSAmount:     withDefault(md["fps_amount"], "0"),
			ServiceFees:   withDefault(md["service_fees"], "0"),
			TotalAmount:   withDefault(md["total_amount"], "0"),
			PaymentMethod: withDefault(md["payment_method"], "immediate"),
		},
		CustomerDetails: types.CustomerDetails{
			Email: item.CustomerEmail,
			Name:  item.CustomerName,
		},
	}
}

func CheckoutSessionToResponse(item *provider.CheckoutSession) *types.CheckoutSessionResponse {
	if item == nil {
		return nil
	}
	return &types.CheckoutSessionResponse{URL: item.URL, SessionID: item.ID}
}

func withDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func derefInt64(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
