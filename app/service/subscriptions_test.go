package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-fps-payments/app/entity"
	"github.com/vibast-solutions/ms-go-fps-payments/app/events"
	"github.com/vibast-solutions/ms-go-fps-payments/app/provider"
)

func TestSyncWithoutSubscriptionStoresNotStarted(t *testing.T) {
	subs := newMemorySubscriptions()
	subID := "sub_old"
	subs.items["cus_1"] = &entity.Subscription{CustomerID: "cus_1", SubscriptionID: &subID, Status: "active"}
	publisher := &recordingPublisher{}
	sync := NewSubscriptionSynchronizer(subs, newFakeProvider(), publisher, time.Hour, 10)

	sub, err := sync.Sync(context.Background(), "cus_1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if sub.Status != entity.SubscriptionStatusNotStarted {
		t.Fatalf("unexpected status: %s", sub.Status)
	}
	stored := subs.items["cus_1"]
	if stored.SubscriptionID != nil || stored.PriceID != nil || stored.CurrentPeriodEnd != nil || stored.PaymentMethodLast4 != nil {
		t.Fatalf("expected optional columns cleared: %+v", stored)
	}
	if len(publisher.events) != 1 || publisher.events[0].Type != events.TypeSubscriptionSynced {
		t.Fatalf("unexpected published events: %+v", publisher.events)
	}
}

func TestSyncMapsSnapshot(t *testing.T) {
	subs := newMemorySubscriptions()
	p := newFakeProvider()
	p.subscriptions["cus_2"] = &provider.SubscriptionSnapshot{
		ID:                 "sub_2",
		PriceID:            "price_2",
		Status:             "active",
		CurrentPeriodStart: 1700000000,
		CurrentPeriodEnd:   1702592000,
		CancelAtPeriodEnd:  true,
		CardBrand:          "visa",
		CardLast4:          "4242",
	}
	sync := NewSubscriptionSynchronizer(subs, p, nil, time.Hour, 10)

	if _, err := sync.Sync(context.Background(), "cus_2"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, err := sync.Sync(context.Background(), "cus_2"); err != nil {
		t.Fatalf("expected no error on repeat, got %v", err)
	}

	stored := subs.items["cus_2"]
	if stored.Status != "active" || *stored.SubscriptionID != "sub_2" || *stored.PriceID != "price_2" {
		t.Fatalf("unexpected subscription: %+v", stored)
	}
	if *stored.CurrentPeriodStart != 1700000000 || *stored.CurrentPeriodEnd != 1702592000 || !stored.CancelAtPeriodEnd {
		t.Fatalf("unexpected period: %+v", stored)
	}
	if *stored.PaymentMethodBrand != "visa" || *stored.PaymentMethodLast4 != "4242" {
		t.Fatalf("unexpected card: %+v", stored)
	}
	if len(subs.items) != 1 || subs.upserts != 2 {
		t.Fatalf("expected one row upserted twice, got %d rows and %d upserts", len(subs.items), subs.upserts)
	}
}

func TestSyncErrors(t *testing.T) {
	p := newFakeProvider()
	subs := newMemorySubscriptions()
	sync := NewSubscriptionSynchronizer(subs, p, nil, time.Hour, 10)

	if _, err := sync.Sync(context.Background(), " "); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}

	p.subscriptionErr = errBoom
	if _, err := sync.Sync(context.Background(), "cus_3"); !errors.Is(err, ErrProviderFailure) {
		t.Fatalf("expected ErrProviderFailure, got %v", err)
	}
	if subs.upserts != 0 {
		t.Fatal("nothing must be written when the provider fails")
	}

	p.subscriptionErr = nil
	subs.upsertErr = errBoom
	if _, err := sync.Sync(context.Background(), "cus_3"); !errors.Is(err, errBoom) {
		t.Fatalf("expected upsert error, got %v", err)
	}
}

func TestRunSubscriptionResyncBatch(t *testing.T) {
	subs := newMemorySubscriptions()
	old := time.Now().UTC().Add(-48 * time.Hour)
	fresh := time.Now().UTC()
	subs.items["cus_old"] = &entity.Subscription{CustomerID: "cus_old", Status: "active", UpdatedAt: old}
	subs.items["cus_fresh"] = &entity.Subscription{CustomerID: "cus_fresh", Status: "active", UpdatedAt: fresh}

	p := newFakeProvider()
	p.subscriptions["cus_old"] = &provider.SubscriptionSnapshot{ID: "sub_old", Status: "canceled"}
	sync := NewSubscriptionSynchronizer(subs, p, nil, 24*time.Hour, 10)

	if err := sync.RunSubscriptionResyncBatch(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if subs.items["cus_old"].Status != "canceled" {
		t.Fatalf("expected stale row refreshed, got %s", subs.items["cus_old"].Status)
	}
	if subs.items["cus_fresh"].Status != "active" || subs.upserts != 1 {
		t.Fatalf("fresh row must not be resynced, upserts=%d", subs.upserts)
	}
}
