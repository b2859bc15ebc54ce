package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibast-solutions/ms-go-fps-payments/app/entity"
)

var orderColumnNames = []string{
	"id", "checkout_session_id", "payment_intent_id", "customer_id",
	"amount_subtotal", "amount_total", "currency", "payment_status", "status",
	"invoice_id", "invoice_url", "invoice_sent_at", "metadata_json",
	"created_at", "updated_at",
}

func TestOrderCreateStoresNullsAndSetsID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOrderRepository(db)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	order := &entity.Order{
		CheckoutSessionID: "cs_1",
		PaymentIntentID:   strPtr("pi_1"),
		CustomerID:        "cus_1",
		AmountSubtotal:    4200,
		AmountTotal:       4200,
		Currency:          "eur",
		PaymentStatus:     "paid",
		Status:            entity.OrderStatusCompleted,
		Metadata:          map[string]string{"fps_amount": "4000"},
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO orders")).
		WithArgs("cs_1", "pi_1", "cus_1", int64(4200), int64(4200), "eur", "paid", entity.OrderStatusCompleted,
			nil, nil, nil, `{"fps_amount":"4000"}`, now, now).
		WillReturnResult(sqlmock.NewResult(17, 1))

	require.NoError(t, repo.Create(context.Background(), order))
	assert.Equal(t, uint64(17), order.ID)
}

func TestOrderCreateDuplicateSession(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOrderRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO orders")).
		WillReturnError(&mysqlDriver.MySQLError{Number: 1062, Message: "Duplicate entry 'cs_1'"})

	err := repo.Create(context.Background(), &entity.Order{CheckoutSessionID: "cs_1"})
	assert.ErrorIs(t, err, ErrOrderAlreadyExists)
}

func TestOrderAttachInvoice(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOrderRepository(db)
	sentAt := time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET")).
		WithArgs("in_1", "https://invoice.example/in_1", sentAt, sentAt, "cs_1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET")).
		WithArgs("in_1", "https://invoice.example/in_1", sentAt, sentAt, "cs_missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.AttachInvoice(context.Background(), "cs_1", "in_1", "https://invoice.example/in_1", sentAt))

	err := repo.AttachInvoice(context.Background(), "cs_missing", "in_1", "https://invoice.example/in_1", sentAt)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestOrderFindByCheckoutSessionID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOrderRepository(db)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	query := regexp.QuoteMeta("FROM orders WHERE checkout_session_id = ? LIMIT 1")

	mock.ExpectQuery(query).
		WithArgs("cs_1").
		WillReturnRows(sqlmock.NewRows(orderColumnNames).AddRow(
			int64(3), "cs_1", nil, "cus_1",
			int64(4200), int64(4200), "eur", "paid", entity.OrderStatusCompleted,
			"in_1", nil, now, `{"txr_fee":"150"}`,
			now, now,
		))
	mock.ExpectQuery(query).
		WithArgs("cs_missing").
		WillReturnRows(sqlmock.NewRows(orderColumnNames))

	order, err := repo.FindByCheckoutSessionID(context.Background(), "cs_1")
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Equal(t, uint64(3), order.ID)
	assert.Nil(t, order.PaymentIntentID)
	assert.Nil(t, order.InvoiceURL)
	require.NotNil(t, order.InvoiceID)
	assert.Equal(t, "in_1", *order.InvoiceID)
	require.NotNil(t, order.InvoiceSentAt)
	assert.True(t, now.Equal(*order.InvoiceSentAt))
	assert.Equal(t, map[string]string{"txr_fee": "150"}, order.Metadata)
	assert.True(t, order.HasInvoice())

	missing, err := repo.FindByCheckoutSessionID(context.Background(), "cs_missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestOrderDeleteByCustomerID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOrderRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM orders WHERE customer_id = ?")).
		WithArgs("cus_1").
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.DeleteByCustomerID(context.Background(), "cus_1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}
