package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-fps-payments/app/entity"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderAlreadyExists = errors.New("order already exists")
)

const orderColumns = `
	id, checkout_session_id, payment_intent_id, customer_id,
	amount_subtotal, amount_total, currency, payment_status, status,
	invoice_id, invoice_url, invoice_sent_at, metadata_json,
	created_at, updated_at
`

type OrderRepository struct {
	db DBTX
}

func NewOrderRepository(db DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts the order. A second insert for the same checkout session
// returns ErrOrderAlreadyExists.
func (r *OrderRepository) Create(ctx context.Context, order *entity.Order) error {
	metadataJSON, err := serializeMetadata(order.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO orders (
			checkout_session_id, payment_intent_id, customer_id,
			amount_subtotal, amount_total, currency, payment_status, status,
			invoice_id, invoice_url, invoice_sent_at, metadata_json,
			created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		order.CheckoutSessionID,
		nullableValue(order.PaymentIntentID),
		order.CustomerID,
		order.AmountSubtotal,
		order.AmountTotal,
		order.Currency,
		order.PaymentStatus,
		order.Status,
		nullableValue(order.InvoiceID),
		nullableValue(order.InvoiceURL),
		nullableValue(order.InvoiceSentAt),
		metadataJSON,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrOrderAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	order.ID = uint64(id)
	return nil
}

func (r *OrderRepository) AttachInvoice(ctx context.Context, checkoutSessionID, invoiceID, invoiceURL string, sentAt time.Time) error {
	query := `
		UPDATE orders SET
			invoice_id = ?,
			invoice_url = ?,
			invoice_sent_at = ?,
			updated_at = ?
		WHERE checkout_session_id = ?
	`

	result, err := r.db.ExecContext(ctx, query, invoiceID, invoiceURL, sentAt, sentAt, checkoutSessionID)
	if err != nil {
		return err
	}

	if ok, err := affectedOne(result); err != nil {
		return err
	} else if !ok {
		return ErrOrderNotFound
	}
	return nil
}

func (r *OrderRepository) FindByCheckoutSessionID(ctx context.Context, checkoutSessionID string) (*entity.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE checkout_session_id = ? LIMIT 1`

	order := &entity.Order{}
	if err := scanOrder(r.db.QueryRowContext(ctx, query, checkoutSessionID), order); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return order, nil
}

func (r *OrderRepository) DeleteByCustomerID(ctx context.Context, customerID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE customer_id = ?`, customerID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func scanOrder(row rowScanner, order *entity.Order) error {
	var (
		paymentIntentID sql.Null[string]
		invoiceID       sql.Null[string]
		invoiceURL      sql.Null[string]
		invoiceSentAt   sql.Null[time.Time]
		metadataJSON    string
	)

	err := row.Scan(
		&order.ID,
		&order.CheckoutSessionID,
		&paymentIntentID,
		&order.CustomerID,
		&order.AmountSubtotal,
		&order.AmountTotal,
		&order.Currency,
		&order.PaymentStatus,
		&order.Status,
		&invoiceID,
		&invoiceURL,
		&invoiceSentAt,
		&metadataJSON,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return err
	}

	metadata, err := parseMetadata(metadataJSON)
	if err != nil {
		return err
	}

	order.PaymentIntentID = ptrFromNull(paymentIntentID)
	order.InvoiceID = ptrFromNull(invoiceID)
	order.InvoiceURL = ptrFromNull(invoiceURL)
	order.InvoiceSentAt = ptrFromNull(invoiceSentAt)
	order.Metadata = metadata
	return nil
}
