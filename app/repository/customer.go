package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vibast-solutions/ms-go-fps-payments/app/entity"
)

var ErrCustomerAlreadyExists = errors.New("customer already exists")

type CustomerRepository struct {
	db DBTX
}

func NewCustomerRepository(db DBTX) *CustomerRepository {
	return &CustomerRepository{db: db}
}

func (r *CustomerRepository) Create(ctx context.Context, customer *entity.Customer) error {
	query := `
		INSERT INTO customers (user_id, customer_id, email, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		customer.UserID,
		customer.CustomerID,
		customer.Email,
		customer.CreatedAt,
		customer.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrCustomerAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	customer.ID = uint64(id)
	return nil
}

func (r *CustomerRepository) FindByUserID(ctx context.Context, userID string) (*entity.Customer, error) {
	return r.findOne(ctx, `WHERE user_id = ?`, userID)
}

func (r *CustomerRepository) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM customers WHERE user_id = ?`, userID)
	return err
}

func (r *CustomerRepository) findOne(ctx context.Context, where string, arg interface{}) (*entity.Customer, error) {
	query := `SELECT id, user_id, customer_id, email, created_at, updated_at FROM customers ` + where + ` LIMIT 1`

	customer := &entity.Customer{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&customer.ID,
		&customer.UserID,
		&customer.CustomerID,
		&customer.Email,
		&customer.CreatedAt,
		&customer.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return customer, nil
}
