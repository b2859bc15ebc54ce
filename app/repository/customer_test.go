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

func TestCustomerCreate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCustomerRepository(db)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	customer := &entity.Customer{UserID: "user_1", CustomerID: "cus_1", Email: "ana@zenia.example", CreatedAt: now, UpdatedAt: now}

	insert := regexp.QuoteMeta("INSERT INTO customers")
	mock.ExpectExec(insert).
		WithArgs("user_1", "cus_1", "ana@zenia.example", now, now).
		WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectExec(insert).
		WillReturnError(&mysqlDriver.MySQLError{Number: 1062, Message: "Duplicate entry 'user_1'"})
	mock.ExpectExec(insert).
		WillReturnError(&mysqlDriver.MySQLError{Number: 1146, Message: "Table 'customers' doesn't exist"})

	require.NoError(t, repo.Create(context.Background(), customer))
	assert.Equal(t, uint64(5), customer.ID)

	assert.ErrorIs(t, repo.Create(context.Background(), customer), ErrCustomerAlreadyExists)

	err := repo.Create(context.Background(), customer)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCustomerAlreadyExists)
}

func TestCustomerFindByUserID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCustomerRepository(db)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	query := regexp.QuoteMeta("FROM customers WHERE user_id = ? LIMIT 1")
	columns := []string{"id", "user_id", "customer_id", "email", "created_at", "updated_at"}

	mock.ExpectQuery(query).
		WithArgs("user_1").
		WillReturnRows(sqlmock.NewRows(columns).AddRow(int64(5), "user_1", "cus_1", "ana@zenia.example", now, now))
	mock.ExpectQuery(query).
		WithArgs("user_2").
		WillReturnRows(sqlmock.NewRows(columns))

	customer, err := repo.FindByUserID(context.Background(), "user_1")
	require.NoError(t, err)
	require.NotNil(t, customer)
	assert.Equal(t, "cus_1", customer.CustomerID)

	missing, err := repo.FindByUserID(context.Background(), "user_2")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
