package service

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ordersync/internal/model"
)

func TestNormalizePhone(t *testing.T) {
	got, err := normalizePhone("0550 12-34.56")
	require.NoError(t, err)
	assert.Equal(t, "0550123456", got)

	got, err = normalizePhone("+213 550 123 456")
	require.NoError(t, err)
	assert.Equal(t, "+213550123456", got)
}

func TestNormalizePhoneRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "abc", "12345", "0550123456789012345", "0550x23456"} {
		_, err := normalizePhone(raw)
		assert.ErrorIs(t, err, ErrInvalidPhone, "input %q", raw)
	}
}

func TestMapOrderStatus(t *testing.T) {
	assert.Equal(t, model.OrderStatusConfirmed, mapOrderStatus("Confirmed"))
	assert.Equal(t, model.OrderStatusDelivered, mapOrderStatus("livrée"))
	assert.Equal(t, model.OrderStatusCancelled, mapOrderStatus(" cancelled "))
	assert.Equal(t, model.OrderStatusPending, mapOrderStatus("something new"))
	assert.Equal(t, model.OrderStatusPending, mapOrderStatus(""))
}

func newMockedOrderService(t *testing.T) (*OrderService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewOrderService(db), mock
}

func TestUpdateShippingStatusByReference(t *testing.T) {
	svc, mock := newMockedOrderService(t)

	mock.ExpectQuery(`SELECT id FROM orders WHERE reference`).
		WithArgs("CMD-4521").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("o-1"))
	mock.ExpectExec(`UPDATE orders SET shipping_status`).
		WithArgs("o-1", "ENTREGADO").
		WillReturnResult(sqlmock.NewResult(0, 1))

	orderID, err := svc.UpdateShippingStatus(context.Background(), "CMD-4521", "ENTREGADO")
	require.NoError(t, err)
	assert.Equal(t, "o-1", orderID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateShippingStatusFallsBackToExternalID(t *testing.T) {
	svc, mock := newMockedOrderService(t)

	mock.ExpectQuery(`SELECT id FROM orders WHERE reference`).
		WithArgs("4521").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`SELECT id FROM orders WHERE external_id`).
		WithArgs("4521").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("o-2"))
	mock.ExpectExec(`UPDATE orders SET shipping_status`).
		WithArgs("o-2", "EN RUTA").
		WillReturnResult(sqlmock.NewResult(0, 1))

	orderID, err := svc.UpdateShippingStatus(context.Background(), "4521", "EN RUTA")
	require.NoError(t, err)
	assert.Equal(t, "o-2", orderID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Two stores can legitimately hold the same external order id; a shipping
// update must never touch more than one of them.
func TestUpdateShippingStatusRefusesAmbiguousExternalID(t *testing.T) {
	svc, mock := newMockedOrderService(t)

	mock.ExpectQuery(`SELECT id FROM orders WHERE reference`).
		WithArgs("4521").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`SELECT id FROM orders WHERE external_id`).
		WithArgs("4521").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("store-a-order").AddRow("store-b-order"))

	_, err := svc.UpdateShippingStatus(context.Background(), "4521", "ENTREGADO")
	assert.ErrorIs(t, err, ErrAmbiguousOrderRef)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateShippingStatusUnknownRef(t *testing.T) {
	svc, mock := newMockedOrderService(t)

	mock.ExpectQuery(`SELECT id FROM orders WHERE reference`).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`SELECT id FROM orders WHERE external_id`).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := svc.UpdateShippingStatus(context.Background(), "nope", "ENTREGADO")
	assert.ErrorIs(t, err, ErrOrderNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
