package service

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/order_app/internal/config"
	"github.com/Skotchmaster/order_app/internal/models"
	"github.com/Skotchmaster/order_app/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	if err := config.Migrate(db); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}
	return db
}

func newOrderEnv(t *testing.T) (*OrderService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)

	db.Create(&models.Category{Name: "tools"})
	db.Create(&models.Product{Name: "hammer", Description: "", Price: 10, Weight: 0.5, CategoryID: 1})
	db.Create(&models.Product{Name: "saw", Description: "", Price: 25, Weight: 1.2, CategoryID: 1})
	db.Create(&models.Customer{Username: "alice", Email: "alice@example.com", Phone: "123-456-789"})
	db.Create(&models.Customer{Username: "bob", Email: "bob@example.com", Phone: "987-654-321"})

	return &OrderService{Repo: repo.New(db)}, db
}

func seedOrder(t *testing.T, svc *OrderService, customerID uint) *models.Order {
	t.Helper()
	order, _, err := svc.CreateOrder(context.Background(), customerID, []ItemInput{
		{ProductID: 1, Quantity: 2, UnitPrice: 10},
	})
	require.NoError(t, err)
	return order
}

func countRows(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func TestCreateOrder_PersistsOrderAndItems(t *testing.T) {
	svc, db := newOrderEnv(t)

	order, items, err := svc.CreateOrder(context.Background(), 1, []ItemInput{
		{ProductID: 1, Quantity: 2, UnitPrice: 10, VAT: 23},
		{ProductID: 2, Quantity: 1, UnitPrice: 25, Discount: 0.1},
	})
	require.NoError(t, err)
	require.NotZero(t, order.ID)
	assert.Equal(t, models.StatusUnconfirmed, order.Status)
	assert.NotZero(t, order.CreatedAt)
	require.Len(t, items, 2)
	for _, it := range items {
		assert.Equal(t, order.ID, it.OrderID)
	}

	assert.EqualValues(t, 1, countRows(t, db, &models.Order{}))
	assert.EqualValues(t, 2, countRows(t, db, &models.OrderItem{}))
}

func TestCreateOrder_RollsBackOnItemFailure(t *testing.T) {
	svc, db := newOrderEnv(t)

	// abort the transaction when the second item hits the store
	require.NoError(t, db.Exec(`
		CREATE TRIGGER fail_poison_item BEFORE INSERT ON order_items
		WHEN NEW.product_id = 999
		BEGIN
			SELECT RAISE(ABORT, 'forced item failure');
		END`).Error)

	_, _, err := svc.CreateOrder(context.Background(), 1, []ItemInput{
		{ProductID: 1, Quantity: 2, UnitPrice: 10},
		{ProductID: 999, Quantity: 1, UnitPrice: 5},
	})
	require.Error(t, err)

	assert.EqualValues(t, 0, countRows(t, db, &models.Order{}))
	assert.EqualValues(t, 0, countRows(t, db, &models.OrderItem{}))
}

func TestCreateOrder_RejectsEmptyItems(t *testing.T) {
	svc, _ := newOrderEnv(t)

	_, _, err := svc.CreateOrder(context.Background(), 1, nil)
	require.ErrorIs(t, err, ErrValidation)
}

func TestChangeStatus_MissingOrder(t *testing.T) {
	svc, _ := newOrderEnv(t)

	_, err := svc.ChangeStatus(context.Background(), 42, "CONFIRMED", "worker", 0)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestChangeStatus_UnknownStatus(t *testing.T) {
	svc, _ := newOrderEnv(t)
	order := seedOrder(t, svc, 1)

	_, err := svc.ChangeStatus(context.Background(), order.ID, "SHIPPED", "worker", 0)
	require.ErrorIs(t, err, ErrValidation)
}

func TestChangeStatus_LowercaseIsNormalized(t *testing.T) {
	svc, _ := newOrderEnv(t)
	order := seedOrder(t, svc, 1)

	updated, err := svc.ChangeStatus(context.Background(), order.ID, "confirmed", "worker", 0)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, updated.Status)
}

func TestChangeStatus_CannotSkipToCompleted(t *testing.T) {
	svc, _ := newOrderEnv(t)
	order := seedOrder(t, svc, 1)

	for _, role := range []string{"worker", "customer"} {
		_, err := svc.ChangeStatus(context.Background(), order.ID, "COMPLETED", role, 1)
		require.Error(t, err, "role %s", role)
	}
}

func TestChangeStatus_TerminalIsFinal(t *testing.T) {
	svc, _ := newOrderEnv(t)
	order := seedOrder(t, svc, 1)
	ctx := context.Background()

	_, err := svc.ChangeStatus(ctx, order.ID, "CANCELLED", "worker", 0)
	require.NoError(t, err)

	for _, target := range []string{"UNCONFIRMED", "CONFIRMED", "COMPLETED", "CANCELLED"} {
		_, err := svc.ChangeStatus(ctx, order.ID, target, "worker", 0)
		require.ErrorIs(t, err, ErrValidation, "target %s", target)
	}
}

func TestChangeStatus_NoOpRejected(t *testing.T) {
	svc, _ := newOrderEnv(t)
	order := seedOrder(t, svc, 1)

	_, err := svc.ChangeStatus(context.Background(), order.ID, "UNCONFIRMED", "worker", 0)
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "already")
}

func TestChangeStatus_NoRevertOnceConfirmed(t *testing.T) {
	svc, _ := newOrderEnv(t)
	order := seedOrder(t, svc, 1)
	ctx := context.Background()

	_, err := svc.ChangeStatus(ctx, order.ID, "CONFIRMED", "worker", 0)
	require.NoError(t, err)

	_, err = svc.ChangeStatus(ctx, order.ID, "UNCONFIRMED", "worker", 0)
	require.ErrorIs(t, err, ErrValidation)
}

func TestChangeStatus_CustomerCanCancelOwnUnconfirmed(t *testing.T) {
	svc, _ := newOrderEnv(t)
	order := seedOrder(t, svc, 1)

	updated, err := svc.ChangeStatus(context.Background(), order.ID, "CANCELLED", "customer", 1)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, updated.Status)
}

func TestChangeStatus_CustomerCannotCancelForeignOrder(t *testing.T) {
	svc, _ := newOrderEnv(t)
	order := seedOrder(t, svc, 1)

	_, err := svc.ChangeStatus(context.Background(), order.ID, "CANCELLED", "customer", 2)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestChangeStatus_CustomerCannotConfirm(t *testing.T) {
	svc, _ := newOrderEnv(t)
	order := seedOrder(t, svc, 1)

	_, err := svc.ChangeStatus(context.Background(), order.ID, "CONFIRMED", "customer", 1)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestChangeStatus_ConfirmedOrderNotCustomerCancellable(t *testing.T) {
	svc, _ := newOrderEnv(t)
	order := seedOrder(t, svc, 1)
	ctx := context.Background()

	updated, err := svc.ChangeStatus(ctx, order.ID, "CONFIRMED", "worker", 0)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, updated.Status)

	_, err = svc.ChangeStatus(ctx, order.ID, "CANCELLED", "customer", 1)
	require.ErrorIs(t, err, ErrForbidden)

	// the worker can still cancel or complete it
	updated, err = svc.ChangeStatus(ctx, order.ID, "COMPLETED", "worker", 0)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, updated.Status)
}

func TestAddOpinion_RequiresTerminalStatus(t *testing.T) {
	svc, _ := newOrderEnv(t)
	order := seedOrder(t, svc, 1)
	ctx := context.Background()

	_, err := svc.AddOpinion(ctx, order.ID, 1, 4, "too early")
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "UNCONFIRMED")

	_, err = svc.ChangeStatus(ctx, order.ID, "CONFIRMED", "worker", 0)
	require.NoError(t, err)

	_, err = svc.AddOpinion(ctx, order.ID, 1, 4, "still too early")
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "CONFIRMED")

	_, err = svc.ChangeStatus(ctx, order.ID, "COMPLETED", "worker", 0)
	require.NoError(t, err)

	opinion, err := svc.AddOpinion(ctx, order.ID, 1, 4, "solid")
	require.NoError(t, err)
	assert.Equal(t, 4, opinion.Rating)
	assert.Equal(t, order.ID, opinion.OrderID)
}

func TestAddOpinion_AllowedOnCancelled(t *testing.T) {
	svc, _ := newOrderEnv(t)
	order := seedOrder(t, svc, 1)
	ctx := context.Background()

	_, err := svc.ChangeStatus(ctx, order.ID, "CANCELLED", "worker", 0)
	require.NoError(t, err)

	_, err = svc.AddOpinion(ctx, order.ID, 1, 1, "cancelled on me")
	require.NoError(t, err)
}

func TestAddOpinion_OwnershipAndWriteOnce(t *testing.T) {
	svc, _ := newOrderEnv(t)
	order := seedOrder(t, svc, 1)
	ctx := context.Background()

	_, err := svc.ChangeStatus(ctx, order.ID, "CANCELLED", "worker", 0)
	require.NoError(t, err)

	_, err = svc.AddOpinion(ctx, order.ID, 2, 3, "not my order")
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.AddOpinion(ctx, order.ID, 1, 3, "first")
	require.NoError(t, err)

	_, err = svc.AddOpinion(ctx, order.ID, 1, 5, "second")
	require.ErrorIs(t, err, ErrConflict)
}

func TestAddOpinion_MissingOrder(t *testing.T) {
	svc, _ := newOrderEnv(t)

	_, err := svc.AddOpinion(context.Background(), 42, 1, 3, "")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListOrders_RoleScoped(t *testing.T) {
	svc, _ := newOrderEnv(t)
	ctx := context.Background()

	seedOrder(t, svc, 1)
	seedOrder(t, svc, 1)
	seedOrder(t, svc, 2)

	all, err := svc.ListOrders(ctx, "worker", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	own, err := svc.ListOrders(ctx, "customer", 1)
	require.NoError(t, err)
	assert.Len(t, own, 2)
	for _, o := range own {
		assert.EqualValues(t, 1, o.CustomerID)
	}
}

func TestGetOrder_RoleScoped(t *testing.T) {
	svc, _ := newOrderEnv(t)
	order := seedOrder(t, svc, 1)
	ctx := context.Background()

	detail, err := svc.GetOrder(ctx, order.ID, "worker", 0)
	require.NoError(t, err)
	assert.Len(t, detail.Items, 1)

	detail, err = svc.GetOrder(ctx, order.ID, "customer", 1)
	require.NoError(t, err)
	assert.Equal(t, order.ID, detail.Order.ID)

	// a foreign order looks like it does not exist
	_, err = svc.GetOrder(ctx, order.ID, "customer", 2)
	require.ErrorIs(t, err, ErrNotFound)
}
