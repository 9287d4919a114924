// Package repo is the only place that talks to gorm. The service layer works
// against these typed methods instead of query text.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/order_app/internal/models"
)

// ErrDuplicate is returned when a store-level unique index rejects a row.
var ErrDuplicate = errors.New("duplicate record")

type GormRepo struct {
	DB *gorm.DB
}

func New(db *gorm.DB) *GormRepo {
	return &GormRepo{DB: db}
}

func (r *GormRepo) exists(ctx context.Context, model any, id uint) (bool, error) {
	var n int64
	if err := r.DB.WithContext(ctx).Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *GormRepo) CategoryExists(ctx context.Context, id uint) (bool, error) {
	return r.exists(ctx, &models.Category{}, id)
}

func (r *GormRepo) CustomerExists(ctx context.Context, id uint) (bool, error) {
	return r.exists(ctx, &models.Customer{}, id)
}

func (r *GormRepo) ProductExists(ctx context.Context, id uint) (bool, error) {
	return r.exists(ctx, &models.Product{}, id)
}

func (r *GormRepo) OrderExists(ctx context.Context, id uint) (bool, error) {
	return r.exists(ctx, &models.Order{}, id)
}

func (r *GormRepo) taken(ctx context.Context, model any, column, value string) (bool, error) {
	var n int64
	if err := r.DB.WithContext(ctx).Model(model).Where(column+" = ?", value).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *GormRepo) EmailTaken(ctx context.Context, email string) (bool, error) {
	return r.taken(ctx, &models.Customer{}, "email", email)
}

func (r *GormRepo) PhoneTaken(ctx context.Context, phone string) (bool, error) {
	return r.taken(ctx, &models.Customer{}, "phone", phone)
}

func (r *GormRepo) LoginTaken(ctx context.Context, login string) (bool, error) {
	return r.taken(ctx, &models.User{}, "login", login)
}

// CreateOrder inserts the order row and every item in one transaction. A
// failing item insert rolls back the order row too, so a partial order never
// persists.
func (r *GormRepo) CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order.CreatedAt = time.Now().Unix()
		if err := tx.Create(order).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].OrderID = order.ID
			if err := tx.Create(&items[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *GormRepo) FindOrder(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	if err := r.DB.WithContext(ctx).First(&order, id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *GormRepo) FindOrderItems(ctx context.Context, orderID uint) ([]models.OrderItem, error) {
	var items []models.OrderItem
	if err := r.DB.WithContext(ctx).Where("order_id = ?", orderID).Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *GormRepo) ListOrders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	if err := r.DB.WithContext(ctx).Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *GormRepo) ListOrdersByCustomer(ctx context.Context, customerID uint) ([]models.Order, error) {
	var orders []models.Order
	if err := r.DB.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// ConfirmOrder and UpdateOrderStatus perform the same field update today; the
// confirm path is kept separate so stock adjustment can hang off it later.
func (r *GormRepo) ConfirmOrder(ctx context.Context, id uint) (*models.Order, error) {
	return r.setStatus(ctx, id, models.StatusConfirmed)
}

func (r *GormRepo) UpdateOrderStatus(ctx context.Context, id uint, status models.OrderStatus) (*models.Order, error) {
	return r.setStatus(ctx, id, status)
}

func (r *GormRepo) setStatus(ctx context.Context, id uint, status models.OrderStatus) (*models.Order, error) {
	if err := r.DB.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Update("status", status).Error; err != nil {
		return nil, err
	}
	return r.FindOrder(ctx, id)
}

func (r *GormRepo) InsertOpinion(ctx context.Context, opinion *models.Opinion) error {
	if err := r.DB.WithContext(ctx).Create(opinion).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *GormRepo) FindOpinion(ctx context.Context, orderID uint) (*models.Opinion, error) {
	var opinion models.Opinion
	if err := r.DB.WithContext(ctx).Where("order_id = ?", orderID).First(&opinion).Error; err != nil {
		return nil, err
	}
	return &opinion, nil
}

// RegisterCustomer inserts the customer and the credential row atomically,
// mirroring the order-creation transaction.
func (r *GormRepo) RegisterCustomer(ctx context.Context, customer *models.Customer, user *models.User) error {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(customer).Error; err != nil {
			return err
		}
		user.CustomerID = &customer.ID
		return tx.Create(user).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

func (r *GormRepo) FindUserByLogin(ctx context.Context, login string) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where("login = ?", login).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GormRepo) FindUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// SaveTokens stores the latest issued pair, superseding any previous session.
func (r *GormRepo) SaveTokens(ctx context.Context, userID uint, access, refresh string) error {
	return r.DB.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{"access_token": access, "refresh_token": refresh}).Error
}

func (r *GormRepo) FindCustomer(ctx context.Context, id uint) (*models.Customer, error) {
	var customer models.Customer
	if err := r.DB.WithContext(ctx).First(&customer, id).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *GormRepo) FindProduct(ctx context.Context, id uint) (*models.Product, error) {
	var product models.Product
	if err := r.DB.WithContext(ctx).First(&product, id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *GormRepo) ListProducts(ctx context.Context, offset, limit int) (int64, []models.Product, error) {
	var total int64
	if err := r.DB.WithContext(ctx).Model(&models.Product{}).Count(&total).Error; err != nil {
		return 0, nil, err
	}
	var products []models.Product
	if err := r.DB.WithContext(ctx).
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&products).Error; err != nil {
		return 0, nil, err
	}
	return total, products, nil
}

func (r *GormRepo) CreateProduct(ctx context.Context, product *models.Product) error {
	return r.DB.WithContext(ctx).Create(product).Error
}

func (r *GormRepo) UpdateProduct(ctx context.Context, id uint, fields map[string]any) (*models.Product, error) {
	if err := r.DB.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Updates(fields).Error; err != nil {
		return nil, err
	}
	return r.FindProduct(ctx, id)
}

func (r *GormRepo) ListCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if err := r.DB.WithContext(ctx).Order("id ASC").Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}
