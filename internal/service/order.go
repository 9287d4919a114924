package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/Skotchmaster/order_app/internal/models"
	"github.com/Skotchmaster/order_app/internal/repo"
)

var (
	ErrValidation = errors.New("validation") // 400
	ErrForbidden  = errors.New("forbidden")  // 403
	ErrNotFound   = errors.New("not found")  // 404
	ErrConflict   = errors.New("conflict")   // 409
)

type OrderService struct {
	Repo *repo.GormRepo
}

type ItemInput struct {
	ProductID uint
	Quantity  uint
	UnitPrice float64
	VAT       float64
	Discount  float64
}

// CreateOrder persists the order and all its lines in one transaction. Input
// is assumed to have passed the validation layer; a store failure here rolls
// everything back and surfaces as a server error.
func (s *OrderService) CreateOrder(ctx context.Context, customerID uint, items []ItemInput) (*models.Order, []models.OrderItem, error) {
	if len(items) == 0 {
		return nil, nil, fmt.Errorf("%w: items must be a non-empty array", ErrValidation)
	}

	rows := make([]models.OrderItem, 0, len(items))
	for _, it := range items {
		rows = append(rows, models.OrderItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			VAT:       it.VAT,
			Discount:  it.Discount,
		})
	}

	order := &models.Order{
		CustomerID: customerID,
		Status:     models.StatusUnconfirmed,
	}
	if err := s.Repo.CreateOrder(ctx, order, rows); err != nil {
		return nil, nil, err
	}
	return order, rows, nil
}

// ChangeStatus applies one transition of the order workflow:
//
//	UNCONFIRMED -> CONFIRMED | CANCELLED
//	CONFIRMED   -> COMPLETED | CANCELLED
//	CANCELLED, COMPLETED terminal
//
// Customers may only cancel their own order, and only while it is still
// UNCONFIRMED; once a worker confirms it, cancellation is a worker action.
func (s *OrderService) ChangeStatus(ctx context.Context, orderID uint, requested, role string, customerID uint) (*models.Order, error) {
	order, err := s.Repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: an order with id %d does not exist", ErrNotFound, orderID)
		}
		return nil, err
	}

	target := models.OrderStatus(strings.ToUpper(requested))
	if !target.Valid() {
		return nil, fmt.Errorf("%w: status must be one of UNCONFIRMED, CONFIRMED, CANCELLED, COMPLETED", ErrValidation)
	}
	if order.Status.Terminal() {
		return nil, fmt.Errorf("%w: order %d is %s, no further changes allowed", ErrValidation, orderID, order.Status)
	}
	if target == order.Status {
		return nil, fmt.Errorf("%w: order %d is already %s", ErrValidation, orderID, target)
	}
	if order.Status == models.StatusUnconfirmed && target == models.StatusCompleted {
		return nil, fmt.Errorf("%w: order %d must be CONFIRMED before it can be COMPLETED", ErrValidation, orderID)
	}
	if order.Status == models.StatusConfirmed && target == models.StatusUnconfirmed {
		return nil, fmt.Errorf("%w: order %d is CONFIRMED and cannot revert to UNCONFIRMED", ErrValidation, orderID)
	}

	if role == "customer" {
		if target != models.StatusCancelled {
			return nil, fmt.Errorf("%w: customers may only cancel orders", ErrForbidden)
		}
		if order.CustomerID != customerID {
			return nil, fmt.Errorf("%w: order %d does not belong to you", ErrForbidden, orderID)
		}
		if order.Status != models.StatusUnconfirmed {
			return nil, fmt.Errorf("%w: order %d is already %s and can only be cancelled by a worker", ErrForbidden, orderID, order.Status)
		}
	}

	if target == models.StatusConfirmed {
		return s.Repo.ConfirmOrder(ctx, orderID)
	}
	return s.Repo.UpdateOrderStatus(ctx, orderID, target)
}

// AddOpinion attaches a write-once rating/review to a finished order.
func (s *OrderService) AddOpinion(ctx context.Context, orderID, customerID uint, rating int, content string) (*models.Opinion, error) {
	order, err := s.Repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: an order with id %d does not exist", ErrNotFound, orderID)
		}
		return nil, err
	}
	if order.CustomerID != customerID {
		return nil, fmt.Errorf("%w: order %d does not belong to you", ErrForbidden, orderID)
	}
	if !order.Status.Terminal() {
		return nil, fmt.Errorf("%w: order %d is %s, opinions can be added only to CANCELLED or COMPLETED orders", ErrValidation, orderID, order.Status)
	}

	opinion := &models.Opinion{OrderID: orderID, Rating: rating, Content: content}
	if err := s.Repo.InsertOpinion(ctx, opinion); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, fmt.Errorf("%w: order %d already has an opinion", ErrConflict, orderID)
		}
		return nil, err
	}
	return opinion, nil
}

// ListOrders is role-scoped: workers see everything, customers their own.
func (s *OrderService) ListOrders(ctx context.Context, role string, customerID uint) ([]models.Order, error) {
	if role == "worker" {
		return s.Repo.ListOrders(ctx)
	}
	return s.Repo.ListOrdersByCustomer(ctx, customerID)
}

type OrderDetail struct {
	Order models.Order       `json:"order"`
	Items []models.OrderItem `json:"items"`
}

func (s *OrderService) GetOrder(ctx context.Context, orderID uint, role string, customerID uint) (*OrderDetail, error) {
	order, err := s.Repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: an order with id %d does not exist", ErrNotFound, orderID)
		}
		return nil, err
	}
	if role != "worker" && order.CustomerID != customerID {
		return nil, fmt.Errorf("%w: an order with id %d does not exist", ErrNotFound, orderID)
	}
	items, err := s.Repo.FindOrderItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &OrderDetail{Order: *order, Items: items}, nil
}

func (s *OrderService) GetOpinion(ctx context.Context, orderID uint, role string, customerID uint) (*models.Opinion, error) {
	order, err := s.Repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: an order with id %d does not exist", ErrNotFound, orderID)
		}
		return nil, err
	}
	if role != "worker" && order.CustomerID != customerID {
		return nil, fmt.Errorf("%w: an order with id %d does not exist", ErrNotFound, orderID)
	}
	opinion, err := s.Repo.FindOpinion(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order %d has no opinion", ErrNotFound, orderID)
		}
		return nil, err
	}
	return opinion, nil
}
