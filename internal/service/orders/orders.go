package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/skorokhod/furniture_shop/internal/apperr"
	"github.com/skorokhod/furniture_shop/internal/models"
)

// Service turns item requests into persisted orders. Every write path is
// validate-then-commit: missing furniture aborts before anything is written,
// and the order, its items and the cart clear share one transaction.
type Service struct {
	DB *gorm.DB
	// Timeout bounds each operation's database work; zero disables it.
	Timeout time.Duration
}

func New(db *gorm.DB, timeout time.Duration) *Service {
	return &Service{DB: db, Timeout: timeout}
}

func (s *Service) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.Timeout)
}

type ItemInput struct {
	FurnitureID uint `json:"furniture_id"`
	Quantity    uint `json:"quantity"`
}

// Checkout places an order for the authenticated user. With no explicit
// items the user's cart is the source and is cleared in the same
// transaction. Checkout orders complete immediately: no payment step is
// modeled.
func (s *Service) Checkout(ctx context.Context, userID uint, items []ItemInput) (*models.Order, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	cartSourced := len(items) == 0
	var cartID uint

	if cartSourced {
		cart, cartItems, err := s.loadCart(ctx, userID)
		if err != nil {
			return nil, err
		}
		if len(cartItems) == 0 {
			return nil, apperr.New(apperr.KindBadRequest, "cart is empty")
		}
		cartID = cart.ID
		for _, ci := range cartItems {
			items = append(items, ItemInput{FurnitureID: ci.FurnitureID, Quantity: ci.Quantity})
		}
	}

	return s.place(ctx, &userID, "", models.OrderStatusCompleted, items, cartID)
}

// Create is the generic order-creation path: status starts PENDING, and a
// guest order is accepted when no user is present but a contact email is.
func (s *Service) Create(ctx context.Context, userID uint, guestEmail string, items []ItemInput) (*models.Order, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if len(items) == 0 {
		return nil, apperr.New(apperr.KindBadRequest, "items required")
	}
	var uid *uint
	if userID != 0 {
		uid = &userID
	} else if guestEmail == "" {
		return nil, apperr.New(apperr.KindBadRequest, "guest orders require a contact email")
	}
	return s.place(ctx, uid, guestEmail, models.OrderStatusPending, items, 0)
}

// UpdateStatus enforces the monotonic order state machine: COMPLETED and
// CANCELLED are terminal.
func (s *Service) UpdateStatus(ctx context.Context, orderID uint, status string) (*models.Order, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if status != models.OrderStatusPending &&
		status != models.OrderStatusCompleted &&
		status != models.OrderStatusCancelled {
		return nil, apperr.Newf(apperr.KindBadRequest, "unknown order status %q", status)
	}

	var order models.Order
	if err := s.DB.WithContext(ctx).Preload("Items").First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Newf(apperr.KindNotFound, "order %d not found", orderID)
		}
		return nil, err
	}

	if order.Status == models.OrderStatusCompleted || order.Status == models.OrderStatusCancelled {
		return nil, apperr.Newf(apperr.KindBadRequest,
			"cannot change status of %s order", order.Status)
	}
	if order.Status == status {
		return &order, nil
	}

	if err := s.DB.WithContext(ctx).Model(&order).Update("status", status).Error; err != nil {
		return nil, err
	}
	order.Status = status
	return &order, nil
}

func (s *Service) ListForUser(ctx context.Context, userID uint) ([]models.Order, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var out []models.Order
	err := s.DB.WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

func (s *Service) GetForUser(ctx context.Context, orderID, userID uint) (*models.Order, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var order models.Order
	if err := s.DB.WithContext(ctx).Preload("Items").First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Newf(apperr.KindNotFound, "order %d not found", orderID)
		}
		return nil, err
	}
	if order.UserID == nil || *order.UserID != userID {
		return nil, apperr.New(apperr.KindForbidden, "order belongs to another user")
	}
	return &order, nil
}

func (s *Service) loadCart(ctx context.Context, userID uint) (*models.Cart, []models.CartItem, error) {
	var cart models.Cart
	err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &cart, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	var items []models.CartItem
	if err := s.DB.WithContext(ctx).Where("cart_id = ?", cart.ID).Find(&items).Error; err != nil {
		return nil, nil, err
	}
	return &cart, items, nil
}

// place validates every referenced furniture id, snapshots unit prices and
// persists the order atomically. clearCartID > 0 deletes that cart's items
// inside the same transaction.
func (s *Service) place(ctx context.Context, userID *uint, guestEmail, status string, items []ItemInput, clearCartID uint) (*models.Order, error) {
	ids := make([]uint, 0, len(items))
	for _, it := range items {
		if it.FurnitureID == 0 {
			return nil, apperr.New(apperr.KindBadRequest, "furniture_id required")
		}
		if it.Quantity == 0 {
			return nil, apperr.Newf(apperr.KindBadRequest, "quantity must be positive for furniture %d", it.FurnitureID)
		}
		ids = append(ids, it.FurnitureID)
	}

	var found []models.Furniture
	if err := s.DB.WithContext(ctx).Where("id IN ?", ids).Find(&found).Error; err != nil {
		return nil, err
	}
	priceByID := make(map[uint]int64, len(found))
	for _, f := range found {
		priceByID[f.ID] = f.PriceCents
	}
	var missing []uint
	for _, id := range ids {
		if _, ok := priceByID[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, apperr.Newf(apperr.KindNotFound, "furniture not found: %v", missing).
			WithDetails(map[string]any{"missing_ids": missing})
	}

	order := models.Order{
		UserID:     userID,
		GuestEmail: guestEmail,
		Status:     status,
	}
	order.Items = make([]models.OrderItem, 0, len(items))
	for _, it := range items {
		unit := priceByID[it.FurnitureID]
		order.TotalCents += unit * int64(it.Quantity)
		order.Items = append(order.Items, models.OrderItem{
			FurnitureID:    it.FurnitureID,
			Quantity:       it.Quantity,
			UnitPriceCents: unit,
		})
	}

	txErr := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&order).Error; err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		if clearCartID != 0 {
			if err := tx.Where("cart_id = ?", clearCartID).Delete(&models.CartItem{}).Error; err != nil {
				return fmt.Errorf("clear cart: %w", err)
			}
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return &order, nil
}
