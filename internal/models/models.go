package models

import (
	"time"
)

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null"     json:"email"`
	PasswordHash string    `gorm:"not null"                 json:"-"`
	Name         string    `gorm:"not null"                 json:"name"`
	Role         string    `gorm:"not null;default:user"    json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

type RefreshToken struct {
	ID        uint   `gorm:"primaryKey"           json:"id"`
	Token     string `gorm:"uniqueIndex;not null" json:"token"`
	UserID    uint   `gorm:"index;not null"       json:"user_id"`
	Role      string `gorm:"not null"             json:"role"`
	ExpiresAt int64  `gorm:"not null"             json:"expires_at"`
	Revoked   bool   `gorm:"default:false"        json:"revoked"`
}

type Category struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string `gorm:"uniqueIndex;not null"     json:"name"`
	Description string `json:"description"`
}

// Furniture price is kept in integer cents so money arithmetic stays exact.
type Furniture struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"     json:"id"`
	Name        string    `gorm:"not null"                     json:"name"`
	Description string    `json:"description"`
	PriceCents  int64     `gorm:"not null;check:price_cents>0" json:"price_cents"`
	SKU         string    `gorm:"uniqueIndex;not null"         json:"sku"`
	WidthCM     float64   `gorm:"not null;check:width_cm>0"    json:"width_cm"`
	HeightCM    float64   `gorm:"not null;check:height_cm>0"   json:"height_cm"`
	DepthCM     float64   `gorm:"not null;check:depth_cm>0"    json:"depth_cm"`
	CategoryID  uint      `gorm:"index;not null"               json:"category_id"`
	Images      []Image   `gorm:"constraint:OnDelete:CASCADE"  json:"images,omitempty"`
	Reviews     []Review  `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

type Image struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	URL         string `gorm:"not null"                 json:"url"`
	FurnitureID uint   `gorm:"index;not null"           json:"furniture_id"`
}

type Review struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"                       json:"id"`
	Rating      int       `gorm:"not null;check:rating >= 1 AND rating <= 5"     json:"rating"`
	Comment     string    `json:"comment"`
	UserID      uint      `gorm:"not null;uniqueIndex:idx_review_user_furniture" json:"user_id"`
	FurnitureID uint      `gorm:"not null;uniqueIndex:idx_review_user_furniture" json:"furniture_id"`
	CreatedAt   time.Time `json:"created_at"`
}

type Cart struct {
	ID     uint `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID uint `gorm:"uniqueIndex;not null"     json:"user_id"`
}

type CartItem struct {
	ID          uint `gorm:"primaryKey;autoIncrement"                json:"id"`
	CartID      uint `gorm:"not null;uniqueIndex:idx_cart_furniture" json:"cart_id"`
	FurnitureID uint `gorm:"not null;uniqueIndex:idx_cart_furniture" json:"furniture_id"`
	Quantity    uint `gorm:"default:1;check:quantity>0"              json:"quantity"`
}

const (
	OrderStatusPending   = "PENDING"
	OrderStatusCompleted = "COMPLETED"
	OrderStatusCancelled = "CANCELLED"
)

// Order.UserID is nullable: the schema permits guest orders even though the
// checkout route requires authentication.
type Order struct {
	ID         uint        `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     *uint       `gorm:"index"                    json:"user_id"`
	GuestEmail string      `json:"guest_email,omitempty"`
	TotalCents int64       `gorm:"not null"                 json:"total_cents"`
	Status     string      `gorm:"not null"                 json:"status"`
	Items      []OrderItem `json:"items,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

// UnitPriceCents is snapshotted at order creation so later catalog price
// changes do not rewrite order history.
type OrderItem struct {
	ID             uint  `gorm:"primaryKey;autoIncrement"   json:"id"`
	OrderID        uint  `gorm:"index;not null"             json:"order_id"`
	FurnitureID    uint  `gorm:"index;not null"             json:"furniture_id"`
	Quantity       uint  `gorm:"default:1;check:quantity>0" json:"quantity"`
	UnitPriceCents int64 `gorm:"not null"                   json:"unit_price_cents"`
}
