package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/assetcart/pkg/enums"
	"github.com/angelmondragon/assetcart/pkg/types"
)

// OrderRecord is a confirmed order as persisted by the order processor.
type OrderRecord struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	ShopperID     string              `gorm:"column:shopper_id;not null"`
	FullName      string              `gorm:"column:full_name;not null"`
	Email         string              `gorm:"column:email;not null"`
	Address       string              `gorm:"column:address;not null"`
	City          string              `gorm:"column:city;not null"`
	PostalCode    string              `gorm:"column:postal_code;not null"`
	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method;not null"`
	Status        enums.OrderStatus   `gorm:"column:status;not null;default:'placed'"`
	Subtotal      decimal.Decimal     `gorm:"column:subtotal;type:numeric(14,4);not null"`
	Tax           decimal.Decimal     `gorm:"column:tax;type:numeric(14,4);not null"`
	Total         decimal.Decimal     `gorm:"column:total;type:numeric(14,4);not null"`
	PlacedAt      time.Time           `gorm:"column:placed_at;not null"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	Items         []OrderLineItem     `gorm:"foreignKey:OrderID;references:ID"`
}

func (OrderRecord) TableName() string { return "orders" }

// OrderLineItem snapshots one cart line at submission time. LineNo keeps cart order.
type OrderLineItem struct {
	OrderID   uuid.UUID        `gorm:"column:order_id;type:uuid;primaryKey"`
	LineNo    int              `gorm:"column:line_no;primaryKey;autoIncrement:false"`
	ProductID string           `gorm:"column:product_id;not null"`
	Name      string           `gorm:"column:name;not null"`
	Price     decimal.Decimal  `gorm:"column:price;type:numeric(14,4);not null"`
	Image     string           `gorm:"column:image;not null;default:''"`
	Tags      types.StringList `gorm:"column:tags;type:text;not null"`
	AddedAt   time.Time        `gorm:"column:added_at;not null"`
}

func (OrderLineItem) TableName() string { return "order_line_items" }
