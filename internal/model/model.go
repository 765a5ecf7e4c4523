// Package model содержит доменные сущности сервиса логистики.
package model

import "time"

// User представляет зарегистрированного пользователя системы.
type User struct {
	ID           int64
	Login        string
	PasswordHash []byte
	CreatedAt    time.Time
}

// OrderStatus описывает статус заказа или доставки.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusShipping  OrderStatus = "shipping"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// OrderKind различает обычный заказ и доставку с расширенным жизненным циклом.
type OrderKind string

const (
	OrderKindOrder    OrderKind = "order"
	OrderKindDelivery OrderKind = "delivery"
)

// Order описывает заказ пользователя, привязанный к складу.
type Order struct {
	Number    string
	UserID    int64
	DepositID int64
	Kind      OrderKind
	Status    OrderStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Deposit описывает склад и его недельный график работы.
// Время открытия и закрытия хранится строками в формате "HH:mm",
// рабочие дни — индексами дней недели (0 = воскресенье … 6 = суббота).
type Deposit struct {
	ID          int64
	Name        string
	OpenTime    string
	CloseTime   string
	WorkingDays []int
	CreatedAt   time.Time
}
