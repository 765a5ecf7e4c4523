// Package lifecycle проверяет допустимость переходов статусов заказов и доставок.
package lifecycle

import "github.com/mmeshcher/logistics-system/internal/model"

// Domain выбирает таблицу переходов жизненного цикла.
type Domain string

const (
	// DomainOrder — обычный заказ: pending → shipping → delivered.
	DomainOrder Domain = "order"
	// DomainDelivery — доставка: pending → preparing → shipped → delivered.
	DomainDelivery Domain = "delivery"
)

// Таблицы переходов. Оба домена монотонны: статус не посещается повторно,
// delivered и cancelled — терминальные. В домене order отмена после
// shipping не предусмотрена, в домене delivery — после shipped;
// эта асимметрия сохранена намеренно.
var transitions = map[Domain]map[model.OrderStatus][]model.OrderStatus{
	DomainOrder: {
		model.OrderStatusPending:   {model.OrderStatusShipping, model.OrderStatusCancelled},
		model.OrderStatusShipping:  {model.OrderStatusDelivered},
		model.OrderStatusDelivered: {},
		model.OrderStatusCancelled: {},
	},
	DomainDelivery: {
		model.OrderStatusPending:   {model.OrderStatusPreparing, model.OrderStatusCancelled},
		model.OrderStatusPreparing: {model.OrderStatusShipped, model.OrderStatusCancelled},
		model.OrderStatusShipped:   {model.OrderStatusDelivered},
		model.OrderStatusDelivered: {},
		model.OrderStatusCancelled: {},
	},
}

// DomainFor возвращает домен жизненного цикла для вида заказа.
func DomainFor(kind model.OrderKind) (Domain, bool) {
	switch kind {
	case model.OrderKindOrder:
		return DomainOrder, true
	case model.OrderKindDelivery:
		return DomainDelivery, true
	default:
		return "", false
	}
}

// Known сообщает, входит ли статус в перечисление домена.
func Known(d Domain, status model.OrderStatus) bool {
	_, ok := transitions[d][status]
	return ok
}

// AllowedNext возвращает статусы, в которые разрешён переход из current.
// Для неизвестного домена или статуса возвращается пустой список.
func AllowedNext(d Domain, current model.OrderStatus) []model.OrderStatus {
	allowed := transitions[d][current]
	res := make([]model.OrderStatus, len(allowed))
	copy(res, allowed)
	return res
}

// CanTransition сообщает, допустим ли переход current → requested.
// Любое значение вне перечисления домена отклоняется.
func CanTransition(d Domain, current, requested model.OrderStatus) bool {
	for _, s := range transitions[d][current] {
		if s == requested {
			return true
		}
	}
	return false
}
