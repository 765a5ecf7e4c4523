package lifecycle

import (
	"testing"

	"github.com/mmeshcher/logistics-system/internal/model"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name      string
		domain    Domain
		current   model.OrderStatus
		requested model.OrderStatus
		want      bool
	}{
		{
			name:      "order pending to shipping",
			domain:    DomainOrder,
			current:   model.OrderStatusPending,
			requested: model.OrderStatusShipping,
			want:      true,
		},
		{
			name:      "order pending to cancelled",
			domain:    DomainOrder,
			current:   model.OrderStatusPending,
			requested: model.OrderStatusCancelled,
			want:      true,
		},
		{
			name:      "order pending cannot skip to delivered",
			domain:    DomainOrder,
			current:   model.OrderStatusPending,
			requested: model.OrderStatusDelivered,
			want:      false,
		},
		{
			name:      "order cannot cancel once shipping",
			domain:    DomainOrder,
			current:   model.OrderStatusShipping,
			requested: model.OrderStatusCancelled,
			want:      false,
		},
		{
			name:      "order shipping to delivered",
			domain:    DomainOrder,
			current:   model.OrderStatusShipping,
			requested: model.OrderStatusDelivered,
			want:      true,
		},
		{
			name:      "delivery preparing can still cancel",
			domain:    DomainDelivery,
			current:   model.OrderStatusPreparing,
			requested: model.OrderStatusCancelled,
			want:      true,
		},
		{
			name:      "delivery shipped cannot cancel",
			domain:    DomainDelivery,
			current:   model.OrderStatusShipped,
			requested: model.OrderStatusCancelled,
			want:      false,
		},
		{
			name:      "delivery shipped cannot go back to preparing",
			domain:    DomainDelivery,
			current:   model.OrderStatusShipped,
			requested: model.OrderStatusPreparing,
			want:      false,
		},
		{
			name:      "delivery shipped to delivered",
			domain:    DomainDelivery,
			current:   model.OrderStatusShipped,
			requested: model.OrderStatusDelivered,
			want:      true,
		},
		{
			name:      "no self transition",
			domain:    DomainOrder,
			current:   model.OrderStatusPending,
			requested: model.OrderStatusPending,
			want:      false,
		},
		{
			name:      "unknown status rejected",
			domain:    DomainOrder,
			current:   model.OrderStatus("lost"),
			requested: model.OrderStatusDelivered,
			want:      false,
		},
		{
			name:      "unknown requested rejected",
			domain:    DomainDelivery,
			current:   model.OrderStatusPending,
			requested: model.OrderStatus("archived"),
			want:      false,
		},
		{
			name:      "unknown domain rejected",
			domain:    Domain("subscription"),
			current:   model.OrderStatusPending,
			requested: model.OrderStatusCancelled,
			want:      false,
		},
		{
			name:      "order domain does not know preparing",
			domain:    DomainOrder,
			current:   model.OrderStatusPending,
			requested: model.OrderStatusPreparing,
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CanTransition(tt.domain, tt.current, tt.requested)
			if got != tt.want {
				t.Fatalf("CanTransition(%s, %s, %s) = %v, want %v",
					tt.domain, tt.current, tt.requested, got, tt.want)
			}
		})
	}
}

func TestTerminalStates(t *testing.T) {
	for _, d := range []Domain{DomainOrder, DomainDelivery} {
		for _, s := range []model.OrderStatus{model.OrderStatusDelivered, model.OrderStatusCancelled} {
			if next := AllowedNext(d, s); len(next) != 0 {
				t.Fatalf("AllowedNext(%s, %s) = %v, want empty", d, s, next)
			}
		}
	}
}

func TestAllowedNext_UnknownStatus(t *testing.T) {
	if next := AllowedNext(DomainOrder, model.OrderStatus("lost")); len(next) != 0 {
		t.Fatalf("AllowedNext for unknown status = %v, want empty", next)
	}
	if next := AllowedNext(Domain("subscription"), model.OrderStatusPending); len(next) != 0 {
		t.Fatalf("AllowedNext for unknown domain = %v, want empty", next)
	}
}

// CanTransition обязан совпадать с членством в AllowedNext для всех пар статусов.
func TestCanTransitionMatchesAllowedNext(t *testing.T) {
	statuses := []model.OrderStatus{
		model.OrderStatusPending,
		model.OrderStatusShipping,
		model.OrderStatusPreparing,
		model.OrderStatusShipped,
		model.OrderStatusDelivered,
		model.OrderStatusCancelled,
		model.OrderStatus("lost"),
	}

	for _, d := range []Domain{DomainOrder, DomainDelivery} {
		for _, current := range statuses {
			allowed := make(map[model.OrderStatus]bool)
			for _, s := range AllowedNext(d, current) {
				allowed[s] = true
			}

			for _, requested := range statuses {
				got := CanTransition(d, current, requested)
				if got != allowed[requested] {
					t.Fatalf("domain %s: CanTransition(%s, %s) = %v, AllowedNext membership = %v",
						d, current, requested, got, allowed[requested])
				}
			}
		}
	}
}

func TestDomainFor(t *testing.T) {
	if d, ok := DomainFor(model.OrderKindOrder); !ok || d != DomainOrder {
		t.Fatalf("DomainFor(order) = %s, %v", d, ok)
	}
	if d, ok := DomainFor(model.OrderKindDelivery); !ok || d != DomainDelivery {
		t.Fatalf("DomainFor(delivery) = %s, %v", d, ok)
	}
	if _, ok := DomainFor(model.OrderKind("unknown")); ok {
		t.Fatalf("DomainFor(unknown) must fail")
	}
}

func TestKnown(t *testing.T) {
	if !Known(DomainDelivery, model.OrderStatusPreparing) {
		t.Fatalf("preparing must be known to delivery domain")
	}
	if Known(DomainOrder, model.OrderStatusPreparing) {
		t.Fatalf("preparing must not be known to order domain")
	}
	if Known(DomainOrder, model.OrderStatus("lost")) {
		t.Fatalf("unknown status must not be known")
	}
}
