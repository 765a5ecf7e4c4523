// Package service реализует бизнес-логику сервиса логистики.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mmeshcher/logistics-system/internal/lifecycle"
	"github.com/mmeshcher/logistics-system/internal/model"
	"github.com/mmeshcher/logistics-system/internal/repository"
	"github.com/mmeshcher/logistics-system/internal/schedule"
	"github.com/mmeshcher/logistics-system/internal/tracking"
)

// ErrUnknownKind возвращается для вида заказа вне перечисления доменов.
var (
	ErrUnknownKind = errors.New("unknown order kind")
	// ErrUnknownStatus возвращается для статуса вне перечисления домена.
	ErrUnknownStatus = errors.New("unknown order status")
	// ErrTransitionNotAllowed возвращается для запрещённого перехода статуса.
	ErrTransitionNotAllowed = errors.New("status transition not allowed")
	// ErrDepositClosed возвращается при создании заказа на закрытом складе.
	ErrDepositClosed = errors.New("deposit is closed")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateUser(ctx context.Context, login string, passwordHash []byte) (int64, error)
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)
	CreateDeposit(ctx context.Context, name, openTime, closeTime string, workingDays []int) (int64, error)
	GetDepositByID(ctx context.Context, id int64) (*model.Deposit, error)
	GetDeposits(ctx context.Context) ([]model.Deposit, error)
	AddOrder(ctx context.Context, userID, depositID int64, number string, kind model.OrderKind) (bool, error)
	GetOrderByNumber(ctx context.Context, number string) (*model.Order, error)
	GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error)
	UpdateOrderStatus(ctx context.Context, number string, from, to model.OrderStatus) error
	GetOrdersInTransit(ctx context.Context, limit int) ([]model.Order, error)
}

// Service содержит бизнес-логику сервиса логистики.
type Service struct {
	repo           Repository
	trackingClient *tracking.Client
	now            func() time.Time
}

// NewService создаёт новый сервис с указанным репозиторием и клиентом перевозчика.
func NewService(repo Repository, trackingClient *tracking.Client) *Service {
	return &Service{
		repo:           repo,
		trackingClient: trackingClient,
		now:            time.Now,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterUser регистрирует нового пользователя.
func (s *Service) RegisterUser(ctx context.Context, login, password string) (int64, error) {
	hashed := hashPassword(login, password)
	id, err := s.repo.CreateUser(ctx, login, hashed)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return 0, repository.ErrUserExists
		}
		return 0, err
	}
	return id, nil
}

// AuthenticateUser проверяет логин и пароль пользователя и возвращает его идентификатор.
func (s *Service) AuthenticateUser(ctx context.Context, login, password string) (int64, error) {
	u, err := s.repo.GetUserByLogin(ctx, login)
	if err != nil {
		return 0, err
	}

	hashed := hashPassword(login, password)
	if hex.EncodeToString(hashed) != hex.EncodeToString(u.PasswordHash) {
		return 0, errors.New("invalid credentials")
	}

	return u.ID, nil
}

func hashPassword(login, password string) []byte {
	sum := sha256.Sum256([]byte(login + ":" + password))
	return sum[:]
}

// CreateDeposit создаёт склад с недельным графиком работы.
func (s *Service) CreateDeposit(ctx context.Context, name, openTime, closeTime string, workingDays []int) (int64, error) {
	return s.repo.CreateDeposit(ctx, name, openTime, closeTime, workingDays)
}

// GetDeposits возвращает список всех складов.
func (s *Service) GetDeposits(ctx context.Context) ([]model.Deposit, error) {
	return s.repo.GetDeposits(ctx)
}

// GetDepositAvailability вычисляет доступность склада на текущий момент.
func (s *Service) GetDepositAvailability(ctx context.Context, depositID int64) (*schedule.Verdict, error) {
	dep, err := s.repo.GetDepositByID(ctx, depositID)
	if err != nil {
		return nil, err
	}

	v := schedule.Evaluate(schedule.Schedule{
		OpenTime:    dep.OpenTime,
		CloseTime:   dep.CloseTime,
		WorkingDays: dep.WorkingDays,
	}, s.now())

	return &v, nil
}

// CreateOrder регистрирует заказ на складе. Заказ на закрытый в данный момент
// склад отклоняется с ErrDepositClosed.
func (s *Service) CreateOrder(ctx context.Context, userID, depositID int64, number string, kind model.OrderKind) (bool, error) {
	if _, ok := lifecycle.DomainFor(kind); !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	dep, err := s.repo.GetDepositByID(ctx, depositID)
	if err != nil {
		return false, err
	}

	v := schedule.Evaluate(schedule.Schedule{
		OpenTime:    dep.OpenTime,
		CloseTime:   dep.CloseTime,
		WorkingDays: dep.WorkingDays,
	}, s.now())
	if !v.OpenNow {
		return false, fmt.Errorf("%w: %s", ErrDepositClosed, v.Detail)
	}

	return s.repo.AddOrder(ctx, userID, depositID, number, kind)
}

// GetOrdersByUser возвращает список заказов пользователя.
func (s *Service) GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	return s.repo.GetOrdersByUser(ctx, userID)
}

func (s *Service) userOrder(ctx context.Context, userID int64, number string) (*model.Order, lifecycle.Domain, error) {
	o, err := s.repo.GetOrderByNumber(ctx, number)
	if err != nil {
		return nil, "", err
	}
	if o.UserID != userID {
		return nil, "", repository.ErrOrderNotFound
	}

	domain, ok := lifecycle.DomainFor(o.Kind)
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrUnknownKind, o.Kind)
	}

	return o, domain, nil
}

// ChangeOrderStatus переводит заказ пользователя в запрошенный статус,
// если переход разрешён таблицей жизненного цикла.
func (s *Service) ChangeOrderStatus(ctx context.Context, userID int64, number string, requested model.OrderStatus) error {
	o, domain, err := s.userOrder(ctx, userID, number)
	if err != nil {
		return err
	}

	if !lifecycle.Known(domain, requested) {
		return fmt.Errorf("%w: %s", ErrUnknownStatus, requested)
	}
	if !lifecycle.CanTransition(domain, o.Status, requested) {
		return fmt.Errorf("%w: %s -> %s", ErrTransitionNotAllowed, o.Status, requested)
	}

	return s.repo.UpdateOrderStatus(ctx, number, o.Status, requested)
}

// AllowedTransitions возвращает статусы, в которые заказ пользователя может перейти.
func (s *Service) AllowedTransitions(ctx context.Context, userID int64, number string) ([]model.OrderStatus, error) {
	o, domain, err := s.userOrder(ctx, userID, number)
	if err != nil {
		return nil, err
	}

	return lifecycle.AllowedNext(domain, o.Status), nil
}

// StartTrackingUpdates запускает фоновый процесс обновления статусов заказов
// по данным системы перевозчика.
func (s *Service) StartTrackingUpdates(ctx context.Context) {
	if s.trackingClient == nil {
		return
	}

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.processTrackingBatch(ctx)
			}
		}
	}()
}

func (s *Service) processTrackingBatch(ctx context.Context) {
	orders, err := s.repo.GetOrdersInTransit(ctx, 100)
	if err != nil {
		return
	}

	for _, o := range orders {
		resp, statusCode, retryAfter, err := s.trackingClient.GetShipment(ctx, o.Number)
		if err != nil {
			continue
		}

		if statusCode == http.StatusTooManyRequests {
			if retryAfter > 0 {
				timer := time.NewTimer(retryAfter)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
			}
			continue
		}

		if resp == nil || resp.Status != tracking.ShipmentStatusDelivered {
			continue
		}

		domain, ok := lifecycle.DomainFor(o.Kind)
		if !ok {
			continue
		}
		if !lifecycle.CanTransition(domain, o.Status, model.OrderStatusDelivered) {
			continue
		}

		_ = s.repo.UpdateOrderStatus(ctx, o.Number, o.Status, model.OrderStatusDelivered)
	}
}
