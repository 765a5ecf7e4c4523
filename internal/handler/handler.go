// Package handler содержит HTTP-обработчики API сервиса логистики.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/logistics-system/internal/middleware"
	"github.com/mmeshcher/logistics-system/internal/model"
	"github.com/mmeshcher/logistics-system/internal/repository"
	"github.com/mmeshcher/logistics-system/internal/schedule"
	"github.com/mmeshcher/logistics-system/internal/service"
	"github.com/mmeshcher/logistics-system/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, login, password string) (int64, error)
	AuthenticateUser(ctx context.Context, login, password string) (int64, error)
	CreateDeposit(ctx context.Context, name, openTime, closeTime string, workingDays []int) (int64, error)
	GetDeposits(ctx context.Context) ([]model.Deposit, error)
	GetDepositAvailability(ctx context.Context, depositID int64) (*schedule.Verdict, error)
	CreateOrder(ctx context.Context, userID, depositID int64, number string, kind model.OrderKind) (bool, error)
	GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error)
	ChangeOrderStatus(ctx context.Context, userID int64, number string, requested model.OrderStatus) error
	AllowedTransitions(ctx context.Context, userID int64, number string) ([]model.OrderStatus, error)
}

// Handler реализует HTTP-обработчики API сервиса логистики.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

type credentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.RegisterUser(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
			return
		}
		h.logger.Error("register user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID)
	w.WriteHeader(http.StatusOK)
}

// Login выполняет аутентификацию пользователя и установку cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.AuthenticateUser(r.Context(), req.Login, req.Password)
	if err != nil {
		h.logger.Info("login rejected", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID)
	w.WriteHeader(http.StatusOK)
}

type depositRequest struct {
	Name        string `json:"name"`
	OpenTime    string `json:"open_time"`
	CloseTime   string `json:"close_time"`
	WorkingDays []int  `json:"working_days"`
}

type depositCreatedResponse struct {
	ID int64 `json:"id"`
}

// CreateDeposit создаёт склад с недельным графиком работы.
func (h *Handler) CreateDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Name == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	for _, d := range req.WorkingDays {
		if d < 0 || d > 6 {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
	}

	id, err := h.service.CreateDeposit(r.Context(), req.Name, req.OpenTime, req.CloseTime, req.WorkingDays)
	if err != nil {
		h.logger.Error("create deposit error", zap.Error(err), zap.String("name", req.Name))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(depositCreatedResponse{ID: id}); err != nil {
		h.logger.Error("encode deposit response", zap.Error(err))
	}
}

type depositResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	OpenTime    string `json:"open_time"`
	CloseTime   string `json:"close_time"`
	WorkingDays []int  `json:"working_days"`
}

// GetDeposits возвращает список складов.
func (h *Handler) GetDeposits(w http.ResponseWriter, r *http.Request) {
	deposits, err := h.service.GetDeposits(r.Context())
	if err != nil {
		h.logger.Error("get deposits error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(deposits) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]depositResponse, 0, len(deposits))
	for _, d := range deposits {
		resp = append(resp, depositResponse{
			ID:          d.ID,
			Name:        d.Name,
			OpenTime:    d.OpenTime,
			CloseTime:   d.CloseTime,
			WorkingDays: d.WorkingDays,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}

type nextOpeningResponse struct {
	Day  string `json:"day"`
	Time string `json:"time"`
}

type availabilityResponse struct {
	OperatingDay bool                 `json:"operating_day"`
	OpenNow      bool                 `json:"open_now"`
	Headline     string               `json:"headline"`
	Detail       string               `json:"detail"`
	NextOpening  *nextOpeningResponse `json:"next_opening,omitempty"`
}

// GetDepositAvailability возвращает вердикт доступности склада на текущий момент.
func (h *Handler) GetDepositAvailability(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	v, err := h.service.GetDepositAvailability(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrDepositNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("deposit availability error", zap.Error(err), zap.Int64("depositID", id))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := availabilityResponse{
		OperatingDay: v.OperatingDay,
		OpenNow:      v.OpenNow,
		Headline:     v.Headline,
		Detail:       v.Detail,
	}
	if v.NextOpening != nil {
		resp.NextOpening = &nextOpeningResponse{
			Day:  v.NextOpening.Day.String(),
			Time: v.NextOpening.Time,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}

type orderRequest struct {
	Number    string `json:"number"`
	DepositID int64  `json:"deposit_id"`
	Kind      string `json:"kind"`
}

// CreateOrder регистрирует заказ текущего пользователя.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if !validation.IsValidTrackingNumber(req.Number) {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}

	alreadyExists, err := h.service.CreateOrder(r.Context(), userID, req.DepositID, req.Number, model.OrderKind(req.Kind))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownKind):
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		case errors.Is(err, repository.ErrDepositNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, service.ErrDepositClosed):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, repository.ErrOrderOwnedByAnother):
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		default:
			h.logger.Error("create order error", zap.Error(err), zap.String("order", req.Number))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	if alreadyExists {
		w.WriteHeader(http.StatusOK)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

type orderResponse struct {
	Number    string `json:"number"`
	DepositID int64  `json:"deposit_id"`
	Kind      string `json:"kind"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// GetOrders возвращает список заказов текущего пользователя.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	orders, err := h.service.GetOrdersByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("get orders error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, orderResponse{
			Number:    o.Number,
			DepositID: o.DepositID,
			Kind:      string(o.Kind),
			Status:    string(o.Status),
			CreatedAt: o.CreatedAt.Format(time.RFC3339),
			UpdatedAt: o.UpdatedAt.Format(time.RFC3339),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}

type statusRequest struct {
	Status string `json:"status"`
}

// ChangeOrderStatus переводит заказ текущего пользователя в запрошенный статус.
func (h *Handler) ChangeOrderStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	number := chi.URLParam(r, "number")

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	err := h.service.ChangeOrderStatus(r.Context(), userID, number, model.OrderStatus(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrOrderNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, service.ErrUnknownStatus), errors.Is(err, service.ErrUnknownKind):
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		case errors.Is(err, service.ErrTransitionNotAllowed), errors.Is(err, repository.ErrOrderConflict):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			h.logger.Error("change order status error", zap.Error(err), zap.String("order", number))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
}

type transitionsResponse struct {
	Allowed []string `json:"allowed"`
}

// GetTransitions возвращает статусы, в которые заказ может перейти.
func (h *Handler) GetTransitions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	number := chi.URLParam(r, "number")

	next, err := h.service.AllowedTransitions(r.Context(), userID, number)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrOrderNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, service.ErrUnknownKind):
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		default:
			h.logger.Error("get transitions error", zap.Error(err), zap.String("order", number))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	resp := transitionsResponse{Allowed: make([]string, 0, len(next))}
	for _, s := range next {
		resp.Allowed = append(resp.Allowed, string(s))
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}
