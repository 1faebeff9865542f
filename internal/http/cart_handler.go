package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/hy-aurora/unimart-sub000/internal/domain"
	"github.com/hy-aurora/unimart-sub000/internal/service"
	"go.uber.org/zap"
)

const maxRequestBodySize = 1 << 20 // 1MB

// CartService is the cart use-case surface the handlers drive.
type CartService interface {
	AddItem(ctx context.Context, req service.AddItemRequest) (*service.AddItemResult, error)
	UpdateItem(ctx context.Context, productID string, patch domain.ItemPatch) error
	RemoveItem(ctx context.Context, productID string) error
	ClearCart(ctx context.Context) error
	MergeGuestCart(ctx context.Context, guestID string) (int, error)
	GetCart(ctx context.Context, guestID string) (*domain.CartView, error)
}

type CartHandler struct {
	service  CartService
	timeout  time.Duration
	validate *validator.Validate
	logger   *zap.Logger
}

func NewCartHandler(svc CartService, timeout time.Duration, logger *zap.Logger) *CartHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartHandler{
		service:  svc,
		timeout:  timeout,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

type AddItemRequestDTO struct {
	ProductID  string             `json:"productId" validate:"required,max=128"`
	Quantity   int                `json:"quantity"`
	Size       string             `json:"size,omitempty" validate:"max=32"`
	CustomSize *domain.CustomSize `json:"customSize,omitempty"`
	GuestID    string             `json:"guestId,omitempty" validate:"max=128"`
}

type UpdateItemRequestDTO struct {
	Quantity   *int               `json:"quantity,omitempty"`
	Size       *string            `json:"size,omitempty" validate:"omitempty,max=32"`
	CustomSize *domain.CustomSize `json:"customSize,omitempty"`
}

type MergeRequestDTO struct {
	GuestID string `json:"guestId" validate:"required,max=128"`
}

type SuccessResponse struct {
	Success bool              `json:"success"`
	Items   []domain.CartItem `json:"items,omitempty"`
	Merged  *int              `json:"merged,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	guestID := strings.TrimSpace(r.URL.Query().Get("guestId"))

	view, err := h.service.GetCart(ctx, guestID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, view)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.service.AddItem(ctx, service.AddItemRequest{
		ProductID:  req.ProductID,
		Quantity:   req.Quantity,
		Size:       req.Size,
		CustomSize: req.CustomSize,
		GuestID:    strings.TrimSpace(req.GuestID),
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, SuccessResponse{Success: true, Items: res.GuestItems})
}

func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID := chi.URLParam(r, "productId")
	if productID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "productId is required")
		return
	}

	var req UpdateItemRequestDTO
	if !h.decode(w, r, &req) {
		return
	}

	err := h.service.UpdateItem(ctx, productID, domain.ItemPatch{
		Quantity:   req.Quantity,
		Size:       req.Size,
		CustomSize: req.CustomSize,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID := chi.URLParam(r, "productId")
	if productID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "productId is required")
		return
	}

	if err := h.service.RemoveItem(ctx, productID); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.service.ClearCart(ctx); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

func (h *CartHandler) MergeGuestCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req MergeRequestDTO
	if !h.decode(w, r, &req) {
		return
	}

	merged, err := h.service.MergeGuestCart(ctx, strings.TrimSpace(req.GuestID))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, SuccessResponse{Success: true, Merged: &merged})
}

// decode reads and validates a JSON body, writing a 400 on failure.
func (h *CartHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}

	if err := h.validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			respondError(w, http.StatusBadRequest, "validation_failed",
				fe.Field()+" failed "+fe.Tag()+" validation")
			return false
		}
		respondError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return false
	}
	return true
}

func (h *CartHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var stockErr *domain.InsufficientStockError

	switch {
	case errors.As(err, &stockErr):
		respondError(w, http.StatusConflict, "insufficient_stock", stockErr.Error())
	case errors.Is(err, domain.ErrInsufficientStock):
		respondError(w, http.StatusConflict, "insufficient_stock", err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		respondError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
	case errors.Is(err, domain.ErrUserNotFound):
		respondError(w, http.StatusNotFound, "user_not_found", err.Error())
	case errors.Is(err, domain.ErrCartNotFound):
		respondError(w, http.StatusNotFound, "cart_not_found", err.Error())
	case errors.Is(err, domain.ErrProductNotFound):
		respondError(w, http.StatusNotFound, "product_not_found", err.Error())
	case errors.Is(err, domain.ErrInvalidQuantity):
		respondError(w, http.StatusBadRequest, "invalid_quantity", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		h.logger.Error("cart request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// headers are already sent; nothing useful left to do on failure
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
