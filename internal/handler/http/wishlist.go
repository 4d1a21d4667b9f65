package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/middleware"
)

// WishlistHandler exposes the caller's wishlist. The user id always comes
// from the authenticated request, never from the path.
type WishlistHandler struct {
	service WishlistService
	logger  *slog.Logger
}

func NewWishlistHandler(svc WishlistService, logger *slog.Logger) *WishlistHandler {
	return &WishlistHandler{service: svc, logger: logger}
}

type WishlistStatusResponse struct {
	ProductID  string `json:"product_id"`
	InWishlist bool   `json:"in_wishlist"`
}

// List handles GET /api/v1/wishlist
func (h *WishlistHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.Get(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, products)
}

// Toggle handles POST /api/v1/wishlist/{productId}
func (h *WishlistHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	productID, ok := httputil.IDParam(w, r, "productId", chi.URLParam(r, "productId"))
	if !ok {
		return
	}

	products, err := h.service.Toggle(r.Context(), middleware.UserIDFromContext(r.Context()), productID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, products)
}

// Status handles GET /api/v1/wishlist/{productId}
func (h *WishlistHandler) Status(w http.ResponseWriter, r *http.Request) {
	productID, ok := httputil.IDParam(w, r, "productId", chi.URLParam(r, "productId"))
	if !ok {
		return
	}

	in, err := h.service.Contains(r.Context(), middleware.UserIDFromContext(r.Context()), productID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, WishlistStatusResponse{ProductID: productID, InWishlist: in})
}
