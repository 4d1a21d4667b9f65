package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/service"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/pagination"
	"github.com/utafrali/storefront/pkg/validator"
)

// ProductHandler serves the catalog.
type ProductHandler struct {
	service ProductService
	logger  *slog.Logger
}

func NewProductHandler(svc ProductService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{service: svc, logger: logger}
}

type CreateProductRequest struct {
	Name            string `json:"name" validate:"required,min=1,max=255"`
	Description     string `json:"description" validate:"max=5000"`
	Category        string `json:"category" validate:"max=100"`
	Niche           string `json:"niche" validate:"max=100"`
	ImageURL        string `json:"image_url" validate:"omitempty,url"`
	InitialPrice    int64  `json:"initial_price" validate:"gte=0"`
	DiscountedPrice *int64 `json:"discounted_price" validate:"omitnil,gte=0"`
	Currency        string `json:"currency" validate:"omitempty,len=3"`
	Status          string `json:"status" validate:"omitempty,oneof=draft published archived"`
}

// List handles GET /api/v1/products
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.FromRequest(r)
	filter := domain.ProductFilter{
		Category: r.URL.Query().Get("category"),
		Status:   r.URL.Query().Get("status"),
	}

	products, total, err := h.service.List(r.Context(), filter, page)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(products, total, page.Page, page.PerPage))
}

// Search handles GET /api/v1/products/search
func (h *ProductHandler) Search(w http.ResponseWriter, r *http.Request) {
	page := pagination.FromRequest(r)
	q := r.URL.Query()
	search := domain.ProductSearch{
		Text:     q.Get("q"),
		Category: q.Get("category"),
		Status:   q.Get("status"),
		Sort:     q.Get("sort"),
	}

	for name, dst := range map[string]**int64{"min_price": &search.MinPrice, "max_price": &search.MaxPrice} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		price, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httputil.WriteError(w, r, apperrors.InvalidInput(name+" must be a whole number of minor units"), h.logger)
			return
		}
		*dst = &price
	}

	products, total, err := h.service.Search(r.Context(), search, page)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(products, total, page.Page, page.PerPage))
}

// Get handles GET /api/v1/products/{id}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.IDParam(w, r, "id", chi.URLParam(r, "id"))
	if !ok {
		return
	}

	product, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, product)
}

// Create handles POST /api/v1/products
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	product, err := h.service.Create(r.Context(), service.CreateProductInput{
		Name:            req.Name,
		Description:     req.Description,
		Category:        req.Category,
		Niche:           req.Niche,
		ImageURL:        req.ImageURL,
		InitialPrice:    req.InitialPrice,
		DiscountedPrice: req.DiscountedPrice,
		Currency:        req.Currency,
		Status:          req.Status,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, product)
}

// Delete handles DELETE /api/v1/products/{id}
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.IDParam(w, r, "id", chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
