package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/permission"
	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/storage"
)

type productRequest struct {
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Price          decimal.Decimal `json:"price"`
	SalesPrice     decimal.Decimal `json:"sales_price"`
	SalesStartDate *time.Time      `json:"sales_start_date"`
	SalesEndDate   *time.Time      `json:"sales_end_date"`
	Category       []string        `json:"category"`
	Stock          int             `json:"stock"`
	Images         []string        `json:"images"`
	Colors         []string        `json:"colors"`
	Sizes          []string        `json:"sizes"`
}

type productPatch struct {
	Name            *string          `json:"name"`
	Description     *string          `json:"description"`
	Price           *decimal.Decimal `json:"price"`
	SalesPrice      *decimal.Decimal `json:"sales_price"`
	SalesStartDate  *time.Time       `json:"sales_start_date"`
	SalesEndDate    *time.Time       `json:"sales_end_date"`
	ClearSaleWindow bool             `json:"clear_sale_window"`
	Category        []string         `json:"category"`
	Stock           *int             `json:"stock"`
	Images          []string         `json:"images"`
	Colors          []string         `json:"colors"`
	Sizes           []string         `json:"sizes"`
	ExpectedVersion int64            `json:"expected_version"`
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.ProductFilter{
		Category: q.Get("category"),
		Query:    q.Get("q"),
	}
	if raw := q.Get("on_sale"); raw != "" {
		onSale, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid value for 'on_sale' parameter")
			return
		}
		filter.OnSaleOnly = onSale
	}

	products, err := s.storage.GetProducts(r.Context(), filter)
	if err != nil {
		s.fail(w, "listProducts", err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := s.storage.GetProduct(r.Context(), pathID(r))
	if err != nil {
		s.fail(w, "getProduct", err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	product, err := s.storage.CreateProduct(r.Context(), actorFrom(r.Context()).ID, storage.ProductInput{
		Name:           req.Name,
		Description:    req.Description,
		Price:          req.Price,
		SalesPrice:     req.SalesPrice,
		SalesStartDate: req.SalesStartDate,
		SalesEndDate:   req.SalesEndDate,
		Category:       req.Category,
		Stock:          req.Stock,
		Images:         req.Images,
		Colors:         req.Colors,
		Sizes:          req.Sizes,
	})
	if err != nil {
		s.fail(w, "createProduct", err)
		return
	}
	respondJSON(w, http.StatusCreated, product)
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req productPatch
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	product, err := s.storage.UpdateProduct(r.Context(), actorFrom(r.Context()).ID, pathID(r), storage.ProductUpdate{
		Name:            req.Name,
		Description:     req.Description,
		Price:           req.Price,
		SalesPrice:      req.SalesPrice,
		SalesStartDate:  req.SalesStartDate,
		SalesEndDate:    req.SalesEndDate,
		ClearSaleWindow: req.ClearSaleWindow,
		Category:        req.Category,
		Stock:           req.Stock,
		Images:          req.Images,
		Colors:          req.Colors,
		Sizes:           req.Sizes,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		s.fail(w, "updateProduct", err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := s.storage.DeleteProduct(r.Context(), actorFrom(r.Context()).ID, pathID(r)); err != nil {
		s.fail(w, "deleteProduct", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Product deleted"})
}

// handleListBanners shows every banner to banner managers and only the
// active ones to everybody else.
func (s *Server) handleListBanners(w http.ResponseWriter, r *http.Request) {
	var (
		banners []*storage.Banner
		err     error
	)
	if actor := actorFrom(r.Context()); actor != nil && permission.Has(actor, permission.CapManageBanners) {
		banners, err = s.storage.GetBanners(r.Context())
	} else {
		banners, err = s.storage.GetActiveBanners(r.Context())
	}
	if err != nil {
		s.fail(w, "listBanners", err)
		return
	}
	respondJSON(w, http.StatusOK, banners)
}

func (s *Server) handleCreateBanner(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title     string `json:"title"`
		Subtitle  string `json:"subtitle"`
		ImageURL  string `json:"image_url"`
		Link      string `json:"link"`
		IsActive  bool   `json:"is_active"`
		SortOrder int    `json:"sort_order"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	banner, err := s.storage.CreateBanner(r.Context(), actorFrom(r.Context()).ID, storage.BannerInput{
		Title:     req.Title,
		Subtitle:  req.Subtitle,
		ImageURL:  req.ImageURL,
		Link:      req.Link,
		IsActive:  req.IsActive,
		SortOrder: req.SortOrder,
	})
	if err != nil {
		s.fail(w, "createBanner", err)
		return
	}
	respondJSON(w, http.StatusCreated, banner)
}

func (s *Server) handleUpdateBanner(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title           *string `json:"title"`
		Subtitle        *string `json:"subtitle"`
		ImageURL        *string `json:"image_url"`
		Link            *string `json:"link"`
		IsActive        *bool   `json:"is_active"`
		SortOrder       *int    `json:"sort_order"`
		ExpectedVersion int64   `json:"expected_version"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	banner, err := s.storage.UpdateBanner(r.Context(), actorFrom(r.Context()).ID, pathID(r), storage.BannerUpdate{
		Title:           req.Title,
		Subtitle:        req.Subtitle,
		ImageURL:        req.ImageURL,
		Link:            req.Link,
		IsActive:        req.IsActive,
		SortOrder:       req.SortOrder,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		s.fail(w, "updateBanner", err)
		return
	}
	respondJSON(w, http.StatusOK, banner)
}

func (s *Server) handleDeleteBanner(w http.ResponseWriter, r *http.Request) {
	if err := s.storage.DeleteBanner(r.Context(), actorFrom(r.Context()).ID, pathID(r)); err != nil {
		s.fail(w, "deleteBanner", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Banner deleted"})
}
