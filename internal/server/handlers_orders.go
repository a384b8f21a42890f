package server

import (
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/metrics"
	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/permission"
	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/storage"
)

// canView lets the owner or a holder of the capability see an entity.
func canView(actor *storage.User, ownerID string, c permission.Capability) error {
	if actor.ID == ownerID || permission.Has(actor, c) {
		return nil
	}
	return fmt.Errorf("%w: not your record", storage.ErrUnauthorized)
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())

	var (
		orders []*storage.Order
		err    error
	)
	if permission.Has(actor, permission.CapUpdateOrders) {
		orders, err = s.storage.GetOrders(r.Context())
	} else {
		orders, err = s.storage.GetUserOrders(r.Context(), actor.ID)
	}
	if err != nil {
		s.fail(w, "listOrders", err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := s.storage.GetOrder(r.Context(), pathID(r))
	if err == nil {
		err = canView(actorFrom(r.Context()), order.UserID, permission.CapUpdateOrders)
	}
	if err != nil {
		s.fail(w, "getOrder", err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Items []struct {
			ProductID string `json:"product_id"`
			Quantity  int    `json:"quantity"`
		} `json:"items"`
		ShippingAddress string `json:"shipping_address"`
		GiftMessage     string `json:"gift_message"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	in := storage.OrderInput{
		ShippingAddress: req.ShippingAddress,
		GiftMessage:     req.GiftMessage,
	}
	for _, item := range req.Items {
		in.Lines = append(in.Lines, storage.OrderLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	order, err := s.storage.PlaceOrder(r.Context(), actorFrom(r.Context()).ID, in)
	if err != nil {
		s.fail(w, "placeOrder", err)
		return
	}
	metrics.OrdersPlacedTotal.Inc()
	respondJSON(w, http.StatusCreated, order)
}

func (s *Server) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status          string `json:"status"`
		Note            string `json:"note"`
		ExpectedVersion int64  `json:"expected_version"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	order, err := s.storage.UpdateOrderStatus(r.Context(), actorFrom(r.Context()).ID, pathID(r), storage.OrderStatusChange{
		Status:          storage.OrderStatus(req.Status),
		Note:            req.Note,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		s.fail(w, "updateOrderStatus", err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (s *Server) handleListRequests(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())

	var (
		requests []*storage.CustomRequest
		err      error
	)
	if permission.Has(actor, permission.CapManageCustomRequests) {
		requests, err = s.storage.GetRequests(r.Context())
	} else {
		requests, err = s.storage.GetUserRequests(r.Context(), actor.ID)
	}
	if err != nil {
		s.fail(w, "listRequests", err)
		return
	}
	respondJSON(w, http.StatusOK, requests)
}

func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := s.storage.GetRequest(r.Context(), pathID(r))
	if err == nil {
		err = canView(actorFrom(r.Context()), req.UserID, permission.CapManageCustomRequests)
	}
	if err != nil {
		s.fail(w, "getRequest", err)
		return
	}
	respondJSON(w, http.StatusOK, req)
}

func (s *Server) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string          `json:"title"`
		Description string          `json:"description"`
		Budget      decimal.Decimal `json:"budget"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	created, err := s.storage.CreateRequest(r.Context(), actorFrom(r.Context()).ID, storage.RequestInput{
		Title:       req.Title,
		Description: req.Description,
		Budget:      req.Budget,
	})
	if err != nil {
		s.fail(w, "createRequest", err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateRequestStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status          string         `json:"status"`
		Quote           *storage.Quote `json:"quote"`
		ExpectedVersion int64          `json:"expected_version"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	status, ok := storage.ParseRequestStatus(req.Status)
	if !ok {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("Unknown request status %q", req.Status))
		return
	}

	updated, err := s.storage.UpdateRequestStatus(r.Context(), actorFrom(r.Context()).ID, pathID(r), storage.RequestStatusChange{
		Status:          status,
		Quote:           req.Quote,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		s.fail(w, "updateRequestStatus", err)
		return
	}
	if req.Quote != nil {
		metrics.RequestsQuotedTotal.Inc()
	}
	respondJSON(w, http.StatusOK, updated)
}
