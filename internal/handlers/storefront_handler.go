package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/supabros/bookstore/internal/services"
)

type StorefrontHandler struct {
	catalog  *services.CatalogService
	checkout *services.CheckoutService
	receipts *services.ReceiptService
}

func NewStorefrontHandler(catalog *services.CatalogService, checkout *services.CheckoutService, receipts *services.ReceiptService) *StorefrontHandler {
	return &StorefrontHandler{
		catalog:  catalog,
		checkout: checkout,
		receipts: receipts,
	}
}

// ListBooks returns the catalog
// @Summary List books
// @Description List every book in the catalog, newest first
// @Tags storefront
// @Produce json
// @Success 200 {array} models.Book
// @Failure 500 {object} services.ErrorResponse
// @Router /books [get]
func (h *StorefrontHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.catalog.ListBooks(r.Context())
	if err != nil {
		log.Printf("[STOREFRONT] Listing books failed: %v", err)
		services.SendServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, books)
}

// CreateSession validates a cart and opens a payment session
// @Summary Create payment session
// @Description Re-price the cart against the catalog and remember the total
// @Tags checkout
// @Accept json
// @Produce json
// @Param request body services.SessionRequest true "Cart"
// @Success 200 {object} object{success=bool,sessionId=string,totalAmount=string}
// @Failure 400 {object} services.ErrorResponse
// @Router /payment/create-session [post]
func (h *StorefrontHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req services.SessionRequest
	if err := services.DecodeJSON(w, r, &req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	res, err := h.checkout.CreateSession(r.Context(), req)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	services.SendJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"sessionId":   res.SessionID,
		"totalAmount": res.TotalAmount,
	})
}

// PlaceOrder charges the cart and records the order
// @Summary Place order
// @Description Validate, charge and record an order
// @Tags checkout
// @Accept json
// @Produce json
// @Param request body services.OrderRequest true "Order"
// @Success 200 {object} services.OrderResult
// @Failure 400 {object} services.ErrorResponse
// @Router /orders [post]
func (h *StorefrontHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req services.OrderRequest
	if err := services.DecodeJSON(w, r, &req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	res, err := h.checkout.PlaceOrder(r.Context(), req)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, res)
}

// ChargeVisa charges a card directly
// @Summary Direct Visa charge
// @Description Charge raw card details. A pending order is written before the charge.
// @Tags checkout
// @Accept json
// @Produce json
// @Param request body services.CardChargeRequest true "Card charge"
// @Success 200 {object} object{success=bool,transactionId=string,orderId=string}
// @Failure 400 {object} object{success=bool,error=string}
// @Router /payment/visa/charge [post]
func (h *StorefrontHandler) ChargeVisa(w http.ResponseWriter, r *http.Request) {
	var req services.CardChargeRequest
	if err := services.DecodeJSON(w, r, &req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	res, err := h.checkout.ChargeCard(r.Context(), req)
	var pe *services.PaymentError
	if errors.As(err, &pe) {
		services.SendJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": pe.Message})
		return
	}
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	services.SendJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"transactionId": res.TransactionID,
		"orderId":       res.OrderID,
	})
}

// CreateMastercardSession opens a hosted checkout
// @Summary Mastercard hosted checkout session
// @Description Validate the cart, write a pending order and return the checkout URL
// @Tags checkout
// @Accept json
// @Produce json
// @Param request body services.SessionRequest true "Cart"
// @Success 200 {object} object{success=bool,sessionId=string,checkoutUrl=string}
// @Failure 400 {object} services.ErrorResponse
// @Router /payment/mastercard/create-session [post]
func (h *StorefrontHandler) CreateMastercardSession(w http.ResponseWriter, r *http.Request) {
	var req services.SessionRequest
	if err := services.DecodeJSON(w, r, &req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	res, err := h.checkout.CreateHostedSession(r.Context(), req)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	services.SendJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"sessionId":   res.SessionID,
		"checkoutUrl": res.CheckoutURL,
	})
}

// CompleteMastercardSession finalizes a hosted checkout
// @Summary Complete Mastercard hosted checkout
// @Tags checkout
// @Accept json
// @Produce json
// @Param request body object{sessionId=string,success=bool} true "Checkout outcome"
// @Success 200 {object} services.HostedCompletion
// @Failure 404 {object} services.ErrorResponse
// @Router /payment/mastercard/complete [post]
func (h *StorefrontHandler) CompleteMastercardSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"sessionId"`
		Success   bool   `json:"success"`
	}
	if err := services.DecodeJSON(w, r, &req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	res, err := h.checkout.CompleteHostedSession(r.Context(), req.SessionID, req.Success)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, res)
}

// ReceiptQR renders the receipt QR code of a completed order
// @Summary Order receipt QR code
// @Tags storefront
// @Produce png
// @Param id path string true "Order ID"
// @Success 200 {file} binary
// @Failure 404 {object} services.ErrorResponse
// @Router /orders/{id}/receipt-qr [get]
func (h *StorefrontHandler) ReceiptQR(w http.ResponseWriter, r *http.Request) {
	image, err := h.receipts.ReceiptQR(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.Write(image)
}
