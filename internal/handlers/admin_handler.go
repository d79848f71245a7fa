package handlers

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/supabros/bookstore/internal/middleware"
	"github.com/supabros/bookstore/internal/services"
)

type AdminHandler struct {
	catalog   *services.CatalogService
	checkout  *services.CheckoutService
	wallet    *services.WalletService
	dashboard *services.DashboardService
}

func NewAdminHandler(catalog *services.CatalogService, checkout *services.CheckoutService, wallet *services.WalletService, dashboard *services.DashboardService) *AdminHandler {
	return &AdminHandler{
		catalog:   catalog,
		checkout:  checkout,
		wallet:    wallet,
		dashboard: dashboard,
	}
}

func actor(r *http.Request) string {
	if a, ok := middleware.AdminFromContext(r.Context()); ok {
		return a.Username
	}
	return "unknown"
}

// CreateBook adds a book to the catalog
// @Summary Create book
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body services.BookInput true "Book"
// @Success 200 {object} models.Book
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Router /admin/books [post]
func (h *AdminHandler) CreateBook(w http.ResponseWriter, r *http.Request) {
	var req services.BookInput
	if err := services.DecodeJSON(w, r, &req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	book, err := h.catalog.CreateBook(r.Context(), req)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	log.Printf("[ADMIN] %s created book %s", actor(r), book.ID)
	services.SendJSON(w, http.StatusOK, book)
}

// UpdateBook edits a book
// @Summary Update book
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Book ID"
// @Param request body services.BookPatch true "Fields to change"
// @Success 200 {object} models.Book
// @Failure 404 {object} services.ErrorResponse
// @Router /admin/books/{id} [put]
func (h *AdminHandler) UpdateBook(w http.ResponseWriter, r *http.Request) {
	var req services.BookPatch
	if err := services.DecodeJSON(w, r, &req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	book, err := h.catalog.UpdateBook(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, book)
}

// DeleteBook removes a book that was never ordered
// @Summary Delete book
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Book ID"
// @Success 200 {object} map[string]string
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /admin/books/{id} [delete]
func (h *AdminHandler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.catalog.DeleteBook(r.Context(), id); err != nil {
		services.SendServiceError(w, err)
		return
	}
	log.Printf("[ADMIN] %s deleted book %s", actor(r), id)
	services.SendJSON(w, http.StatusOK, map[string]string{"message": "Book deleted successfully"})
}

// ListTransactions lists payment transactions with their order summary
// @Summary List transactions
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.TransactionWithOrder
// @Router /admin/transactions [get]
func (h *AdminHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.dashboard.Transactions(r.Context())
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, txs)
}

// Refund reverses a completed transaction
// @Summary Refund transaction
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Transaction ID"
// @Success 200 {object} map[string]string
// @Failure 400 {object} services.ErrorResponse "Already refunded"
// @Failure 404 {object} services.ErrorResponse
// @Router /admin/transactions/{id}/refund [post]
func (h *AdminHandler) Refund(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.checkout.Refund(r.Context(), id); err != nil {
		services.SendServiceError(w, err)
		return
	}
	log.Printf("[ADMIN] %s refunded transaction %s", actor(r), id)
	services.SendJSON(w, http.StatusOK, map[string]string{"message": "Refund processed successfully"})
}

// Wallet returns balances and the wallet log
// @Summary Seller wallet
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} services.WalletView
// @Router /admin/wallet [get]
func (h *AdminHandler) Wallet(w http.ResponseWriter, r *http.Request) {
	view, err := h.wallet.Wallet(r.Context())
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, view)
}

// Transfer pays out to the seller's bank account
// @Summary Transfer to bank
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body services.TransferRequest true "Transfer"
// @Success 200 {object} models.WalletTransaction
// @Failure 400 {object} services.ErrorResponse "Insufficient balance"
// @Router /admin/wallet/transfer [post]
func (h *AdminHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req services.TransferRequest
	if err := services.DecodeJSON(w, r, &req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	wtx, err := h.wallet.Transfer(r.Context(), req)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	log.Printf("[ADMIN] %s transferred %s", actor(r), wtx.Amount)
	services.SendJSON(w, http.StatusOK, wtx)
}

// DashboardStats returns revenue and order aggregates
// @Summary Dashboard stats
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} services.DashboardStats
// @Router /admin/dashboard-stats [get]
func (h *AdminHandler) DashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.dashboard.Stats(r.Context())
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, stats)
}

// DBStatus reports whether the ledger store answers
// @Summary Store status
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} services.DBStatus
// @Router /admin/db-status [get]
func (h *AdminHandler) DBStatus(w http.ResponseWriter, r *http.Request) {
	services.SendJSON(w, http.StatusOK, h.dashboard.DBStatus(r.Context()))
}

// BackupStatus lists the replication queue
// @Summary Replication queue status
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} services.BackupStatus
// @Router /admin/backup-status [get]
func (h *AdminHandler) BackupStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.dashboard.BackupStatus(r.Context())
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, status)
}
