package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/supabros/bookstore/internal/audit"
	"github.com/supabros/bookstore/internal/models"
	"github.com/supabros/bookstore/internal/store"
)

type TransferRequest struct {
	Amount          *decimal.Decimal `json:"amount"`
	BankAccountInfo string           `json:"bankAccountInfo"`
}

// WalletView is the admin wallet page: derived balances plus the full log.
type WalletView struct {
	AvailableBalance float64                    `json:"availableBalance"`
	PendingBalance   float64                    `json:"pendingBalance"`
	Transactions     []models.WalletTransaction `json:"transactions"`
}

type WalletService struct {
	store   store.Store
	payouts *PayoutService
	audit   *audit.Logger
}

func NewWalletService(st store.Store, payouts *PayoutService, auditLog *audit.Logger) *WalletService {
	return &WalletService{store: st, payouts: payouts, audit: auditLog}
}

func (s *WalletService) Wallet(ctx context.Context) (*WalletView, error) {
	balance, err := s.store.GetWalletBalance(ctx)
	if err != nil {
		return nil, err
	}
	txs, err := s.store.GetWalletTransactions(ctx)
	if err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []models.WalletTransaction{}
	}

	return &WalletView{
		AvailableBalance: balance.AvailableBalance.Round(2).InexactFloat64(),
		PendingBalance:   balance.PendingBalance.Round(2).InexactFloat64(),
		Transactions:     txs,
	}, nil
}

// Transfer moves money from the available balance to the seller's bank.
// The balance check and the debit run in one store transaction so two
// transfers cannot both spend the same balance.
func (s *WalletService) Transfer(ctx context.Context, req TransferRequest) (*models.WalletTransaction, error) {
	account := strings.TrimSpace(req.BankAccountInfo)
	if req.Amount == nil || account == "" {
		return nil, invalid("Amount and bank account info are required")
	}
	amount := req.Amount.Round(2)
	if !amount.IsPositive() {
		return nil, invalid("Amount must be a positive number")
	}

	wtx := &models.WalletTransaction{
		Type:            models.WalletTransferToBank,
		Amount:          models.FormatAmount(amount),
		Status:          models.WalletStatusCompleted,
		BankAccountInfo: &account,
		Description:     fmt.Sprintf("Transfer to bank account: %s", account),
	}

	err := s.store.InTx(ctx, func(l store.Ledger) error {
		balance, err := l.GetWalletBalance(ctx)
		if err != nil {
			return err
		}
		if amount.GreaterThan(balance.AvailableBalance) {
			return conflict(fmt.Sprintf("Insufficient balance. Available: $%s, Requested: $%s",
				balance.AvailableBalance.StringFixed(2), amount.StringFixed(2)))
		}
		return l.CreateWalletTransaction(ctx, wtx)
	})
	if err != nil {
		return nil, err
	}

	msgID, err := s.payouts.Dispatch(wtx)
	if err != nil {
		// the debit stands; settlement can be re-sent from the wallet log
		log.Printf("[WALLET] Payout instruction for %s not sent: %v", wtx.ID, err)
		s.audit.LogError("TRANSFER", wtx.ID, err)
	}

	s.audit.LogTransfer(wtx.ID, wtx.Amount, account, msgID)
	log.Printf("[WALLET] Transferred %s to %s", wtx.Amount, account)
	return wtx, nil
}
