package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type WalletTransactionType string

const (
	WalletPaymentReceived WalletTransactionType = "payment_received"
	WalletTransferToBank  WalletTransactionType = "transfer_to_bank"
	WalletRefundIssued    WalletTransactionType = "refund_issued"
)

type WalletTransactionStatus string

const (
	WalletStatusPending   WalletTransactionStatus = "pending"
	WalletStatusCompleted WalletTransactionStatus = "completed"
	WalletStatusFailed    WalletTransactionStatus = "failed"
)

// WalletTransaction is an append-only seller ledger entry
type WalletTransaction struct {
	ID              string                  `json:"id" db:"id"`
	Type            WalletTransactionType   `json:"type" db:"type"`
	Amount          string                  `json:"amount" db:"amount"`
	Status          WalletTransactionStatus `json:"status" db:"status"`
	BankAccountInfo *string                 `json:"bankAccountInfo" db:"bank_account_info"`
	Description     string                  `json:"description" db:"description"`
	CreatedAt       time.Time               `json:"createdAt" db:"created_at"`
}

// WalletBalance is derived from the wallet log, never stored
type WalletBalance struct {
	AvailableBalance decimal.Decimal `json:"availableBalance"`
	PendingBalance   decimal.Decimal `json:"pendingBalance"`
}

// MarshalJSON renders balances as JSON numbers for the admin console.
func (b WalletBalance) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]float64{
		"availableBalance": b.AvailableBalance.Round(2).InexactFloat64(),
		"pendingBalance":   b.PendingBalance.Round(2).InexactFloat64(),
	})
}

// FoldWalletBalance computes the balance from the full wallet log.
func FoldWalletBalance(txs []WalletTransaction) WalletBalance {
	available := decimal.Zero
	pending := decimal.Zero

	for _, tx := range txs {
		amount := MustAmount(tx.Amount)
		switch tx.Status {
		case WalletStatusCompleted:
			switch tx.Type {
			case WalletPaymentReceived:
				available = available.Add(amount)
			case WalletTransferToBank, WalletRefundIssued:
				available = available.Sub(amount)
			}
		case WalletStatusPending:
			if tx.Type == WalletPaymentReceived {
				pending = pending.Add(amount)
			}
		}
	}

	return WalletBalance{AvailableBalance: available, PendingBalance: pending}
}
