package services

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/supabros/bookstore/internal/config"
	"github.com/supabros/bookstore/internal/models"
)

func newTestPayoutService() *PayoutService {
	p := NewPayoutService(config.PayoutConfig{DebtorName: "Test Seller", DebtorBIC: "TESTUS33XXX"}, "USD")
	p.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	return p
}

func TestPayoutService_CreatePacs008(t *testing.T) {
	service := newTestPayoutService()
	account := "Acme Bank 000123456"

	t.Run("transfer becomes credit transfer", func(t *testing.T) {
		wtx := &models.WalletTransaction{
			ID:              "wtx-1",
			Type:            models.WalletTransferToBank,
			Amount:          "40.00",
			Status:          models.WalletStatusCompleted,
			BankAccountInfo: &account,
		}

		doc, err := service.CreatePacs008(wtx)
		require.NoError(t, err)

		assert.Equal(t, "1", string(doc.GrpHdr.NbOfTxs))
		assert.Equal(t, 40.0, doc.GrpHdr.TtlIntrBkSttlmAmt.Value)
		require.Len(t, doc.CdtTrfTxInf, 1)

		tx := doc.CdtTrfTxInf[0]
		assert.Equal(t, "wtx-1", string(tx.PmtId.EndToEndId))
		assert.Equal(t, "USD", string(tx.IntrBkSttlmAmt.Ccy))
		assert.Equal(t, account, string(*tx.Cdtr.Nm))
		assert.Equal(t, "TESTUS33XXX", string(*tx.DbtrAgt.FinInstnId.BICFI))
	})

	t.Run("rejects non transfers", func(t *testing.T) {
		_, err := service.CreatePacs008(&models.WalletTransaction{ID: "wtx-2", Type: models.WalletPaymentReceived, Amount: "1.00"})
		assert.Error(t, err)
	})

	t.Run("requires bank account", func(t *testing.T) {
		_, err := service.CreatePacs008(&models.WalletTransaction{ID: "wtx-3", Type: models.WalletTransferToBank, Amount: "1.00"})
		assert.Error(t, err)
	})
}

func TestPayoutService_ConvertToXML(t *testing.T) {
	service := newTestPayoutService()
	account := "Acme Bank 000123456"

	doc, err := service.CreatePacs008(&models.WalletTransaction{
		ID: "wtx-1", Type: models.WalletTransferToBank, Amount: "12.50", BankAccountInfo: &account,
	})
	require.NoError(t, err)

	xmlData, err := service.ConvertToXML(doc)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(xmlData, "<?xml"))
	assert.Contains(t, xmlData, "wtx-1")
	assert.Contains(t, xmlData, "Acme Bank 000123456")
}

func TestPayoutService_Dispatch(t *testing.T) {
	service := newTestPayoutService()
	account := "Acme Bank 000123456"

	msgID, err := service.Dispatch(&models.WalletTransaction{
		ID: "wtx-9", Type: models.WalletTransferToBank, Amount: "5.00", BankAccountInfo: &account,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, msgID)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab", truncate("abc", 2))
}
