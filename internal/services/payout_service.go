package services

import (
	"encoding/xml"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/moov-io/iso20022/pkg/common"
	"github.com/moov-io/iso20022/pkg/pacs_v08"
	"github.com/supabros/bookstore/internal/config"
	"github.com/supabros/bookstore/internal/models"
)

const pacs008MessageType = "pacs.008.001.08"

// PayoutService turns wallet transfers into ISO 20022 credit transfer
// instructions for the seller's bank.
type PayoutService struct {
	cfg      config.PayoutConfig
	currency string
	now      func() time.Time
}

func NewPayoutService(cfg config.PayoutConfig, currency string) *PayoutService {
	if currency == "" {
		currency = "USD"
	}
	return &PayoutService{cfg: cfg, currency: currency, now: time.Now}
}

// CreatePacs008 creates a pacs.008 FIToFICustomerCreditTransfer for a
// completed transfer_to_bank wallet entry.
func (p *PayoutService) CreatePacs008(wtx *models.WalletTransaction) (*pacs_v08.FIToFICustomerCreditTransferV08, error) {
	if wtx.Type != models.WalletTransferToBank {
		return nil, fmt.Errorf("wallet transaction %s is %s, not a bank transfer", wtx.ID, wtx.Type)
	}
	if wtx.BankAccountInfo == nil || *wtx.BankAccountInfo == "" {
		return nil, fmt.Errorf("wallet transaction %s has no bank account", wtx.ID)
	}

	amount, err := models.ParseAmount(wtx.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid transfer amount %q: %w", wtx.Amount, err)
	}

	msgId := uuid.New().String()
	creDtTm := p.now().UTC()
	settlementDate := creDtTm
	value := amount.Round(2).InexactFloat64()

	doc := &pacs_v08.FIToFICustomerCreditTransferV08{
		GrpHdr: pacs_v08.GroupHeader93{
			MsgId:   common.Max35Text(truncate(msgId, 35)),
			CreDtTm: common.ISODateTime(creDtTm),
			NbOfTxs: "1",
			TtlIntrBkSttlmAmt: &pacs_v08.ActiveCurrencyAndAmount{
				Ccy:   common.ActiveCurrencyCode(p.currency),
				Value: value,
			},
			IntrBkSttlmDt: (*common.ISODate)(&settlementDate),
			SttlmInf: pacs_v08.SettlementInstruction7{
				SttlmMtd: "CLRG",
			},
		},
		CdtTrfTxInf: []pacs_v08.CreditTransferTransaction39{
			{
				PmtId: pacs_v08.PaymentIdentification7{
					InstrId:    &[]common.Max35Text{common.Max35Text(truncate(wtx.ID, 35))}[0],
					EndToEndId: common.Max35Text(truncate(wtx.ID, 35)),
					TxId:       &[]common.Max35Text{common.Max35Text(truncate(wtx.ID, 35))}[0],
				},
				IntrBkSttlmAmt: pacs_v08.ActiveCurrencyAndAmount{
					Ccy:   common.ActiveCurrencyCode(p.currency),
					Value: value,
				},
				IntrBkSttlmDt: (*common.ISODate)(&settlementDate),
				ChrgBr:        "SLEV",
				DbtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						BICFI: &[]common.BICFIDec2014Identifier{common.BICFIDec2014Identifier(p.cfg.DebtorBIC)}[0],
					},
				},
				Dbtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(truncate(p.cfg.DebtorName, 140))}[0],
				},
				Cdtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(truncate(*wtx.BankAccountInfo, 140))}[0],
				},
			},
		},
	}

	return doc, nil
}

// ConvertToXML converts ISO20022 document to XML string
func (p *PayoutService) ConvertToXML(doc any) (string, error) {
	xmlData, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal XML: %w", err)
	}
	return xml.Header + string(xmlData), nil
}

// SendToSettlement hands the instruction to the settlement channel, which
// is the log until a bank connection exists.
func (p *PayoutService) SendToSettlement(doc *pacs_v08.FIToFICustomerCreditTransferV08) error {
	xmlData, err := p.ConvertToXML(doc)
	if err != nil {
		return err
	}
	log.Printf("[SETTLEMENT] %s %s\n%s", pacs008MessageType, doc.GrpHdr.MsgId, xmlData)
	return nil
}

// Dispatch builds and sends the instruction for a transfer and returns the
// message id.
func (p *PayoutService) Dispatch(wtx *models.WalletTransaction) (string, error) {
	doc, err := p.CreatePacs008(wtx)
	if err != nil {
		return "", err
	}
	if err := p.SendToSettlement(doc); err != nil {
		return "", err
	}
	return string(doc.GrpHdr.MsgId), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
