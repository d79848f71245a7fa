package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/supabros/bookstore/internal/config"
)

// Mastercard talks to the Mastercard Gateway REST API.
type Mastercard struct {
	baseURL    string
	merchantID string
	password   string
	version    string
	client     *http.Client
}

func NewMastercard(cfg config.MastercardConfig, timeout time.Duration) *Mastercard {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	version := cfg.APIVersion
	if version == "" {
		version = "78"
	}
	return &Mastercard{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		merchantID: cfg.MerchantID,
		password:   cfg.Password,
		version:    version,
		client:     &http.Client{Timeout: timeout},
	}
}

type mcExpiry struct {
	Month string `json:"month"`
	Year  string `json:"year"`
}

type mcCard struct {
	Number       string   `json:"number"`
	Expiry       mcExpiry `json:"expiry"`
	SecurityCode string   `json:"securityCode,omitempty"`
}

type mcSourceOfFunds struct {
	Type     string `json:"type"`
	Provided struct {
		Card mcCard `json:"card"`
	} `json:"provided"`
}

type mcPayRequest struct {
	APIOperation string `json:"apiOperation"`
	Order        struct {
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
	} `json:"order"`
	SourceOfFunds *mcSourceOfFunds `json:"sourceOfFunds,omitempty"`
	Customer struct {
		Email string `json:"email"`
	} `json:"customer"`
}

type mcPayResponse struct {
	Result      string `json:"result"`
	Transaction struct {
		ID string `json:"id"`
	} `json:"transaction"`
	Response struct {
		GatewayCode string `json:"gatewayCode"`
	} `json:"response"`
	Error *struct {
		Cause       string `json:"cause"`
		Explanation string `json:"explanation"`
	} `json:"error"`
}

func (m *Mastercard) buildRequest(req ChargeRequest) mcPayRequest {
	var body mcPayRequest
	body.APIOperation = "PAY"
	body.Order.Amount = req.Amount.StringFixed(2)
	body.Order.Currency = req.Currency
	body.Customer.Email = req.Email
	if req.Card != nil {
		month, year, _ := expiry(req.Card.ExpiryMonth, req.Card.ExpiryYear)
		body.SourceOfFunds = &mcSourceOfFunds{Type: "CARD"}
		body.SourceOfFunds.Provided.Card = mcCard{
			Number:       normalizePAN(req.Card.Number),
			Expiry:       mcExpiry{Month: fmt.Sprintf("%02d", int(month)), Year: fmt.Sprintf("%02d", year%100)},
			SecurityCode: req.Card.SecurityCode,
		}
	}
	return body
}

func (m *Mastercard) Charge(ctx context.Context, req ChargeRequest) ChargeResult {
	txnRef := uuid.NewString()
	endpoint := fmt.Sprintf("%s/api/rest/version/%s/merchant/%s/order/%s/transaction/%s",
		m.baseURL, m.version, url.PathEscape(m.merchantID), url.PathEscape(req.OrderRef), txnRef)

	body, err := json.Marshal(m.buildRequest(req))
	if err != nil {
		return failed("Payment system error")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return failed("Payment system error")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth("merchant."+m.merchantID, m.password)

	resp, err := m.client.Do(httpReq)
	if err != nil {
		log.Printf("[PAYMENT] mastercard request failed for %s: %v", req.OrderRef, err)
		return failed("Payment processing failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return failed("Payment processing failed")
	}

	var out mcPayResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		log.Printf("[PAYMENT] mastercard returned %d with unreadable body for %s", resp.StatusCode, req.OrderRef)
		return failed("Payment processing failed")
	}

	if out.Result == "SUCCESS" {
		id := out.Transaction.ID
		if id == "" {
			id = txnRef
		}
		return ChargeResult{Success: true, TransactionID: id}
	}

	log.Printf("[PAYMENT] mastercard declined %s: result=%s code=%s", req.OrderRef, out.Result, out.Response.GatewayCode)
	if out.Error != nil && out.Error.Explanation != "" {
		return failed(out.Error.Explanation)
	}
	return failed("Payment declined")
}
