package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/supabros/bookstore/internal/config"
	"github.com/supabros/bookstore/internal/models"
)

const cyberSourcePaymentsPath = "/pts/v2/payments"

// CyberSource talks to the CyberSource REST payments API using HTTP
// signature authentication.
type CyberSource struct {
	baseURL    string
	host       string
	merchantID string
	keyID      string
	secret     []byte
	client     *http.Client
	now        func() time.Time
}

func NewCyberSource(cfg config.CyberSourceConfig, timeout time.Duration) (*CyberSource, error) {
	base := cfg.Host
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid cybersource host: %w", err)
	}
	secret, err := base64.StdEncoding.DecodeString(cfg.SharedSecret)
	if err != nil {
		return nil, fmt.Errorf("cybersource shared secret must be base64: %w", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &CyberSource{
		baseURL:    strings.TrimRight(u.String(), "/"),
		host:       u.Host,
		merchantID: cfg.MerchantID,
		keyID:      cfg.KeyID,
		secret:     secret,
		client:     &http.Client{Timeout: timeout},
		now:        time.Now,
	}, nil
}

type csCard struct {
	Type            string `json:"type"`
	Number          string `json:"number,omitempty"`
	ExpirationMonth string `json:"expirationMonth,omitempty"`
	ExpirationYear  string `json:"expirationYear,omitempty"`
	SecurityCode    string `json:"securityCode,omitempty"`
}

type csPaymentRequest struct {
	ClientReferenceInformation struct {
		Code string `json:"code"`
	} `json:"clientReferenceInformation"`
	ProcessingInformation struct {
		Capture bool `json:"capture"`
	} `json:"processingInformation"`
	PaymentInformation struct {
		Card csCard `json:"card"`
	} `json:"paymentInformation"`
	OrderInformation struct {
		AmountDetails struct {
			TotalAmount string `json:"totalAmount"`
			Currency    string `json:"currency"`
		} `json:"amountDetails"`
		BillTo struct {
			Email string `json:"email"`
		} `json:"billTo"`
	} `json:"orderInformation"`
}

type csPaymentResponse struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	Message          string `json:"message"`
	ErrorInformation *struct {
		Reason  string `json:"reason"`
		Message string `json:"message"`
	} `json:"errorInformation"`
}

// cardType maps to CyberSource's card type codes.
func cardType(method models.PaymentMethod) string {
	if method == models.PaymentMethodMastercard {
		return "002"
	}
	return "001"
}

func (c *CyberSource) buildRequest(req ChargeRequest) csPaymentRequest {
	var body csPaymentRequest
	body.ClientReferenceInformation.Code = req.OrderRef
	body.ProcessingInformation.Capture = true
	body.PaymentInformation.Card = csCard{Type: cardType(req.PaymentMethod)}
	if req.Card != nil {
		month, year, _ := expiry(req.Card.ExpiryMonth, req.Card.ExpiryYear)
		body.PaymentInformation.Card.Number = normalizePAN(req.Card.Number)
		body.PaymentInformation.Card.ExpirationMonth = fmt.Sprintf("%02d", int(month))
		body.PaymentInformation.Card.ExpirationYear = fmt.Sprintf("%04d", year)
		body.PaymentInformation.Card.SecurityCode = req.Card.SecurityCode
	}
	body.OrderInformation.AmountDetails.TotalAmount = req.Amount.StringFixed(2)
	body.OrderInformation.AmountDetails.Currency = req.Currency
	body.OrderInformation.BillTo.Email = req.Email
	return body
}

// Digest is the SHA-256 body digest header value.
func Digest(body []byte) string {
	sum := sha256.Sum256(body)
	return "SHA-256=" + base64.StdEncoding.EncodeToString(sum[:])
}

// Sign builds the Signature header for a POST to path.
func (c *CyberSource) Sign(date, path, digest string) string {
	signing := strings.Join([]string{
		"host: " + c.host,
		"date: " + date,
		"(request-target): post " + path,
		"digest: " + digest,
		"v-c-merchant-id: " + c.merchantID,
	}, "\n")

	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(signing))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return fmt.Sprintf(`keyid="%s", algorithm="HmacSHA256", headers="host date (request-target) digest v-c-merchant-id", signature="%s"`,
		c.keyID, sig)
}

func (c *CyberSource) Charge(ctx context.Context, req ChargeRequest) ChargeResult {
	body, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return failed("Payment system error")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+cyberSourcePaymentsPath, bytes.NewReader(body))
	if err != nil {
		return failed("Payment system error")
	}
	date := c.now().UTC().Format(http.TimeFormat)
	digest := Digest(body)
	httpReq.Header.Set("Content-Type", "application/json;charset=utf-8")
	httpReq.Header.Set("v-c-merchant-id", c.merchantID)
	httpReq.Header.Set("Date", date)
	httpReq.Header.Set("Digest", digest)
	httpReq.Header.Set("Signature", c.Sign(date, cyberSourcePaymentsPath, digest))

	resp, err := c.client.Do(httpReq)
	if err != nil {
		log.Printf("[PAYMENT] cybersource request failed for %s: %v", req.OrderRef, err)
		return failed("Payment processing failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return failed("Payment processing failed")
	}

	var out csPaymentResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		log.Printf("[PAYMENT] cybersource returned %d with unreadable body for %s", resp.StatusCode, req.OrderRef)
		return failed("Payment processing failed")
	}

	if out.Status == "AUTHORIZED" {
		return ChargeResult{Success: true, TransactionID: out.ID}
	}

	log.Printf("[PAYMENT] cybersource declined %s: status=%s http=%d", req.OrderRef, out.Status, resp.StatusCode)
	switch {
	case out.ErrorInformation != nil && out.ErrorInformation.Message != "":
		return failed(out.ErrorInformation.Message)
	case out.Message != "":
		return failed(out.Message)
	}
	return failed("Payment declined")
}
