package payment

import (
	"context"
	"log"
	"time"

	"github.com/supabros/bookstore/internal/config"
	"github.com/supabros/bookstore/internal/models"
)

// Router picks the gateway for a payment method.
type Router struct {
	routes map[models.PaymentMethod]Gateway
	now    func() time.Time
}

// NewRouter sends mastercard to the Mastercard gateway and everything else
// (visa, prepaid and the digital wallets) to CyberSource.
func NewRouter(cybersource, mastercard Gateway) *Router {
	return &Router{
		routes: map[models.PaymentMethod]Gateway{
			models.PaymentMethodVisa:       cybersource,
			models.PaymentMethodPrepaid:    cybersource,
			models.PaymentMethodGooglePay:  cybersource,
			models.PaymentMethodApplePay:   cybersource,
			models.PaymentMethodMastercard: mastercard,
		},
		now: time.Now,
	}
}

func (r *Router) Charge(ctx context.Context, req ChargeRequest) (result ChargeResult) {
	defer func() {
		if p := recover(); p != nil {
			log.Printf("[PAYMENT] gateway panic for %s: %v", req.OrderRef, p)
			result = failed("Payment system error")
		}
	}()

	gw, ok := r.routes[req.PaymentMethod]
	if !ok || gw == nil {
		return failed("Invalid payment method")
	}
	if !req.Amount.IsPositive() {
		return failed("Invalid payment amount")
	}

	if req.Card != nil {
		if err := ValidateCard(*req.Card, r.now()); err != nil {
			return failed(err.Error())
		}
	}

	result = gw.Charge(ctx, req)
	if !result.Success && result.Error == "" {
		result.Error = "Payment declined"
	}
	return result
}

// NewFromConfig builds the router for the configured mode. Sandbox mode
// never leaves the process.
func NewFromConfig(cfg config.PaymentConfig) (*Router, error) {
	if cfg.Mode != "live" {
		log.Println("[PAYMENT] sandbox mode, no charges leave this process")
		return NewRouter(Sandbox{}, Sandbox{}), nil
	}

	cs, err := NewCyberSource(cfg.CyberSource, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	return NewRouter(cs, NewMastercard(cfg.Mastercard, cfg.Timeout)), nil
}
