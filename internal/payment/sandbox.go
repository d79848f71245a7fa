package payment

import (
	"context"
	"log"
	"strings"

	"github.com/google/uuid"
)

// Sandbox approves every charge except amounts ending in .13.
type Sandbox struct{}

func (Sandbox) Charge(ctx context.Context, req ChargeRequest) ChargeResult {
	if strings.HasSuffix(req.Amount.StringFixed(2), ".13") {
		log.Printf("[PAYMENT] sandbox declined %s for %s", req.Amount.StringFixed(2), req.OrderRef)
		return failed("Card declined")
	}
	return ChargeResult{Success: true, TransactionID: "sbx_" + strings.ReplaceAll(uuid.NewString(), "-", "")}
}
