package audit

import (
	"encoding/json"
	"log"
	"time"
)

type Event struct {
	Timestamp     time.Time `json:"timestamp"`
	EventType     string    `json:"event_type"`
	OrderID       string    `json:"order_id,omitempty"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Amount        string    `json:"amount,omitempty"`
	Status        string    `json:"status"`
	Details       any       `json:"details,omitempty"`
}

// Logger writes one JSON line per money movement, prefixed with AUDIT:.
type Logger struct {
	out *log.Logger
	now func() time.Time
}

func NewLogger() *Logger {
	return &Logger{out: log.Default(), now: time.Now}
}

// NewLoggerTo is used by tests to capture output.
func NewLoggerTo(out *log.Logger) *Logger {
	return &Logger{out: out, now: time.Now}
}

// LogCharge records a gateway call before anything is written, so a crash
// between charge and record still leaves the gateway id in the log.
func (a *Logger) LogCharge(orderRef, method, amount, gatewayID string, success bool, reason string) {
	status := "APPROVED"
	details := map[string]string{"payment_method": method, "gateway_transaction_id": gatewayID}
	if !success {
		status = "DECLINED"
		details["reason"] = reason
	}
	a.log(Event{
		EventType:     "CHARGE",
		OrderID:       orderRef,
		TransactionID: gatewayID,
		Amount:        amount,
		Status:        status,
		Details:       details,
	})
}

func (a *Logger) LogOrderRecorded(orderID, transactionID, amount string) {
	a.log(Event{EventType: "ORDER_RECORDED", OrderID: orderID, TransactionID: transactionID, Amount: amount, Status: "SUCCESS"})
}

func (a *Logger) LogRefund(orderID, transactionID, amount string) {
	a.log(Event{EventType: "REFUND", OrderID: orderID, TransactionID: transactionID, Amount: amount, Status: "SUCCESS"})
}

func (a *Logger) LogTransfer(walletTxID, amount, bankAccount, messageID string) {
	a.log(Event{
		EventType:     "TRANSFER",
		TransactionID: walletTxID,
		Amount:        amount,
		Status:        "SUCCESS",
		Details:       map[string]string{"bank_account": bankAccount, "pacs008_msg_id": messageID},
	})
}

func (a *Logger) LogError(operation, reference string, err error) {
	a.log(Event{
		EventType:     operation,
		TransactionID: reference,
		Status:        "FAILED",
		Details:       map[string]string{"error": err.Error()},
	})
}

func (a *Logger) log(event Event) {
	event.Timestamp = a.now().UTC()
	data, _ := json.Marshal(event)
	a.out.Printf("AUDIT: %s", string(data))
}
