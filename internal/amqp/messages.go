package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	ActionCreated = "created"
	ActionDeleted = "deleted"
)

// TransactionEvent tells the reconciliation worker that a ledger write
// touched an account. It carries the amount only for logging; the worker
// recomputes the balance from the ledger, not from the event.
type TransactionEvent struct {
	TransactionID int64     `json:"transactionId"`
	AccountID     int64     `json:"accountId"`
	Action        string    `json:"action"`
	AmountCents   int64     `json:"amountCents"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewTransactionEvent(transactionID, accountID, amountCents int64, action string) *TransactionEvent {
	return &TransactionEvent{
		TransactionID: transactionID,
		AccountID:     accountID,
		Action:        action,
		AmountCents:   amountCents,
		Timestamp:     time.Now(),
	}
}

func (e *TransactionEvent) Validate() error {
	if e.AccountID <= 0 {
		return fmt.Errorf("invalid account id %d", e.AccountID)
	}
	if e.Action != ActionCreated && e.Action != ActionDeleted {
		return fmt.Errorf("unknown action %q", e.Action)
	}
	return nil
}

func (e *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var e TransactionEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}
