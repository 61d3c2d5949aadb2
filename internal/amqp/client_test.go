package amqp

import (
	"testing"
	"time"
)

func TestNewTransactionEvent(t *testing.T) {
	event := NewTransactionEvent(12, 3, -4500, ActionCreated)

	if event.TransactionID != 12 {
		t.Errorf("TransactionID = %v, want 12", event.TransactionID)
	}
	if event.AccountID != 3 {
		t.Errorf("AccountID = %v, want 3", event.AccountID)
	}
	if event.AmountCents != -4500 {
		t.Errorf("AmountCents = %v, want -4500", event.AmountCents)
	}
	if event.Action != ActionCreated {
		t.Errorf("Action = %q, want %q", event.Action, ActionCreated)
	}
	if event.Timestamp.IsZero() {
		t.Error("Timestamp should not be zero")
	}
	if time.Since(event.Timestamp) > time.Second {
		t.Error("Timestamp should be recent")
	}
}

func TestTransactionEventJSONRoundTrip(t *testing.T) {
	event := &TransactionEvent{
		TransactionID: 42,
		AccountID:     7,
		Action:        ActionDeleted,
		AmountCents:   1999,
		Timestamp:     time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}

	body, err := event.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsed, err := TransactionEventFromJSON(body)
	if err != nil {
		t.Fatalf("TransactionEventFromJSON() error = %v", err)
	}

	if parsed.TransactionID != event.TransactionID {
		t.Errorf("TransactionID = %v, want %v", parsed.TransactionID, event.TransactionID)
	}
	if parsed.AccountID != event.AccountID {
		t.Errorf("AccountID = %v, want %v", parsed.AccountID, event.AccountID)
	}
	if parsed.Action != event.Action {
		t.Errorf("Action = %q, want %q", parsed.Action, event.Action)
	}
	if !parsed.Timestamp.Equal(event.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", parsed.Timestamp, event.Timestamp)
	}
}

func TestTransactionEventValidate(t *testing.T) {
	tests := []struct {
		name    string
		event   TransactionEvent
		wantErr bool
	}{
		{
			name:  "valid created",
			event: TransactionEvent{TransactionID: 1, AccountID: 2, Action: ActionCreated},
		},
		{
			name:  "valid deleted",
			event: TransactionEvent{TransactionID: 1, AccountID: 2, Action: ActionDeleted},
		},
		{
			name:    "missing account",
			event:   TransactionEvent{TransactionID: 1, Action: ActionCreated},
			wantErr: true,
		},
		{
			name:    "unknown action",
			event:   TransactionEvent{TransactionID: 1, AccountID: 2, Action: "updated"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTransactionEventFromJSONRejectsBadPayloads(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"transactionId": "nope"}`},
		{"missing account", `{"transactionId": 1, "action": "created"}`},
		{"bad action", `{"transactionId": 1, "accountId": 2, "action": "touched"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := TransactionEventFromJSON([]byte(tt.body)); err == nil {
				t.Error("expected decode error")
			}
		})
	}
}
