package rabbitmq

import (
	"errors"
	"fmt"
	"testing"

	"github.com/streadway/amqp"
)

func TestRetryCountFromHeaders(t *testing.T) {
	testCases := []struct {
		name    string
		headers amqp.Table
		want    int
	}{
		{name: "nil headers", headers: nil, want: 0},
		{name: "missing key", headers: amqp.Table{"other": 3}, want: 0},
		{name: "int32", headers: amqp.Table{retryCountHeaderKey: int32(4)}, want: 4},
		{name: "int64", headers: amqp.Table{retryCountHeaderKey: int64(2)}, want: 2},
		{name: "string", headers: amqp.Table{retryCountHeaderKey: "7"}, want: 7},
		{name: "negative", headers: amqp.Table{retryCountHeaderKey: int32(-1)}, want: 0},
		{name: "garbage", headers: amqp.Table{retryCountHeaderKey: "abc"}, want: 0},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := retryCountFromHeaders(testCase.headers); got != testCase.want {
				t.Errorf("retryCountFromHeaders() = %d, want %d", got, testCase.want)
			}
		})
	}
}

func TestWithRetryCountHeader(t *testing.T) {
	in := amqp.Table{"trace_id": "abc"}
	out := withRetryCountHeader(in, 3)

	if out[retryCountHeaderKey] != int32(3) {
		t.Errorf("retry count = %v, want int32(3)", out[retryCountHeaderKey])
	}
	if out["trace_id"] != "abc" {
		t.Error("existing headers must be preserved")
	}
	if _, ok := in[retryCountHeaderKey]; ok {
		t.Error("input headers must not be mutated")
	}
}

func TestPermanentError(t *testing.T) {
	base := fmt.Errorf("event %s not found", "evt-1")
	wrapped := Permanent(base)

	if !isPermanent(wrapped) {
		t.Error("Permanent(err) must be recognized as permanent")
	}
	if !errors.Is(wrapped, base) {
		t.Error("Permanent(err) must unwrap to the original error")
	}
	if isPermanent(base) {
		t.Error("plain errors must not be permanent")
	}
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) must be nil")
	}
}

func TestMessageUnmarshalTo(t *testing.T) {
	msg := &Message{Body: []byte(`{"event_id": "evt-1"}`)}

	var payload struct {
		EventID string `json:"event_id"`
	}
	if err := msg.UnmarshalTo(&payload); err != nil {
		t.Fatalf("UnmarshalTo() error = %v", err)
	}
	if payload.EventID != "evt-1" {
		t.Errorf("EventID = %q, want evt-1", payload.EventID)
	}
}
