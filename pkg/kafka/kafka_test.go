package kafka

import (
	"context"
	"testing"
)

func TestEncodeEvents(t *testing.T) {
	events := []Event{
		{Key: "search", Value: map[string]any{"query": "cat dog", "returned": 2}},
		{Key: "zero_result", Value: map[string]any{"query": "zzz"}},
	}
	msgs, err := encodeEvents(events)
	if err != nil {
		t.Fatalf("encodeEvents: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if string(msgs[0].Key) != "search" {
		t.Errorf("key = %q, want search", msgs[0].Key)
	}
	if string(msgs[0].Value) != `{"query":"cat dog","returned":2}` {
		t.Errorf("value = %s", msgs[0].Value)
	}
}

func TestEncodeEventsUnsupportedValue(t *testing.T) {
	_, err := encodeEvents([]Event{{Key: "bad", Value: make(chan int)}})
	if err == nil {
		t.Fatal("expected error for unencodable value")
	}
}

func TestPublishBatchEmpty(t *testing.T) {
	p := &Producer{}
	if err := p.PublishBatch(context.Background(), nil); err != nil {
		t.Errorf("empty batch: %v", err)
	}
}

func TestDecodeJSON(t *testing.T) {
	type indexComplete struct {
		Field    string `json:"field"`
		DocCount int    `json:"doc_count"`
	}
	got, err := DecodeJSON[indexComplete]([]byte(`{"field":"title","doc_count":42}`))
	if err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if got.Field != "title" || got.DocCount != 42 {
		t.Errorf("got %+v", got)
	}
	if _, err := DecodeJSON[indexComplete]([]byte(`{not json`)); err == nil {
		t.Error("expected error for malformed payload")
	}
}
