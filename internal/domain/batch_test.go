package domain

import (
	"fmt"
	"testing"
	"time"
)

func TestBatch_AppendPreservesOrder(t *testing.T) {
	b := NewBatch()
	for i := 0; i < 5; i++ {
		b.Append(Message{Payload: []byte(fmt.Sprintf("msg-%d", i))})
	}

	if b.Count() != 5 {
		t.Fatalf("Count() = %d, want 5", b.Count())
	}
	for i, m := range b.Messages {
		want := fmt.Sprintf("msg-%d", i)
		if string(m.Payload) != want {
			t.Errorf("Messages[%d].Payload = %q, want %q", i, m.Payload, want)
		}
	}
}

func TestBatch_Totals(t *testing.T) {
	b := NewBatch()
	b.Append(Message{Payload: []byte("aaaa")})
	b.Append(Message{Payload: []byte("bb"), Attributes: map[string]string{"k": "v"}})

	if b.Count() != 2 {
		t.Errorf("Count() = %d, want 2", b.Count())
	}
	// 4 + (2 + 1 + 1)
	if b.TotalBytes != 8 {
		t.Errorf("TotalBytes = %d, want 8", b.TotalBytes)
	}
}

func TestBatch_CreatedAtSetOnFirstAppend(t *testing.T) {
	b := NewBatch()
	if !b.CreatedAt.IsZero() {
		t.Fatal("CreatedAt set before first append")
	}

	before := time.Now()
	b.Append(Message{Payload: []byte("x")})
	first := b.CreatedAt
	if first.Before(before) {
		t.Errorf("CreatedAt = %v, want >= %v", first, before)
	}

	b.Append(Message{Payload: []byte("y")})
	if !b.CreatedAt.Equal(first) {
		t.Errorf("CreatedAt changed on second append: %v != %v", b.CreatedAt, first)
	}
}

func TestBatch_Empty(t *testing.T) {
	b := NewBatch()
	if !b.Empty() {
		t.Error("new batch not empty")
	}
	b.Append(Message{})
	if b.Empty() {
		t.Error("batch with one message reported empty")
	}
}
