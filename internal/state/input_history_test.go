package state

import (
	"context"
	"fmt"
	"testing"
)

func TestInputHistoryPersistsAndCaps(t *testing.T) {
	t.Parallel()

	db, err := Connect(":memory:")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer db.Close()

	const chatID = uint64(1700000000000)
	for i := 1; i <= DefaultInputHistoryLimit+5; i++ {
		if err := db.AppendInputHistory(context.Background(), chatID, fmt.Sprintf("prompt-%03d", i)); err != nil {
			t.Fatalf("append history %d: %v", i, err)
		}
	}

	history, err := db.InputHistory(context.Background(), chatID)
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	if len(history) != DefaultInputHistoryLimit {
		t.Fatalf("expected %d entries, got %d", DefaultInputHistoryLimit, len(history))
	}
	if history[0] != "prompt-006" {
		t.Fatalf("expected oldest retained entry prompt-006, got %q", history[0])
	}
	if history[len(history)-1] != "prompt-105" {
		t.Fatalf("expected newest entry prompt-105, got %q", history[len(history)-1])
	}
}

func TestInputHistoryIsPerChat(t *testing.T) {
	t.Parallel()

	db, err := Connect(":memory:")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer db.Close()

	if err := db.AppendInputHistory(context.Background(), 1, "first chat prompt"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := db.AppendInputHistory(context.Background(), 2, "second chat prompt"); err != nil {
		t.Fatalf("append: %v", err)
	}

	history, err := db.InputHistory(context.Background(), 1)
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	if len(history) != 1 || history[0] != "first chat prompt" {
		t.Fatalf("unexpected history %v", history)
	}
}

func TestInputHistorySkipsBlankEntries(t *testing.T) {
	t.Parallel()

	db, err := Connect(":memory:")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer db.Close()

	if err := db.AppendInputHistory(context.Background(), 1, "   "); err != nil {
		t.Fatalf("append blank: %v", err)
	}

	history, err := db.InputHistory(context.Background(), 1)
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected empty history, got %v", history)
	}
}
