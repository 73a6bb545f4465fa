package tui

import (
	"strings"
	"testing"
)

func TestStatusBarShowsProviderAndModel(t *testing.T) {
	t.Parallel()

	sb := NewStatusBarModel()
	sb.SetWidth(200)
	sb.SetModel("openai", "gpt-4o")
	sb.SetChatCount(3)

	view := sb.View()
	if !strings.Contains(view, "[PROVIDER: openai]") {
		t.Fatalf("expected provider segment, got %q", view)
	}
	if !strings.Contains(view, "[MODEL: gpt-4o]") {
		t.Fatalf("expected model segment, got %q", view)
	}
	if !strings.Contains(view, "[CHATS: 3]") {
		t.Fatalf("expected chat count segment, got %q", view)
	}
}

func TestStatusBarDefaultsWhenNothingSelected(t *testing.T) {
	t.Parallel()

	sb := NewStatusBarModel()
	sb.SetWidth(200)
	sb.SetModel("", "")

	view := sb.View()
	if !strings.Contains(view, "[PROVIDER: none]") {
		t.Fatalf("expected none provider label, got %q", view)
	}
	if !strings.Contains(view, "no-model-selected") {
		t.Fatalf("expected placeholder model label, got %q", view)
	}
}

func TestStatusBarFetchStatusAppearsAndClears(t *testing.T) {
	t.Parallel()

	sb := NewStatusBarModel()
	sb.SetWidth(200)

	sb.SetFetchStatus("anthropic")
	if view := sb.View(); !strings.Contains(view, "[FETCHING: anthropic]") {
		t.Fatalf("expected fetch segment while fetching, got %q", view)
	}

	sb.SetFetchStatus("")
	if view := sb.View(); strings.Contains(view, "FETCHING") {
		t.Fatalf("expected fetch segment removed, got %q", view)
	}
}
