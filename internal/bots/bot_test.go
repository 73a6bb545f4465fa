package bots

import "testing"

func TestFormatID(t *testing.T) {
	if got := FormatID("gpt-4o", "openai"); got != "6;gpt-4o@openai" {
		t.Fatalf("unexpected id %q", got)
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		name         string
		id           string
		wantName     string
		wantProvider string
	}{
		{name: "simple", id: "6;gpt-4o@openai", wantName: "gpt-4o", wantProvider: "openai"},
		{name: "name containing at sign", id: "7;llama@7@ollama", wantName: "llama@7", wantProvider: "ollama"},
		{name: "models prefix", id: "13;models/gpt-4o@gemini", wantName: "models/gpt-4o", wantProvider: "gemini"},
		{name: "missing separator", id: "gpt-4o@openai"},
		{name: "bad length", id: "99;gpt-4o@openai"},
		{name: "negative length", id: "-1;x@y"},
		{name: "length not followed by at", id: "3;abcdef"},
		{name: "empty", id: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, provider := ParseID(tt.id)
			if name != tt.wantName || provider != tt.wantProvider {
				t.Fatalf("ParseID(%q) = (%q, %q), want (%q, %q)", tt.id, name, provider, tt.wantName, tt.wantProvider)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	bot := New("models/gemini-2.0-flash", "gemini")
	name, provider := ParseID(bot.ID)
	if name != bot.Name || provider != bot.Provider {
		t.Fatalf("round trip mismatch: got (%q, %q)", name, provider)
	}
}
