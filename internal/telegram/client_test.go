package telegram

import (
	"strings"
	"testing"
	"time"

	"stockpulse/internal/anomaly"
	"stockpulse/internal/models"
)

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"AAPL to the moon", "AAPL to the moon"},
		{"z-score 3.14", "z\\-score 3\\.14"},
		{"$GME +7.3%", "$GME \\+7\\.3%"},
		{"a_b*c", "a\\_b\\*c"},
		{"[r/wallstreetbets](url)", "\\[r/wallstreetbets\\]\\(url\\)"},
		{"price > 100", "price \\> 100"},
		{"#1 pick!", "\\#1 pick\\!"},
		{"50|50 {odds}", "50\\|50 \\{odds\\}"},
		{"~flat~ `code`", "\\~flat\\~ \\`code\\`"},
		{"", ""},
		{"_*[]()~`>#+-=|{}.!", "\\_\\*\\[\\]\\(\\)\\~\\`\\>\\#\\+\\-\\=\\|\\{\\}\\.\\!"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := escapeMarkdownV2(tt.input)
			if got != tt.expected {
				t.Errorf("escapeMarkdownV2(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFormatAnomalyMessage(t *testing.T) {
	c := &Client{}
	anomalies := []anomaly.Result{
		{Ticker: "GME", MentionCount: 42, ZScore: 5.21, IsAnomaly: true, Direction: anomaly.DirectionSurge},
		{Ticker: "AMC", MentionCount: 0, ZScore: -2.8, IsAnomaly: true, Direction: anomaly.DirectionDrop},
	}
	prices := map[string]*models.PriceQuote{
		"GME": {Ticker: "GME", Price: 22.40, ChangePct: 7.3},
	}

	msg := c.formatAnomalyMessage(anomalies, prices)

	if !strings.Contains(msg, "*GME*") {
		t.Error("message missing GME ticker")
	}
	if !strings.Contains(msg, "🚀") {
		t.Error("surge should use the rocket emoji")
	}
	if !strings.Contains(msg, "📉") {
		t.Error("drop should use the downtrend emoji")
	}
	if !strings.Contains(msg, "42 mentions") {
		t.Error("message missing mention count")
	}
	if !strings.Contains(msg, "5\\.21") {
		t.Error("z-score not escaped for MarkdownV2")
	}
	if !strings.Contains(msg, "$22\\.40") {
		t.Error("message missing escaped price for GME")
	}
	if !strings.Contains(msg, "\\+7\\.3%") {
		t.Error("message missing escaped change percent")
	}
	// AMC has no quote, so no second price line.
	if strings.Count(msg, "💵") != 1 {
		t.Errorf("expected exactly one price line, got %d", strings.Count(msg, "💵"))
	}
	if strings.Contains(msg, "(") && !strings.Contains(msg, "\\(") {
		t.Error("unescaped parenthesis would break MarkdownV2")
	}
}

func TestNewClientInvalidChatID(t *testing.T) {
	// The chat ID is parsed before the bot is constructed, so a bad ID
	// fails fast without touching the network.
	_, err := NewClient("", "not-a-number", 3, time.Second)
	if err == nil {
		t.Error("expected error for non-numeric chat ID")
	}
	if err != nil && !strings.Contains(err.Error(), "chat ID") {
		t.Errorf("error should mention the chat ID, got %v", err)
	}
}
