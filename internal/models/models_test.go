package models

import (
	"testing"
	"time"
)

func TestMentionValidate(t *testing.T) {
	tests := []struct {
		name    string
		mention Mention
		wantErr bool
	}{
		{
			name: "valid mention",
			mention: Mention{
				ID:          "b5a9e3a0-0000-0000-0000-000000000001",
				Source:      "reddit",
				SourceID:    "t3_abc123",
				Ticker:      "GME",
				Author:      "dfv",
				Excerpt:     "GME to the moon",
				Sentiment:   0.8,
				MentionedAt: time.Now(),
			},
			wantErr: false,
		},
		{
			name: "empty source",
			mention: Mention{
				SourceID:    "t3_abc123",
				Ticker:      "GME",
				MentionedAt: time.Now(),
			},
			wantErr: true,
		},
		{
			name: "empty source ID",
			mention: Mention{
				Source:      "reddit",
				Ticker:      "GME",
				MentionedAt: time.Now(),
			},
			wantErr: true,
		},
		{
			name: "empty ticker",
			mention: Mention{
				Source:      "reddit",
				SourceID:    "t3_abc123",
				MentionedAt: time.Now(),
			},
			wantErr: true,
		},
		{
			name: "ticker too long",
			mention: Mention{
				Source:      "reddit",
				SourceID:    "t3_abc123",
				Ticker:      "TOOLONG",
				MentionedAt: time.Now(),
			},
			wantErr: true,
		},
		{
			name: "sentiment out of range",
			mention: Mention{
				Source:      "reddit",
				SourceID:    "t3_abc123",
				Ticker:      "GME",
				Sentiment:   1.5,
				MentionedAt: time.Now(),
			},
			wantErr: true,
		},
		{
			name: "zero timestamp",
			mention: Mention{
				Source:   "reddit",
				SourceID: "t3_abc123",
				Ticker:   "GME",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.mention.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Mention.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPriceQuoteValidate(t *testing.T) {
	tests := []struct {
		name    string
		quote   PriceQuote
		wantErr bool
	}{
		{
			name: "valid quote",
			quote: PriceQuote{
				Ticker:    "GME",
				Price:     24.31,
				ChangePct: -3.2,
				Volume:    1_200_000,
				FetchedAt: time.Now(),
			},
			wantErr: false,
		},
		{
			name: "empty ticker",
			quote: PriceQuote{
				Price:     24.31,
				FetchedAt: time.Now(),
			},
			wantErr: true,
		},
		{
			name: "negative price",
			quote: PriceQuote{
				Ticker:    "GME",
				Price:     -1,
				FetchedAt: time.Now(),
			},
			wantErr: true,
		},
		{
			name: "zero timestamp",
			quote: PriceQuote{
				Ticker: "GME",
				Price:  24.31,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.quote.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("PriceQuote.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
