package main

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/raidwatch/raidwatch-tgbot/tracking"
)

func TestInboundMessage(t *testing.T) {
	m := &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: -100},
		From: &tgbotapi.User{ID: 7, FirstName: "Alice", LastName: "Doe", UserName: "alice_tg"},
		Text: "see https://x.com/alice here",
		Entities: []tgbotapi.MessageEntity{
			{Type: "url", Offset: 4, Length: 19},
			{Type: "bold", Offset: 0, Length: 3},
			{Type: "text_link", URL: "https://x.com/bob"},
		},
	}

	msg := inboundMessage(m)

	if msg.ChatID != -100 || msg.UserID != 7 {
		t.Errorf("ids = %d/%d", msg.ChatID, msg.UserID)
	}

	if msg.Name != "Alice Doe" {
		t.Errorf("name = %q, want %q", msg.Name, "Alice Doe")
	}

	if msg.Handle != "alice_tg" {
		t.Errorf("handle = %q", msg.Handle)
	}

	if len(msg.Entities) != 2 {
		t.Fatalf("entities = %d, want 2 link entities", len(msg.Entities))
	}

	if msg.Entities[0].Kind != tracking.EntityURL || msg.Entities[0].Offset != 4 {
		t.Errorf("first entity = %+v", msg.Entities[0])
	}

	if msg.Entities[1].Kind != tracking.EntityTextLink || msg.Entities[1].URL != "https://x.com/bob" {
		t.Errorf("second entity = %+v", msg.Entities[1])
	}
}

func TestInboundMessageEmojiOffsets(t *testing.T) {
	// the emoji is two UTF-16 units, so the transport offset is 3
	// while the URL starts at rune 2
	m := &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: -100},
		From: &tgbotapi.User{ID: 7, FirstName: "Alice", UserName: "alice_tg"},
		Text: "\U0001F525 https://x.com/alice",
		Entities: []tgbotapi.MessageEntity{
			{Type: "url", Offset: 3, Length: 19},
		},
	}

	msg := inboundMessage(m)

	if len(msg.Entities) != 1 {
		t.Fatalf("entities = %d, want 1", len(msg.Entities))
	}

	e := msg.Entities[0]
	if e.Offset != 2 || e.Length != 19 {
		t.Fatalf("span = %d/%d, want 2/19", e.Offset, e.Length)
	}

	runes := []rune(msg.Text)
	if got := string(runes[e.Offset : e.Offset+e.Length]); got != "https://x.com/alice" {
		t.Errorf("sliced link = %q", got)
	}
}

func TestRuneSpan(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		offset     int
		length     int
		wantOffset int
		wantLength int
	}{
		{"plain ascii", "go to https://x.com/a", 6, 15, 6, 15},
		{"emoji before", "\U0001F525 link", 3, 4, 2, 4},
		{"emoji inside span", "a \U0001F44D b", 2, 4, 2, 3},
		{"two emoji before", "\U0001F525\U0001F525 x", 5, 1, 3, 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			offset, length := runeSpan(tc.text, tc.offset, tc.length)
			if offset != tc.wantOffset || length != tc.wantLength {
				t.Errorf("span = %d/%d, want %d/%d", offset, length, tc.wantOffset, tc.wantLength)
			}
		})
	}
}
