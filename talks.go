package main

import (
	"context"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"github.com/raidwatch/raidwatch-tgbot/logs"
	"github.com/raidwatch/raidwatch-tgbot/tracking"
)

// hOpts - handler options bundle.
type hOpts struct {
	wg      *sync.WaitGroup
	bot     *tgbotapi.BotAPI
	engine  *tracking.Engine
	isAdmin adminFunc
	debug   int
}

// genEcode - unique code to correlate log lines of one handler run.
func genEcode() string {
	return uuid.New().String()[:8]
}

// messageHandler - feed one group message through the tracking engine
// and actuate the notification it asks for.
func messageHandler(opts hOpts, update tgbotapi.Update) {
	defer opts.wg.Done()

	ecode := genEcode()

	msg := inboundMessage(update.Message)

	result := opts.engine.HandleMessage(context.Background(), msg)

	switch result.Kind {
	case tracking.ResultLinkRecorded:
		logs.Debugf("[i:%s] chat %d user %d: link recorded, total %d\n",
			ecode, msg.ChatID, msg.UserID, result.LinkCount)
	case tracking.ResultCompletionRecorded:
		logs.Debugf("[i:%s] chat %d user %d: completion recorded\n", ecode, msg.ChatID, msg.UserID)

		reply := tgbotapi.NewMessage(msg.ChatID, fmt.Sprintf(MsgCompletionTemplate, result.SecondaryHandle))
		reply.ReplyToMessageID = update.Message.MessageID

		if _, err := opts.bot.Send(reply); err != nil {
			logs.Errf("[!:%s] send: %s\n", ecode, err)
		}
	case tracking.ResultNoOp:
		if opts.debug >= int(logs.LevelDebug) {
			logs.Debugf("[i:%s] chat %d user %d: noop: %s\n", ecode, msg.ChatID, msg.UserID, result.Reason)
		}
	}
}

// inboundMessage - translate a transport message into the engine's
// message event.
func inboundMessage(m *tgbotapi.Message) tracking.Message {
	msg := tracking.Message{
		ChatID:  m.Chat.ID,
		Text:    m.Text,
		Caption: m.Caption,
	}

	if m.From != nil {
		msg.UserID = m.From.ID
		msg.Name = m.From.FirstName

		if m.From.LastName != "" {
			msg.Name += " " + m.From.LastName
		}

		msg.Handle = m.From.UserName
	}

	for _, e := range m.Entities {
		switch {
		case e.IsURL():
			// entity offsets arrive in UTF-16 code units
			offset, length := runeSpan(m.Text, e.Offset, e.Length)
			msg.Entities = append(msg.Entities, tracking.LinkEntity{
				Kind:   tracking.EntityURL,
				Offset: offset,
				Length: length,
			})
		case e.IsTextLink():
			msg.Entities = append(msg.Entities, tracking.LinkEntity{
				Kind: tracking.EntityTextLink,
				URL:  e.URL,
			})
		}
	}

	return msg
}

// runeSpan - remap a UTF-16 code-unit span onto rune positions.
// Characters outside the basic plane occupy two UTF-16 units but a
// single rune, so offsets drift apart after the first emoji.
func runeSpan(text string, offset, length int) (int, int) {
	var units, runeOff, runeLen int

	for _, r := range text {
		w := 1
		if r > 0xFFFF {
			w = 2
		}

		switch {
		case units < offset:
			runeOff++
		case units < offset+length:
			runeLen++
		}

		units += w
	}

	return runeOff, runeLen
}

// sendText - best-effort plain reply.
func sendText(opts hOpts, chatID int64, replyTo int, text, ecode string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if replyTo > 0 {
		msg.ReplyToMessageID = replyTo
	}

	if _, err := opts.bot.Send(msg); err != nil {
		logs.Errf("[!:%s] send: %s\n", ecode, err)
	}
}
