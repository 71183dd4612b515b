package main

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/raidwatch/raidwatch-tgbot/logs"
)

// adminFunc - authorization predicate, injected so the command layer
// does not depend on the live administrator API.
type adminFunc func(chatID, userID int64) bool

// botAdminChecker - adminFunc backed by GetChatAdministrators.
func botAdminChecker(bot *tgbotapi.BotAPI) adminFunc {
	return func(chatID, userID int64) bool {
		admins, err := bot.GetChatAdministrators(
			tgbotapi.ChatAdministratorsConfig{
				ChatConfig: tgbotapi.ChatConfig{ChatID: chatID},
			},
		)
		if err != nil {
			logs.Errf("[!] get administrators: %s\n", err)

			return false
		}

		for _, admin := range admins {
			if admin.User != nil && admin.User.ID == userID {
				return true
			}
		}

		return false
	}
}

var durationRe = regexp.MustCompile(`^(\d+)([smhd])$`)

// parseMuteDuration - "30s", "5m", "2h" or "1d".
func parseMuteDuration(arg string) (time.Duration, error) {
	m := durationRe.FindStringSubmatch(arg)
	if m == nil {
		return 0, fmt.Errorf("bad duration %q", arg)
	}

	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("bad duration %q: %w", arg, err)
	}

	switch m[2] {
	case "s":
		return time.Duration(n) * time.Second, nil
	case "m":
		return time.Duration(n) * time.Minute, nil
	case "h":
		return time.Duration(n) * time.Hour, nil
	default:
		return time.Duration(n) * 24 * time.Hour, nil
	}
}

// canRestrict - whether the bot itself may mute members of the chat.
func canRestrict(bot *tgbotapi.BotAPI, chatID int64) bool {
	member, err := bot.GetChatMember(
		tgbotapi.GetChatMemberConfig{
			ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
				ChatID: chatID,
				UserID: bot.Self.ID,
			},
		},
	)
	if err != nil {
		logs.Errf("[!] get chat member: %s\n", err)

		return false
	}

	return member.CanRestrictMembers
}

// restrictMember - toggle a member's right to send messages.
func restrictMember(bot *tgbotapi.BotAPI, chatID, userID int64, canSend bool, until time.Time) error {
	cfg := tgbotapi.RestrictChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{
			ChatID: chatID,
			UserID: userID,
		},
		Permissions: &tgbotapi.ChatPermissions{CanSendMessages: canSend},
	}

	if !until.IsZero() {
		cfg.UntilDate = until.Unix()
	}

	if _, err := bot.Request(cfg); err != nil {
		return fmt.Errorf("restrict: %w", err)
	}

	return nil
}
