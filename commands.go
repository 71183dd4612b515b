package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/raidwatch/raidwatch-tgbot/logs"
	"github.com/raidwatch/raidwatch-tgbot/tracking"
)

// userlistBatch - list replies are split in batches of this many rows.
const userlistBatch = 80

// commandHandler - dispatch one bot command.
func commandHandler(opts hOpts, update tgbotapi.Update) {
	defer opts.wg.Done()

	ecode := genEcode()
	msg := update.Message
	chatID := msg.Chat.ID

	ctx := context.Background()

	// read projections open to everyone
	switch msg.Command() {
	case "count_ad":
		showAdCompleted(ctx, opts, msg, ecode)

		return
	case "checklist":
		showChecklist(ctx, opts, msg, ecode)

		return
	}

	if msg.From == nil || !opts.isAdmin(chatID, msg.From.ID) {
		sendText(opts, chatID, msg.MessageID, MsgUnauthorized, ecode)

		return
	}

	switch msg.Command() {
	case "open":
		if err := opts.engine.OpenSession(ctx, chatID); err != nil {
			logs.Errf("[!:%s] open session: %s\n", ecode, err)
			sendText(opts, chatID, msg.MessageID, MsgSessionFailed, ecode)

			return
		}

		sendText(opts, chatID, msg.MessageID, MsgSessionOpened, ecode)

	case "ad_on":
		if err := opts.engine.SetTracking(ctx, chatID, true); err != nil {
			logs.Errf("[!:%s] tracking on: %s\n", ecode, err)

			return
		}

		sendText(opts, chatID, msg.MessageID, MsgTrackingOn, ecode)

	case "ad_off":
		if err := opts.engine.SetTracking(ctx, chatID, false); err != nil {
			logs.Errf("[!:%s] tracking off: %s\n", ecode, err)

			return
		}

		sendText(opts, chatID, msg.MessageID, MsgTrackingOff, ecode)

	case "count":
		showLinkCounts(ctx, opts, msg, ecode)

	case "unsafelist":
		showUnsafeUsers(ctx, opts, msg, ecode)

	case "userlist":
		showUserList(ctx, opts, msg, ecode)

	case "doublelinks":
		showDoubleLinks(ctx, opts, msg, ecode)

	case "clear":
		clearCounts(ctx, opts, msg, ecode)

	case "marksafe":
		overrideStatus(ctx, opts, msg, tracking.StatusSafe, ecode)

	case "markunsafe":
		overrideStatus(ctx, opts, msg, tracking.StatusUnsafe, ecode)

	case "muteuser":
		muteUser(ctx, opts, msg, false, ecode)

	case "unmuteuser":
		muteUser(ctx, opts, msg, true, ecode)

	case "muteall":
		muteAllUnsafe(ctx, opts, msg, ecode)

	case "rules":
		sendText(opts, chatID, msg.MessageID, MsgRules, ecode)

	default:
		sendText(opts, chatID, msg.MessageID, MsgUnknownCommand, ecode)
	}
}

func participants(ctx context.Context, opts hOpts, chatID int64, ecode string) ([]tracking.Participant, bool) {
	list, err := opts.engine.Participants(ctx, chatID)
	if err != nil {
		logs.Errf("[!:%s] list participants: %s\n", ecode, err)

		return nil, false
	}

	return list, true
}

func showLinkCounts(ctx context.Context, opts hOpts, msg *tgbotapi.Message, ecode string) {
	list, ok := participants(ctx, opts, msg.Chat.ID, ecode)
	if !ok {
		return
	}

	total := 0

	for _, p := range list {
		if p.LinkCount > 0 {
			total++
		}
	}

	if total == 0 {
		sendText(opts, msg.Chat.ID, msg.MessageID, MsgNoLinksYet, ecode)

		return
	}

	sendText(opts, msg.Chat.ID, msg.MessageID, fmt.Sprintf(MsgLinkCountTemplate, total), ecode)
}

func showAdCompleted(ctx context.Context, opts hOpts, msg *tgbotapi.Message, ecode string) {
	list, ok := participants(ctx, opts, msg.Chat.ID, ecode)
	if !ok {
		return
	}

	total := 0

	for _, p := range list {
		if p.AdCount > 0 {
			total++
		}
	}

	if total == 0 {
		sendText(opts, msg.Chat.ID, msg.MessageID, MsgNoAdsYet, ecode)

		return
	}

	sendText(opts, msg.Chat.ID, msg.MessageID, fmt.Sprintf(MsgAdCountTemplate, total), ecode)
}

func showUnsafeUsers(ctx context.Context, opts hOpts, msg *tgbotapi.Message, ecode string) {
	list, ok := participants(ctx, opts, msg.Chat.ID, ecode)
	if !ok {
		return
	}

	var b strings.Builder

	for _, p := range list {
		if p.Status != tracking.StatusUnsafe {
			continue
		}

		fmt.Fprintf(&b, "%d. %s (@%s)\n", p.Serial, p.Name, p.Handle)
	}

	if b.Len() == 0 {
		sendText(opts, msg.Chat.ID, msg.MessageID, MsgAllSafe, ecode)

		return
	}

	sendText(opts, msg.Chat.ID, msg.MessageID, MsgUnsafeListHeader+b.String(), ecode)
}

func showUserList(ctx context.Context, opts hOpts, msg *tgbotapi.Message, ecode string) {
	list, ok := participants(ctx, opts, msg.Chat.ID, ecode)
	if !ok {
		return
	}

	if len(list) == 0 {
		sendText(opts, msg.Chat.ID, msg.MessageID, MsgNoUsers, ecode)

		return
	}

	var b strings.Builder

	for i, p := range list {
		secondary := p.SecondaryHandle
		if secondary == "" {
			secondary = "Unknown"
		}

		fmt.Fprintf(&b, "%d. %s - ✖️ %s\n", p.Serial, p.Name, secondary)

		if (i+1)%userlistBatch == 0 {
			sendText(opts, msg.Chat.ID, 0, b.String(), ecode)
			b.Reset()
		}
	}

	if b.Len() > 0 {
		sendText(opts, msg.Chat.ID, 0, b.String(), ecode)
	}
}

func showChecklist(ctx context.Context, opts hOpts, msg *tgbotapi.Message, ecode string) {
	list, ok := participants(ctx, opts, msg.Chat.ID, ecode)
	if !ok {
		return
	}

	if len(list) == 0 {
		sendText(opts, msg.Chat.ID, msg.MessageID, MsgNoUsers, ecode)

		return
	}

	var b strings.Builder

	b.WriteString(MsgChecklistHeader)

	for _, p := range list {
		mark := "❌"
		if p.AdCount > 0 {
			mark = "✅"
		}

		fmt.Fprintf(&b, "%d. %s - %s\n", p.Serial, p.Name, mark)
	}

	sendText(opts, msg.Chat.ID, msg.MessageID, b.String(), ecode)
}

// showDoubleLinks - participants who shared more than one link, plus
// groups of participants sharing one secondary handle.
func showDoubleLinks(ctx context.Context, opts hOpts, msg *tgbotapi.Message, ecode string) {
	list, ok := participants(ctx, opts, msg.Chat.ID, ecode)
	if !ok {
		return
	}

	if len(list) == 0 {
		sendText(opts, msg.Chat.ID, msg.MessageID, MsgNoLinksYet, ecode)

		return
	}

	var b strings.Builder

	multiple := false

	for _, p := range list {
		if p.LinkCount <= 1 {
			continue
		}

		if !multiple {
			b.WriteString(MsgDoubleLinksHeader)

			multiple = true
		}

		fmt.Fprintf(&b, "%d. %s - %d\n", p.Serial, p.Name, p.LinkCount)
	}

	groups := make(map[string][]tracking.Participant)

	for _, p := range list {
		if p.SecondaryHandle == "" {
			continue
		}

		groups[p.SecondaryHandle] = append(groups[p.SecondaryHandle], p)
	}

	shared := false

	for _, p := range list {
		group := groups[p.SecondaryHandle]
		if p.SecondaryHandle == "" || len(group) < 2 || group[0].Serial != p.Serial {
			continue
		}

		if !shared {
			b.WriteString(MsgSharedHandleHeader)

			shared = true
		}

		fmt.Fprintf(&b, "X Username: @%s\n", p.SecondaryHandle)

		for _, g := range group {
			fmt.Fprintf(&b, "%d. %s ", g.Serial, g.Name)
		}

		b.WriteString("\n")
	}

	if b.Len() == 0 {
		sendText(opts, msg.Chat.ID, msg.MessageID, MsgNoDoubles, ecode)

		return
	}

	sendText(opts, msg.Chat.ID, msg.MessageID, b.String(), ecode)
}

// clearCounts - group chat: wipe everyone; private chat: wipe the
// caller's own row.
func clearCounts(ctx context.Context, opts hOpts, msg *tgbotapi.Message, ecode string) {
	if msg.Chat.IsGroup() || msg.Chat.IsSuperGroup() {
		if err := opts.engine.OpenSession(ctx, msg.Chat.ID); err != nil {
			logs.Errf("[!:%s] clear chat: %s\n", ecode, err)

			return
		}

		sendText(opts, msg.Chat.ID, msg.MessageID, MsgClearedAll, ecode)

		return
	}

	if msg.From == nil {
		return
	}

	if err := opts.engine.RemoveParticipant(ctx, msg.Chat.ID, msg.From.ID); err != nil {
		logs.Errf("[!:%s] clear user: %s\n", ecode, err)

		return
	}

	name := msg.From.FirstName
	if msg.From.LastName != "" {
		name += " " + msg.From.LastName
	}

	sendText(opts, msg.Chat.ID, msg.MessageID, fmt.Sprintf(MsgClearedUserTemplate, name), ecode)
}

// targetByHandle - resolve "@username" against the tracked rows.
func targetByHandle(ctx context.Context, opts hOpts, chatID int64, arg, ecode string) (tracking.Participant, bool) {
	if !strings.HasPrefix(arg, "@") {
		return tracking.Participant{}, false
	}

	handle := strings.TrimPrefix(arg, "@")

	list, ok := participants(ctx, opts, chatID, ecode)
	if !ok {
		return tracking.Participant{}, false
	}

	for _, p := range list {
		if strings.EqualFold(p.Handle, handle) {
			return p, true
		}
	}

	return tracking.Participant{}, false
}

func overrideStatus(ctx context.Context, opts hOpts, msg *tgbotapi.Message, status, ecode string) {
	arg := strings.TrimSpace(msg.CommandArguments())
	if arg == "" || !strings.HasPrefix(arg, "@") {
		sendText(opts, msg.Chat.ID, msg.MessageID, fmt.Sprintf(MsgUsageOverride, "/mark"+status), ecode)

		return
	}

	target, found := targetByHandle(ctx, opts, msg.Chat.ID, arg, ecode)
	if !found {
		sendText(opts, msg.Chat.ID, msg.MessageID, fmt.Sprintf(MsgUserNotFoundTemplate, arg), ecode)

		return
	}

	result, err := opts.engine.Override(ctx, msg.Chat.ID, target.UserID, status)
	if err != nil {
		logs.Errf("[!:%s] override: %s\n", ecode, err)

		return
	}

	if result.Kind == tracking.ResultNoOp {
		sendText(opts, msg.Chat.ID, msg.MessageID, fmt.Sprintf(MsgUserNotFoundTemplate, arg), ecode)

		return
	}

	sendText(opts, msg.Chat.ID, msg.MessageID, fmt.Sprintf(MsgMarkedTemplate, target.Name, result.To), ecode)
}

func muteUser(ctx context.Context, opts hOpts, msg *tgbotapi.Message, unmute bool, ecode string) {
	usage := MsgUsageMute
	if unmute {
		usage = MsgUsageUnmute
	}

	arg := strings.TrimSpace(msg.CommandArguments())
	if arg == "" {
		sendText(opts, msg.Chat.ID, msg.MessageID, usage, ecode)

		return
	}

	if !strings.HasPrefix(arg, "@") {
		sendText(opts, msg.Chat.ID, msg.MessageID, MsgInvalidUsername, ecode)

		return
	}

	target, found := targetByHandle(ctx, opts, msg.Chat.ID, arg, ecode)
	if !found {
		sendText(opts, msg.Chat.ID, msg.MessageID, fmt.Sprintf(MsgUserNotFoundTemplate, arg), ecode)

		return
	}

	if !canRestrict(opts.bot, msg.Chat.ID) {
		sendText(opts, msg.Chat.ID, msg.MessageID, MsgNeedRestrictRights, ecode)

		return
	}

	if err := restrictMember(opts.bot, msg.Chat.ID, target.UserID, unmute, time.Time{}); err != nil {
		logs.Errf("[!:%s] restrict %d: %s\n", ecode, target.UserID, err)

		return
	}

	template := MsgMutedTemplate
	if unmute {
		template = MsgUnmutedTemplate
	}

	sendText(opts, msg.Chat.ID, msg.MessageID, fmt.Sprintf(template, target.Name, target.Handle), ecode)
}

func muteAllUnsafe(ctx context.Context, opts hOpts, msg *tgbotapi.Message, ecode string) {
	arg := strings.TrimSpace(msg.CommandArguments())
	if arg == "" {
		sendText(opts, msg.Chat.ID, msg.MessageID, MsgUsageMuteAll, ecode)

		return
	}

	duration, err := parseMuteDuration(arg)
	if err != nil {
		sendText(opts, msg.Chat.ID, msg.MessageID, MsgInvalidDuration, ecode)

		return
	}

	list, ok := participants(ctx, opts, msg.Chat.ID, ecode)
	if !ok {
		return
	}

	var unsafe []tracking.Participant

	for _, p := range list {
		if p.Status == tracking.StatusUnsafe {
			unsafe = append(unsafe, p)
		}
	}

	if len(unsafe) == 0 {
		sendText(opts, msg.Chat.ID, msg.MessageID, MsgNoUnsafeToMute, ecode)

		return
	}

	if !canRestrict(opts.bot, msg.Chat.ID) {
		sendText(opts, msg.Chat.ID, msg.MessageID, MsgNeedRestrictRights, ecode)

		return
	}

	until := time.Now().Add(duration)

	var muted, failed []string

	for _, p := range unsafe {
		err := restrictMember(opts.bot, msg.Chat.ID, p.UserID, false, until)
		if err != nil {
			failed = append(failed, fmt.Sprintf("%s (@%s): %s", p.Name, p.Handle, err))

			continue
		}

		muted = append(muted, fmt.Sprintf("%s (@%s)", p.Name, p.Handle))
	}

	response := MsgMutedAllNone
	if len(muted) > 0 {
		response = MsgMutedAllHeader + strings.Join(muted, "\n")
	}

	if len(failed) > 0 {
		response += MsgMutedAllFailedHeader + strings.Join(failed, "\n")
	}

	sendText(opts, msg.Chat.ID, msg.MessageID, response, ecode)
}
