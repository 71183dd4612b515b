package main

import (
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/raidwatch/raidwatch-tgbot/logs"
	"github.com/raidwatch/raidwatch-tgbot/tracking"
)

func createBot(token string, debug bool) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}

	bot.Debug = debug

	logs.Criticf("[i] Authorized on account %s\n", bot.Self.UserName)

	return bot, nil
}

func runBot(
	waitGroup *sync.WaitGroup,
	stop <-chan struct{},
	bot *tgbotapi.BotAPI,
	engine *tracking.Engine,
	updateTout,
	debugLevel int,
) {
	defer waitGroup.Done()

	opts := hOpts{
		wg:      waitGroup,
		bot:     bot,
		engine:  engine,
		isAdmin: botAdminChecker(bot),
		debug:   debugLevel,
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = updateTout

	updates := bot.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			if update.Message == nil {
				break
			}

			if update.Message.From != nil {
				logs.Debugf("[i] User: %s Message: %s\n", update.Message.From.UserName, update.Message.Text)
			}

			switch {
			case update.Message.IsCommand():
				waitGroup.Add(1)

				go commandHandler(opts, update)

			case update.Message.Chat.IsGroup() || update.Message.Chat.IsSuperGroup():
				waitGroup.Add(1)

				go messageHandler(opts, update)
			}
		case <-stop:
			logs.Infoln("[-] Run: Stop signal was received")

			return
		}
	}
}
