package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/raidwatch/raidwatch-tgbot/logs"
	"github.com/raidwatch/raidwatch-tgbot/storage"
	"github.com/raidwatch/raidwatch-tgbot/tracking"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		logs.Criticf("[-] Config: %s\n", err)
		os.Exit(1)
	}

	logs.SetLogLevel(int32(cfg.DebugLevel))

	participants, sessions, closeStore, err := openStore(cfg)
	if err != nil {
		logs.Criticf("[-] Storage: %s\n", err)
		os.Exit(1)
	}

	defer closeStore()

	engine := tracking.NewEngine(participants, sessions, tracking.Config{
		ExcludedHandles: cfg.ExcludedHandles,
		AdWords:         cfg.AdWords,
		PlatformDomains: cfg.PlatformDomains,
		ReservedPaths:   cfg.ReservedPaths,
		StoreTimeout:    cfg.StoreTimeout,
	})

	bot, err := createBot(cfg.Token, cfg.DebugLevel >= int(logs.LevelDebug))
	if err != nil {
		logs.Criticf("[-] Bot: %s\n", err)
		os.Exit(1)
	}

	wg := &sync.WaitGroup{}
	stop := make(chan struct{})

	wg.Add(1)

	go runBot(wg, stop, bot, engine, cfg.UpdateTout, cfg.DebugLevel)

	kill := make(chan os.Signal, 1)
	signal.Notify(kill, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGINT, syscall.SIGQUIT)

	<-kill
	logs.Criticln("[-] Main: Stop signal was received")
	close(stop)

	wg.Wait()
	logs.Criticln("[-] Main routine was finished")
}

// openStore - pick the store backend from config.
func openStore(cfg Config) (tracking.ParticipantStore, tracking.SessionStore, func(), error) {
	switch cfg.Storage {
	case "badger":
		db, err := storage.OpenBadger(cfg.BadgerDir)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("badger: %w", err)
		}

		st := storage.NewBadgerStore(db)

		return st, st, func() { db.Close() }, nil

	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPass,
			DB:       cfg.RedisDB,
		})

		st := storage.NewRedisStore(rdb)

		return st, st, func() { rdb.Close() }, nil

	case "memory":
		st := storage.NewMemoryStore()

		return st, st, func() {}, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
}
