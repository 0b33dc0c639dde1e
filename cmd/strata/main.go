package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/tazhate/strata/config"
	"github.com/tazhate/strata/internal/bot"
	"github.com/tazhate/strata/internal/cache"
	"github.com/tazhate/strata/internal/clients/caldav"
	"github.com/tazhate/strata/internal/scheduler"
	"github.com/tazhate/strata/internal/service"
	"github.com/tazhate/strata/internal/storage"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to init storage: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	projectionCache := newCache(ctx, cfg.RedisAddr)
	defer projectionCache.Close()

	var calClient *caldav.Client
	if cfg.CalDAV.Enabled() {
		calClient = caldav.NewClient(cfg.CalDAV.URL, cfg.CalDAV.Username, cfg.CalDAV.Password, cfg.CalDAV.Calendar)
	}

	reminderSvc := service.NewReminderService(store, cfg.Timezone)
	fundSvc := service.NewFundService(store, projectionCache)
	prefSvc := service.NewPreferenceService(store)
	memberSvc := service.NewMemberService(store)
	calendarSvc := service.NewCalendarService(store, calClient, cfg.Timezone)
	if calendarSvc.IsConfigured() {
		checkCalendar(ctx, calendarSvc, cfg.CalDAV.Calendar)
	}

	sched := scheduler.New(cfg, store, reminderSvc, prefSvc)
	sched.SetCalendar(calendarSvc)

	var tgBot *bot.Bot
	if cfg.TelegramToken != "" {
		tgBot, err = bot.New(cfg.TelegramToken, store, reminderSvc, fundSvc, prefSvc, memberSvc)
		if err != nil {
			log.Fatalf("Failed to init bot: %v", err)
		}
		tgBot.SetCalendar(calendarSvc)
		tgBot.SetDispatcher(sched)
		tgBot.SetAdmin(cfg.AdminTelegramID)
		sched.SetSender(tgBot)

		go func() {
			if err := tgBot.Start(ctx); err != nil {
				log.Printf("Bot error: %v", err)
			}
		}()
	} else {
		log.Println("TELEGRAM_BOT_TOKEN not set, reminders will only be logged")
		sched.SetSender(bot.LogSender{})
	}

	go func() {
		if err := sched.Start(ctx); err != nil {
			log.Printf("Scheduler error: %v", err)
		}
	}()

	log.Println("Strata started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")

	cancel()
	sched.Stop()

	log.Println("Strata stopped")
}

// checkCalendar logs whether the configured calendar exists on the server.
func checkCalendar(ctx context.Context, calendarSvc *service.CalendarService, path string) {
	discoverCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	calendars, err := calendarSvc.DiscoverCalendars(discoverCtx)
	if err != nil {
		log.Printf("CalDAV discovery failed: %v", err)
		return
	}
	for _, c := range calendars {
		if strings.TrimSuffix(c.Path, "/") == strings.TrimSuffix(path, "/") {
			log.Printf("CalDAV calendar: %s (%s)", c.DisplayName, c.Path)
			return
		}
	}
	log.Printf("CalDAV calendar %s not found among %d calendars", path, len(calendars))
}

type closingCache interface {
	cache.Cache
	Close() error
}

// newCache prefers Redis when configured and reachable, otherwise projections
// are cached in process.
func newCache(ctx context.Context, addr string) closingCache {
	if addr == "" {
		return cache.NewMemoryCache()
	}

	rc := cache.NewRedisCache(addr)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx); err != nil {
		log.Printf("Redis at %s unavailable, using memory cache: %v", addr, err)
		_ = rc.Close()
		return cache.NewMemoryCache()
	}
	log.Printf("Projection cache: redis at %s", addr)
	return rc
}
