package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/watchroom/server/internal/controller"
	connInmemory "github.com/watchroom/server/internal/repository/connection/inmemory"
	durableInmemory "github.com/watchroom/server/internal/repository/durable/inmemory"
	roomRedis "github.com/watchroom/server/internal/repository/room/redis"
	"github.com/watchroom/server/internal/service/auth"
	"github.com/watchroom/server/internal/service/room"
	"github.com/watchroom/server/pkg/ctxlogger"
	"github.com/watchroom/server/pkg/redisclient"
)

const presenceTTL = 24 * time.Hour

type AppConfig struct {
	Secret            string `json:"-"`
	Host              string `json:"host"`
	Port              int    `json:"port"`
	LogLevel          string `json:"log_level"`
	GracePeriodSec    int    `json:"grace_period_sec"`
	ChatHistoryLimit  int    `json:"chat_history_limit"`
	ChatRetention     int    `json:"chat_retention"`
	ChatMaxLength     int    `json:"chat_max_length"`
	RateWindowSec     int    `json:"rate_window_sec"`
	RateThreshold     int    `json:"rate_threshold"`
	RateCooldownSec   int    `json:"rate_cooldown_sec"`
	DuplicateTTLSec   int    `json:"duplicate_ttl_sec"`
	DriftThresholdSec int    `json:"drift_threshold_sec"`
	SweepIntervalSec  int    `json:"sweep_interval_sec"`
	RedisPort         int    `json:"redis_port"`
	RedisHost         string `json:"redis_host"`
	RedisPassword     string `json:"-"`
}

func (cfg *AppConfig) Validate() error {
	if cfg.Secret == "" {
		return fmt.Errorf("secret must be set")
	}
	if cfg.GracePeriodSec < 1 {
		return fmt.Errorf("grace period must be greater than 0")
	}
	if cfg.RateWindowSec < 1 {
		return fmt.Errorf("rate window must be greater than 0")
	}
	if cfg.RateThreshold < 1 {
		return fmt.Errorf("rate threshold must be greater than 0")
	}
	if cfg.ChatMaxLength < 1 {
		return fmt.Errorf("chat max length must be greater than 0")
	}
	if cfg.ChatHistoryLimit < 1 || cfg.ChatRetention < cfg.ChatHistoryLimit {
		return fmt.Errorf("chat retention must be at least the history limit")
	}
	return nil
}

func Run(ctx context.Context, cfg *AppConfig) error {
	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		log.Fatal(err)
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}

	logger := slog.New(&h)

	rc, err := redisclient.NewRedisClient(&redisclient.Config{
		Port:     cfg.RedisPort,
		Host:     cfg.RedisHost,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer rc.Close()

	stateRepo := roomRedis.NewRepo(rc, presenceTTL, logger)
	connRepo := connInmemory.NewRepo(logger)

	roomService := room.NewService(&room.Repos{
		State:       stateRepo,
		Conn:        connRepo,
		Room:        durableInmemory.NewRoomRepo(),
		Participant: durableInmemory.NewParticipantRepo(),
		Chat:        durableInmemory.NewChatRepo(cfg.ChatRetention),
		Playback:    durableInmemory.NewPlaybackRepo(),
		Progress:    durableInmemory.NewProgressRepo(),
	}, auth.NewProvider(cfg.Secret), &room.Config{
		GracePeriod:      time.Duration(cfg.GracePeriodSec) * time.Second,
		ChatHistoryLimit: cfg.ChatHistoryLimit,
		ChatMaxLength:    cfg.ChatMaxLength,
		RateWindow:       time.Duration(cfg.RateWindowSec) * time.Second,
		RateThreshold:    cfg.RateThreshold,
		RateCooldown:     time.Duration(cfg.RateCooldownSec) * time.Second,
		DuplicateTTL:     time.Duration(cfg.DuplicateTTLSec) * time.Second,
		DriftThreshold:   float64(cfg.DriftThresholdSec),
	}, logger)

	controller := controller.NewController(roomService, logger)
	server := &http.Server{Addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), Handler: controller.GetMux()}

	// graceful shutdown
	serverCtx, serverStopCtx := context.WithCancel(ctx)

	// The sweep catches rooms whose grace window lapsed while nobody tried
	// to join them.
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.SweepIntervalSec) * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-serverCtx.Done():
				return
			case <-ticker.C:
				expired, err := roomService.ExpireLapsedRooms(serverCtx)
				if err != nil {
					logger.WarnContext(serverCtx, "expiry sweep failed", "error", err)
					continue
				}
				if expired > 0 {
					logger.InfoContext(serverCtx, "expired lapsed rooms", "count", expired)
				}
			}
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		shutdownCtx, c := context.WithTimeout(serverCtx, 30*time.Second)
		defer c()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		err := server.Shutdown(shutdownCtx)
		if err != nil {
			log.Fatal(err)
		}
		serverStopCtx()
	}()

	logger.InfoContext(serverCtx, "starting server", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	<-serverCtx.Done()

	return nil
}
