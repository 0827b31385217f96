package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/watchroom/server/internal/app"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
}

var (
	secret = configVar[string]{
		envKey:       "SERVER_SECRET",
		flagKey:      "secret",
		defaultValue: "",
	}
	port = configVar[int]{
		envKey:       "SERVER_PORT",
		flagKey:      "port",
		defaultValue: 80,
	}
	host = configVar[string]{
		envKey:       "SERVER_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
	}
	logLevel = configVar[string]{
		envKey:       "SERVER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
	}
	gracePeriodSec = configVar[int]{
		envKey:       "SERVER_GRACE_PERIOD_SEC",
		flagKey:      "grace-period-sec",
		defaultValue: 30,
	}
	chatHistoryLimit = configVar[int]{
		envKey:       "SERVER_CHAT_HISTORY_LIMIT",
		flagKey:      "chat-history-limit",
		defaultValue: 50,
	}
	chatRetention = configVar[int]{
		envKey:       "SERVER_CHAT_RETENTION",
		flagKey:      "chat-retention",
		defaultValue: 200,
	}
	chatMaxLength = configVar[int]{
		envKey:       "SERVER_CHAT_MAX_LENGTH",
		flagKey:      "chat-max-length",
		defaultValue: 500,
	}
	rateWindowSec = configVar[int]{
		envKey:       "SERVER_RATE_WINDOW_SEC",
		flagKey:      "rate-window-sec",
		defaultValue: 3,
	}
	rateThreshold = configVar[int]{
		envKey:       "SERVER_RATE_THRESHOLD",
		flagKey:      "rate-threshold",
		defaultValue: 5,
	}
	rateCooldownSec = configVar[int]{
		envKey:       "SERVER_RATE_COOLDOWN_SEC",
		flagKey:      "rate-cooldown-sec",
		defaultValue: 10,
	}
	duplicateTTLSec = configVar[int]{
		envKey:       "SERVER_DUPLICATE_TTL_SEC",
		flagKey:      "duplicate-ttl-sec",
		defaultValue: 3,
	}
	driftThresholdSec = configVar[int]{
		envKey:       "SERVER_DRIFT_THRESHOLD_SEC",
		flagKey:      "drift-threshold-sec",
		defaultValue: 2,
	}
	sweepIntervalSec = configVar[int]{
		envKey:       "SERVER_SWEEP_INTERVAL_SEC",
		flagKey:      "sweep-interval-sec",
		defaultValue: 15,
	}
	redisPort = configVar[int]{
		envKey:       "REDIS_PORT",
		flagKey:      "redis-port",
		defaultValue: 6379,
	}
	redisHost = configVar[string]{
		envKey:       "REDIS_HOST",
		flagKey:      "redis-host",
		defaultValue: "localhost",
	}
	redisPassword = configVar[string]{
		envKey:       "REDIS_PASSWORD",
		flagKey:      "redis-password",
		defaultValue: "",
	}
)

func loadAppConfig() *app.AppConfig {
	pflag.String(secret.flagKey, secret.defaultValue, "Server secret")
	pflag.Int(port.flagKey, port.defaultValue, "Server port")
	pflag.String(host.flagKey, host.defaultValue, "Server host")
	pflag.String(logLevel.flagKey, logLevel.defaultValue, "Logging level")
	pflag.Int(gracePeriodSec.flagKey, gracePeriodSec.defaultValue, "Host disconnect grace period in seconds")
	pflag.Int(chatHistoryLimit.flagKey, chatHistoryLimit.defaultValue, "Chat messages replayed to a joining user")
	pflag.Int(chatRetention.flagKey, chatRetention.defaultValue, "Chat messages retained per room")
	pflag.Int(chatMaxLength.flagKey, chatMaxLength.defaultValue, "Maximum chat message length in characters")
	pflag.Int(rateWindowSec.flagKey, rateWindowSec.defaultValue, "Chat rate limit window in seconds")
	pflag.Int(rateThreshold.flagKey, rateThreshold.defaultValue, "Chat messages allowed per window")
	pflag.Int(rateCooldownSec.flagKey, rateCooldownSec.defaultValue, "Chat cooldown after rate limit in seconds")
	pflag.Int(duplicateTTLSec.flagKey, duplicateTTLSec.defaultValue, "Duplicate message suppression window in seconds")
	pflag.Int(driftThresholdSec.flagKey, driftThresholdSec.defaultValue, "Playback drift correction threshold in seconds")
	pflag.Int(sweepIntervalSec.flagKey, sweepIntervalSec.defaultValue, "Room expiry sweep interval in seconds")
	pflag.Int(redisPort.flagKey, redisPort.defaultValue, "Redis port")
	pflag.String(redisHost.flagKey, redisHost.defaultValue, "Redis host")
	pflag.String(redisPassword.flagKey, redisPassword.defaultValue, "Redis password")
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	viper.BindEnv(secret.flagKey, secret.envKey)
	viper.BindEnv(port.flagKey, port.envKey)
	viper.BindEnv(host.flagKey, host.envKey)
	viper.BindEnv(logLevel.flagKey, logLevel.envKey)
	viper.BindEnv(gracePeriodSec.flagKey, gracePeriodSec.envKey)
	viper.BindEnv(chatHistoryLimit.flagKey, chatHistoryLimit.envKey)
	viper.BindEnv(chatRetention.flagKey, chatRetention.envKey)
	viper.BindEnv(chatMaxLength.flagKey, chatMaxLength.envKey)
	viper.BindEnv(rateWindowSec.flagKey, rateWindowSec.envKey)
	viper.BindEnv(rateThreshold.flagKey, rateThreshold.envKey)
	viper.BindEnv(rateCooldownSec.flagKey, rateCooldownSec.envKey)
	viper.BindEnv(duplicateTTLSec.flagKey, duplicateTTLSec.envKey)
	viper.BindEnv(driftThresholdSec.flagKey, driftThresholdSec.envKey)
	viper.BindEnv(sweepIntervalSec.flagKey, sweepIntervalSec.envKey)
	viper.BindEnv(redisPort.flagKey, redisPort.envKey)
	viper.BindEnv(redisHost.flagKey, redisHost.envKey)
	viper.BindEnv(redisPassword.flagKey, redisPassword.envKey)

	viper.SetDefault(secret.flagKey, secret.defaultValue)
	viper.SetDefault(port.flagKey, port.defaultValue)
	viper.SetDefault(host.flagKey, host.defaultValue)
	viper.SetDefault(logLevel.flagKey, logLevel.defaultValue)
	viper.SetDefault(gracePeriodSec.flagKey, gracePeriodSec.defaultValue)
	viper.SetDefault(chatHistoryLimit.flagKey, chatHistoryLimit.defaultValue)
	viper.SetDefault(chatRetention.flagKey, chatRetention.defaultValue)
	viper.SetDefault(chatMaxLength.flagKey, chatMaxLength.defaultValue)
	viper.SetDefault(rateWindowSec.flagKey, rateWindowSec.defaultValue)
	viper.SetDefault(rateThreshold.flagKey, rateThreshold.defaultValue)
	viper.SetDefault(rateCooldownSec.flagKey, rateCooldownSec.defaultValue)
	viper.SetDefault(duplicateTTLSec.flagKey, duplicateTTLSec.defaultValue)
	viper.SetDefault(driftThresholdSec.flagKey, driftThresholdSec.defaultValue)
	viper.SetDefault(sweepIntervalSec.flagKey, sweepIntervalSec.defaultValue)
	viper.SetDefault(redisPort.flagKey, redisPort.defaultValue)
	viper.SetDefault(redisHost.flagKey, redisHost.defaultValue)
	viper.SetDefault(redisPassword.flagKey, redisPassword.defaultValue)

	config := &app.AppConfig{
		Secret:            viper.GetString(secret.flagKey),
		Host:              viper.GetString(host.flagKey),
		Port:              viper.GetInt(port.flagKey),
		LogLevel:          viper.GetString(logLevel.flagKey),
		GracePeriodSec:    viper.GetInt(gracePeriodSec.flagKey),
		ChatHistoryLimit:  viper.GetInt(chatHistoryLimit.flagKey),
		ChatRetention:     viper.GetInt(chatRetention.flagKey),
		ChatMaxLength:     viper.GetInt(chatMaxLength.flagKey),
		RateWindowSec:     viper.GetInt(rateWindowSec.flagKey),
		RateThreshold:     viper.GetInt(rateThreshold.flagKey),
		RateCooldownSec:   viper.GetInt(rateCooldownSec.flagKey),
		DuplicateTTLSec:   viper.GetInt(duplicateTTLSec.flagKey),
		DriftThresholdSec: viper.GetInt(driftThresholdSec.flagKey),
		SweepIntervalSec:  viper.GetInt(sweepIntervalSec.flagKey),
		RedisPort:         viper.GetInt(redisPort.flagKey),
		RedisHost:         viper.GetString(redisHost.flagKey),
		RedisPassword:     viper.GetString(redisPassword.flagKey),
	}

	return config
}

func main() {
	ctx := context.Background()

	appConfig := loadAppConfig()
	if err := appConfig.Validate(); err != nil {
		log.Fatal(err)
	}

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	log.Fatal(app.Run(ctx, appConfig))
}
