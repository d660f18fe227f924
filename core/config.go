package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		AppName   string
		Env       string // DEV (default), TEST, QA, PROD
		Debug     bool
		TestMode  bool
		Build     string
		SecretKey string

		DefaultFromEmail mail.Address
		SendgridApiKey   string
		RollbarToken     string
		AnthropicApiKey  string

		Database DatabaseConfig
		Server   ServerConfig
		Google   GoogleConfig
		Sync     SyncConfig
	}

	DatabaseConfig struct {
		Engine        string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Host          string
		Port          string
		DisableTLS    bool
	}

	ServerConfig struct {
		Host                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		RateLimitPerMinute        int
	}

	GoogleConfig struct {
		ClientID        string
		ClientSecret    string
		TokenEndpoint   string
		CalendarBaseURL string
		WebhookURL      string
	}

	SyncConfig struct {
		PassBudget          time.Duration
		TokenRefreshMargin  time.Duration
		FullWindowPast      time.Duration
		FullWindowFuture    time.Duration
		IncrementalFallback time.Duration
		WebhookChannelTTL   time.Duration
	}
)

// Address returns the database host:port pair.
func (c DatabaseConfig) Address() string {
	return c.Host + ":" + c.Port
}

func NewConfig() *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("debug", true)
	conf.SetDefault("appName", "Aqademiq")
	conf.SetDefault("secretKey", "w3e)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	conf.SetDefault("build", "develop")
	conf.SetDefault("defaultFromEmail", "noreply@localhost")

	conf.SetDefault("databaseEngine", "postgres")
	conf.SetDefault("databaseName", "aqademiq")
	conf.SetDefault("databaseUser", "postgres")
	conf.SetDefault("databasePassword", "")
	conf.SetDefault("databaseHost", "localhost")
	conf.SetDefault("databasePort", "5432")
	conf.SetDefault("databaseDisableTLS", true)

	conf.SetDefault("serverHost", "0.0.0.0:8000")
	conf.SetDefault("serverDebugHost", "0.0.0.0:4000")
	conf.SetDefault("serverShutdownTimeout", 5*time.Second)
	conf.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	conf.SetDefault("jwtRefreshExpirationDelta", 4*time.Hour)
	conf.SetDefault("rateLimitPerMinute", 30)

	conf.SetDefault("googleTokenEndpoint", "https://oauth2.googleapis.com/token")
	conf.SetDefault("googleCalendarBaseURL", "https://www.googleapis.com/calendar/v3")

	conf.SetDefault("syncPassBudget", 55*time.Second)
	conf.SetDefault("syncTokenRefreshMargin", 5*time.Minute)
	conf.SetDefault("syncFullWindowPast", 30*24*time.Hour)
	conf.SetDefault("syncFullWindowFuture", 90*24*time.Hour)
	conf.SetDefault("syncIncrementalFallback", 7*24*time.Hour)
	conf.SetDefault("syncWebhookChannelTTL", 7*24*time.Hour)

	env := os.Getenv("ENV")
	var testMode bool
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		testMode = true
	}
	conf.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	return &Config{
		AppName:   conf.GetString("appName"),
		Env:       env,
		Debug:     conf.GetBool("debug"),
		TestMode:  testMode,
		Build:     conf.GetString("build"),
		SecretKey: conf.GetString("secretKey"),

		DefaultFromEmail: mail.Address{Name: conf.GetString("appName"), Address: conf.GetString("defaultFromEmail")},
		SendgridApiKey:   conf.GetString("sendgridApiKey"),
		RollbarToken:     conf.GetString("rollbarToken"),
		AnthropicApiKey:  conf.GetString("anthropicApiKey"),

		Database: DatabaseConfig{
			Engine:        conf.GetString("databaseEngine"),
			Name:          conf.GetString("databaseName"),
			User:          conf.GetString("databaseUser"),
			Password:      conf.GetString("databasePassword"),
			AdminUser:     conf.GetString("databaseAdminUser"),
			AdminPassword: conf.GetString("databaseAdminPassword"),
			Host:          conf.GetString("databaseHost"),
			Port:          conf.GetString("databasePort"),
			DisableTLS:    conf.GetBool("databaseDisableTLS"),
		},
		Server: ServerConfig{
			Host:                      conf.GetString("serverHost"),
			DebugHost:                 conf.GetString("serverDebugHost"),
			ShutdownTimeout:           conf.GetDuration("serverShutdownTimeout"),
			JWTExpirationDelta:        conf.GetDuration("jwtExpirationDelta"),
			JWTRefreshExpirationDelta: conf.GetDuration("jwtRefreshExpirationDelta"),
			RateLimitPerMinute:        conf.GetInt("rateLimitPerMinute"),
		},
		Google: GoogleConfig{
			ClientID:        conf.GetString("googleClientId"),
			ClientSecret:    conf.GetString("googleClientSecret"),
			TokenEndpoint:   conf.GetString("googleTokenEndpoint"),
			CalendarBaseURL: conf.GetString("googleCalendarBaseURL"),
			WebhookURL:      conf.GetString("googleWebhookURL"),
		},
		Sync: SyncConfig{
			PassBudget:          conf.GetDuration("syncPassBudget"),
			TokenRefreshMargin:  conf.GetDuration("syncTokenRefreshMargin"),
			FullWindowPast:      conf.GetDuration("syncFullWindowPast"),
			FullWindowFuture:    conf.GetDuration("syncFullWindowFuture"),
			IncrementalFallback: conf.GetDuration("syncIncrementalFallback"),
			WebhookChannelTTL:   conf.GetDuration("syncWebhookChannelTTL"),
		},
	}
}
