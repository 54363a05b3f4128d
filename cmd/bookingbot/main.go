package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"github.com/mesieou/simple-booking-sub004/internal/api"
	"github.com/mesieou/simple-booking-sub004/internal/escalation"
	"github.com/mesieou/simple-booking-sub004/internal/messaging"
	"github.com/mesieou/simple-booking-sub004/internal/nlu"
	"github.com/mesieou/simple-booking-sub004/internal/orchestrator"
	"github.com/mesieou/simple-booking-sub004/internal/ratelimit"
	"github.com/mesieou/simple-booking-sub004/internal/session"
	"github.com/mesieou/simple-booking-sub004/internal/store"
	"github.com/mesieou/simple-booking-sub004/internal/twiliowhatsapp"
	"github.com/mesieou/simple-booking-sub004/internal/whatsapp"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for booking engine state data
	DefaultStateDir = "/var/lib/bookingbot"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "bookingbot.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	slog.Info("Bootstrapping booking engine with configured modules")
	if err := run(flags); err != nil {
		slog.Error("Booking engine failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Booking engine exited successfully")
}

// run builds the module graph and blocks until shutdown.
func run(flags Flags) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := buildStore(flags)
	if err != nil {
		return err
	}
	defer st.Close()

	var nluOpts []nlu.Option
	if *flags.openaiKey != "" {
		nluOpts = append(nluOpts, nlu.WithAPIKey(*flags.openaiKey))
	}
	classifier, err := nlu.NewClient(nluOpts...)
	if err != nil {
		return err
	}

	msgService, err := buildMessagingService(flags)
	if err != nil {
		return err
	}
	if err := msgService.Start(ctx); err != nil {
		return err
	}
	defer msgService.Stop()

	sessions := session.NewManager(st)
	orch := orchestrator.NewOrchestrator(st, sessions, classifier)
	proxies := escalation.NewProxyManager(st)
	detector := escalation.NewDetector(classifier)
	notifier := escalation.NewNotifier(st, msgService)
	router := escalation.NewRouter(proxies, msgService)
	engine := orchestrator.NewEngine(st, sessions, orch, detector, notifier, router)

	limiter := buildLimiter(flags)

	go consumeInbound(ctx, engine, msgService)

	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	server := api.NewServer(engine, msgService, st, limiter, apiOpts...)
	return server.Run(ctx)
}

// consumeInbound drains the messaging service's inbound channel (whatsmeow
// events; Twilio messages arrive via webhook instead) through the engine.
func consumeInbound(ctx context.Context, engine *orchestrator.Engine, msgService messaging.Service) {
	for {
		select {
		case <-ctx.Done():
			return
		case in, ok := <-msgService.Inbound():
			if !ok {
				return
			}
			resp, reply, err := engine.HandleInbound(ctx, in)
			if err != nil {
				slog.Error("Failed to handle inbound message", "error", err, "from", in.From)
				continue
			}
			if reply {
				if err := msgService.SendButtonsMessage(ctx, in.From, resp.Text, resp.Buttons); err != nil {
					slog.Error("Failed to send reply", "error", err, "to", in.From)
				}
			}
		}
	}
}

// buildStore selects the storage backend from the DSN.
func buildStore(flags Flags) (store.Store, error) {
	dsn := *flags.dbDSN
	if dsn == "" {
		slog.Debug("No database DSN provided, using in-memory store")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(dsn) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql")
		return store.NewPostgresStore(store.WithDSN(dsn))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", dsn)
	return store.NewSQLiteStore(store.WithDSN(dsn))
}

// buildMessagingService picks Twilio when credentials are configured and
// falls back to a direct whatsmeow client otherwise.
func buildMessagingService(flags Flags) (messaging.Service, error) {
	if *flags.twilioSID != "" && *flags.twilioToken != "" {
		slog.Debug("Twilio credentials present, using Twilio messaging service")
		client, err := twiliowhatsapp.NewClient(
			twiliowhatsapp.WithAccountSID(*flags.twilioSID),
			twiliowhatsapp.WithAuthToken(*flags.twilioToken),
			twiliowhatsapp.WithFromWhats(*flags.twilioFrom),
		)
		if err != nil {
			return nil, err
		}
		templateSids := map[string]string{}
		if *flags.escalationSid != "" {
			templateSids[escalation.DefaultTemplateName] = *flags.escalationSid
		}
		return messaging.NewTwilioService(client, *flags.twilioFrom, templateSids), nil
	}

	slog.Debug("No Twilio credentials, using whatsmeow messaging service")
	var waOpts []whatsapp.Option
	if *flags.qrOutput != "" {
		waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
	}
	if *flags.numeric {
		waOpts = append(waOpts, whatsapp.WithNumericCode())
	}
	if *flags.waDBDSN != "" {
		waOpts = append(waOpts, whatsapp.WithDBDSN(*flags.waDBDSN))
	}
	client, err := whatsapp.NewClient(waOpts...)
	if err != nil {
		return nil, err
	}
	return messaging.NewWhatsAppService(client), nil
}

// buildLimiter wires the per-business rate limiter when Redis is configured.
func buildLimiter(flags Flags) *ratelimit.Limiter {
	if *flags.redisAddr == "" {
		slog.Debug("No Redis address configured, rate limiting disabled")
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: *flags.redisAddr})
	limiter := ratelimit.NewLimiter(ratelimit.NewRedisCounter(client))
	slog.Info("Rate limiting enabled", "redis_addr", *flags.redisAddr, "policy", limiter.String())
	return limiter
}

// Config holds environment configuration
type Config struct {
	DatabaseURL   string
	WhatsAppDSN   string
	StateDir      string
	OpenAIKey     string
	APIAddr       string
	RedisAddr     string
	TwilioSID     string
	TwilioToken   string
	TwilioFrom    string
	EscalationSid string
}

// Flags holds command line flag values
type Flags struct {
	qrOutput      *string
	numeric       *bool
	stateDir      *string
	dbDSN         *string
	waDBDSN       *string
	openaiKey     *string
	apiAddr       *string
	redisAddr     *string
	twilioSID     *string
	twilioToken   *string
	twilioFrom    *string
	escalationSid *string
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		WhatsAppDSN:   os.Getenv("WHATSAPP_DB_DSN"),
		StateDir:      os.Getenv("BOOKINGBOT_STATE_DIR"),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		APIAddr:       os.Getenv("API_ADDR"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		TwilioSID:     os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioToken:   os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:    os.Getenv("TWILIO_FROM_NUMBER"),
		EscalationSid: os.Getenv("TWILIO_ESCALATION_CONTENT_SID"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No BOOKINGBOT_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}
	if config.WhatsAppDSN == "" {
		config.WhatsAppDSN = filepath.Join(config.StateDir, "whatsmeow.db")
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"BOOKINGBOT_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"REDIS_ADDR", config.RedisAddr,
		"TWILIO_ACCOUNT_SID_SET", config.TwilioSID != "")

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		qrOutput:      flag.String("qr-output", "", "path to write login QR code"),
		numeric:       flag.Bool("numeric-code", false, "use numeric login code instead of QR code"),
		stateDir:      flag.String("state-dir", config.StateDir, "state directory for booking engine data (overrides $BOOKINGBOT_STATE_DIR)"),
		dbDSN:         flag.String("db-dsn", config.DatabaseURL, "database DSN for the booking store (overrides $DATABASE_URL)"),
		waDBDSN:       flag.String("whatsapp-db-dsn", config.WhatsAppDSN, "database DSN for the whatsmeow session store (overrides $WHATSAPP_DB_DSN)"),
		openaiKey:     flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		apiAddr:       flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		redisAddr:     flag.String("redis-addr", config.RedisAddr, "Redis address for rate limiting (overrides $REDIS_ADDR)"),
		twilioSID:     flag.String("twilio-account-sid", config.TwilioSID, "Twilio account SID (overrides $TWILIO_ACCOUNT_SID)"),
		twilioToken:   flag.String("twilio-auth-token", config.TwilioToken, "Twilio auth token (overrides $TWILIO_AUTH_TOKEN)"),
		twilioFrom:    flag.String("twilio-from", config.TwilioFrom, "Twilio WhatsApp sender number (overrides $TWILIO_FROM_NUMBER)"),
		escalationSid: flag.String("escalation-content-sid", config.EscalationSid, "Twilio content SID for the escalation template (overrides $TWILIO_ESCALATION_CONTENT_SID)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"qrOutput", *flags.qrOutput,
		"numeric", *flags.numeric,
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr,
		"redisAddr", *flags.redisAddr)

	// Follow a moved state directory for the default SQLite paths
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if store.DetectDSNType(*flags.dbDSN) != "postgres" {
		stateDir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
			return err
		}
	}
	return nil
}
