package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ribera-digital/bankline/internal/api"
	"github.com/ribera-digital/bankline/internal/util"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping bankline", "addr", *flags.addr, "transport", *flags.transport, "dsn_set", *flags.dsn != "")
	if err := api.Run(ctx, api.Config{
		Addr:          *flags.addr,
		DSN:           *flags.dsn,
		VerifyToken:   *flags.verifyToken,
		PhoneNumberID: *flags.phoneNumberID,
		WhatsAppToken: *flags.whatsappToken,
		Transport:     *flags.transport,
		WhatsmeowDSN:  *flags.whatsmeowDSN,
		OpenAIKey:     *flags.openaiKey,
		GeminiKey:     *flags.geminiKey,
		UseGemini:     *flags.useGemini,
		ExtractorURL:  *flags.extractorURL,
		SigningURL:    *flags.signingURL,
	}); err != nil {
		slog.Error("bankline failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("bankline exited successfully")
}

// Config holds environment configuration
type Config struct {
	Addr          string
	DSN           string
	VerifyToken   string
	PhoneNumberID string
	WhatsAppToken string
	Transport     string
	WhatsmeowDSN  string
	OpenAIKey     string
	GeminiKey     string
	UseGemini     bool
	ExtractorURL  string
	SigningURL    string
}

// Flags holds command line flag values
type Flags struct {
	addr          *string
	dsn           *string
	verifyToken   *string
	phoneNumberID *string
	whatsappToken *string
	transport     *string
	whatsmeowDSN  *string
	openaiKey     *string
	geminiKey     *string
	useGemini     *bool
	extractorURL  *string
	signingURL    *string
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
		Addr:          os.Getenv("API_ADDR"),
		DSN:           os.Getenv("DATABASE_URL"),
		VerifyToken:   os.Getenv("WEBHOOK_VERIFY_TOKEN"),
		PhoneNumberID: os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
		WhatsAppToken: os.Getenv("WHATSAPP_TOKEN"),
		Transport:     util.GetEnvOrDefault("WHATSAPP_TRANSPORT", "cloud"),
		WhatsmeowDSN:  os.Getenv("WHATSMEOW_DB_DSN"),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		GeminiKey:     os.Getenv("GEMINI_API_KEY"),
		UseGemini:     util.ParseBoolEnv("USE_GEMINI", false),
		ExtractorURL:  os.Getenv("EXTRACTOR_URL"),
		SigningURL:    os.Getenv("SIGNING_URL"),
	}

	slog.Debug("environment variables loaded",
		"API_ADDR", config.Addr,
		"DATABASE_URL_SET", config.DSN != "",
		"WEBHOOK_VERIFY_TOKEN_SET", config.VerifyToken != "",
		"WHATSAPP_PHONE_NUMBER_ID", config.PhoneNumberID,
		"WHATSAPP_TOKEN_SET", config.WhatsAppToken != "",
		"WHATSAPP_TRANSPORT", config.Transport,
		"WHATSMEOW_DB_DSN_SET", config.WhatsmeowDSN != "",
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"GEMINI_API_KEY_SET", config.GeminiKey != "",
		"USE_GEMINI", config.UseGemini,
		"EXTRACTOR_URL_SET", config.ExtractorURL != "",
		"SIGNING_URL_SET", config.SigningURL != "")

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		addr:          flag.String("api-addr", config.Addr, "API server address (overrides $API_ADDR)"),
		dsn:           flag.String("db-dsn", config.DSN, "database DSN, Postgres URL or SQLite path (overrides $DATABASE_URL)"),
		verifyToken:   flag.String("verify-token", config.VerifyToken, "webhook verification token (overrides $WEBHOOK_VERIFY_TOKEN)"),
		phoneNumberID: flag.String("phone-number-id", config.PhoneNumberID, "Cloud API phone number id (overrides $WHATSAPP_PHONE_NUMBER_ID)"),
		whatsappToken: flag.String("whatsapp-token", config.WhatsAppToken, "Cloud API access token (overrides $WHATSAPP_TOKEN)"),
		transport:     flag.String("transport", config.Transport, "outbound transport: cloud, twilio or whatsmeow (overrides $WHATSAPP_TRANSPORT)"),
		whatsmeowDSN:  flag.String("whatsmeow-db-dsn", config.WhatsmeowDSN, "session database DSN for the whatsmeow transport (overrides $WHATSMEOW_DB_DSN)"),
		openaiKey:     flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		geminiKey:     flag.String("gemini-api-key", config.GeminiKey, "Gemini API key (overrides $GEMINI_API_KEY)"),
		useGemini:     flag.Bool("use-gemini", config.UseGemini, "answer with Gemini instead of OpenAI (overrides $USE_GEMINI)"),
		extractorURL:  flag.String("extractor-url", config.ExtractorURL, "document extractor service URL (overrides $EXTRACTOR_URL)"),
		signingURL:    flag.String("signing-url", config.SigningURL, "base URL of the signature capture form (overrides $SIGNING_URL)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"addr", *flags.addr,
		"dsn_set", *flags.dsn != "",
		"verifyTokenSet", *flags.verifyToken != "",
		"phoneNumberID", *flags.phoneNumberID,
		"whatsappTokenSet", *flags.whatsappToken != "",
		"transport", *flags.transport,
		"whatsmeowDSN_set", *flags.whatsmeowDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"geminiKeySet", *flags.geminiKey != "",
		"useGemini", *flags.useGemini,
		"extractorURL_set", *flags.extractorURL != "",
		"signingURL_set", *flags.signingURL != "")

	return flags
}
