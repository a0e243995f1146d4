// Package api exposes bankline's HTTP surface: the WhatsApp webhook and the
// back-office dashboard endpoints.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/ribera-digital/bankline/internal/cloudapi"
	"github.com/ribera-digital/bankline/internal/extractor"
	"github.com/ribera-digital/bankline/internal/flow"
	"github.com/ribera-digital/bankline/internal/genai"
	"github.com/ribera-digital/bankline/internal/messaging"
	"github.com/ribera-digital/bankline/internal/store"
	"github.com/ribera-digital/bankline/internal/twiliowhatsapp"
	"github.com/ribera-digital/bankline/internal/whatsapp"
)

// Server defaults.
const (
	DefaultAddr            = ":8080"
	DefaultShutdownTimeout = 10 * time.Second
)

// Config holds the assembled runtime configuration.
type Config struct {
	Addr          string
	DSN           string // empty selects the in-memory store
	VerifyToken   string // webhook verification token
	PhoneNumberID string // Cloud API business phone number id
	WhatsAppToken string // Cloud API access token
	Transport     string // "cloud", "twilio" or "whatsmeow"
	WhatsmeowDSN  string // session database for the linked-device transport
	OpenAIKey     string
	GeminiKey     string
	UseGemini     bool
	ExtractorURL  string
	SigningURL    string
}

// Server carries the handler dependencies.
type Server struct {
	store         store.Store
	engine        *flow.Engine
	verifyToken   string
	phoneNumberID string
}

// NewServer wires the HTTP handlers.
func NewServer(st store.Store, engine *flow.Engine, verifyToken, phoneNumberID string) *Server {
	return &Server{
		store:         st,
		engine:        engine,
		verifyToken:   verifyToken,
		phoneNumberID: phoneNumberID,
	}
}

// Router builds the HTTP routing table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/webhook", s.verifyWebhookHandler)
	r.Post("/webhook", s.receiveWebhookHandler)

	r.Route("/api", func(r chi.Router) {
		r.Get("/chats", s.chatsHandler)
		r.Get("/documents", s.documentsHandler)
		r.Get("/document", s.documentHandler)
		r.Get("/cardReports", s.cardReportsHandler)
		r.Patch("/cardReports", s.updateCardReportHandler)
		r.Post("/save-signature", s.saveSignatureHandler)
	})
	return r
}

// Run assembles the full application from configuration and serves until the
// context is cancelled.
func Run(ctx context.Context, cfg Config) error {
	st, err := openStore(cfg.DSN)
	if err != nil {
		return err
	}
	defer st.Close()

	llm, err := buildGenerator(ctx, cfg)
	if err != nil {
		return err
	}
	sender, media, err := buildTransport(cfg)
	if err != nil {
		return err
	}

	engineOpts := []flow.Option{}
	if media != nil {
		engineOpts = append(engineOpts, flow.WithMediaStore(media))
	}
	if cfg.ExtractorURL != "" {
		engineOpts = append(engineOpts, flow.WithExtractor(extractor.NewClient(extractor.WithURL(cfg.ExtractorURL))))
	}
	if cfg.SigningURL != "" {
		engineOpts = append(engineOpts, flow.WithSigningURL(cfg.SigningURL))
	}
	engine := flow.NewEngine(st, llm, sender, engineOpts...)

	server := NewServer(st, engine, cfg.VerifyToken, cfg.PhoneNumberID)
	addr := cfg.Addr
	if addr == "" {
		addr = DefaultAddr
	}
	httpServer := &http.Server{Addr: addr, Handler: server.Router()}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("bankline API listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("bankline API shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// openStore selects the store backend from the DSN.
func openStore(dsn string) (store.Store, error) {
	if dsn == "" {
		slog.Warn("no database DSN configured, using in-memory store")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(dsn) == "postgres" {
		return store.NewPostgresStore(store.WithDSN(dsn))
	}
	return store.NewSQLiteStore(store.WithDSN(dsn))
}

// buildGenerator selects the language model backend.
func buildGenerator(ctx context.Context, cfg Config) (genai.Generator, error) {
	if cfg.UseGemini {
		slog.Info("using Gemini language model")
		return genai.NewGeminiClient(ctx, genai.WithAPIKey(cfg.GeminiKey))
	}
	return genai.NewClient(genai.WithAPIKey(cfg.OpenAIKey))
}

// buildTransport selects the delivery channel. Only the Cloud API transport
// can move media; the others degrade documents and lists to text.
func buildTransport(cfg Config) (messaging.Sender, messaging.MediaStore, error) {
	switch cfg.Transport {
	case "", "cloud":
		client, err := cloudapi.NewClient(
			cloudapi.WithToken(cfg.WhatsAppToken),
			cloudapi.WithPhoneNumberID(cfg.PhoneNumberID),
		)
		if err != nil {
			return nil, nil, err
		}
		svc := messaging.NewCloudService(client)
		return svc, svc, nil
	case "twilio":
		client, err := twiliowhatsapp.NewClient()
		if err != nil {
			return nil, nil, err
		}
		return messaging.NewTextService(client), nil, nil
	case "whatsmeow":
		opts := []whatsapp.Option{}
		if cfg.WhatsmeowDSN != "" {
			opts = append(opts, whatsapp.WithDBDSN(cfg.WhatsmeowDSN))
		}
		client, err := whatsapp.NewClient(opts...)
		if err != nil {
			return nil, nil, err
		}
		return messaging.NewTextService(client), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}
