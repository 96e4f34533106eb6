package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	dispatchx "github.com/vyaparlabs/vyapar/agent/dispatch"
	extractx "github.com/vyaparlabs/vyapar/agent/extract"
	workerx "github.com/vyaparlabs/vyapar/agent/worker"
	ledgerx "github.com/vyaparlabs/vyapar/ledger"
	receiptx "github.com/vyaparlabs/vyapar/receipt"
	serverx "github.com/vyaparlabs/vyapar/server"

	configx "github.com/vyaparlabs/vyapar/pkg/config"
	_ "github.com/vyaparlabs/vyapar/pkg/logger/autoload"
	twiliox "github.com/vyaparlabs/vyapar/pkg/twilio"
)

type AppConfig struct {
	HTTPAddr    string `envconfig:"HTTP_ADDR" split_words:"true" default:":8000"`
	DatabaseURL string `envconfig:"DATABASE_URL" split_words:"true"`
	ReceiptDir  string `envconfig:"RECEIPT_DIR" split_words:"true" default:"data/receipts"`
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appCfg := configx.MustNew[AppConfig]("")
	twilioCfg := configx.MustNew[twiliox.Config]("TWILIO")
	openaiCfg := configx.MustNew[extractx.Config]("OPENAI")
	workerCfg := configx.MustNew[workerx.Config]("WORKER")

	twilioClient := twiliox.MustNew(*twilioCfg)

	store, closeStore := newStore(ctx, appCfg.DatabaseURL)
	defer closeStore()

	receipts, err := receiptx.NewFileGenerator(appCfg.ReceiptDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize receipt generator")
	}

	classifier, err := extractx.NewClassifier(*openaiCfg, twilioClient)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize classifier")
	}

	dispatcher, err := dispatchx.New(store, receipts)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize dispatcher")
	}

	pool, err := workerx.NewPool(classifier, dispatcher, twilioClient, *workerCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize worker pool")
	}
	pool.Start(ctx)

	handler := serverx.New(pool)
	httpServer := &http.Server{
		Addr:    appCfg.HTTPAddr,
		Handler: handler.Router(),
	}

	go func() {
		log.Info().Str("addr", appCfg.HTTPAddr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)

	pool.Close()
	log.Info().Msg("workers stopped")
}

// newStore picks the Postgres-backed store when DATABASE_URL is set and
// the in-memory store otherwise.
func newStore(ctx context.Context, dsn string) (ledgerx.Store, func()) {
	if strings.TrimSpace(dsn) == "" {
		log.Warn().Msg("DATABASE_URL not set, using in-memory ledger store")
		return ledgerx.NewMemStore(), func() {}
	}

	pg, err := ledgerx.NewPGStore(dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open ledger store")
	}
	if err := pg.CreateSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to create ledger schema")
	}
	log.Info().Msg("connected to postgres ledger store")
	return pg, func() { _ = pg.Close() }
}
