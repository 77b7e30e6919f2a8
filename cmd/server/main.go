package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/visiblelegal/lead-capture/internal/api"
	"github.com/visiblelegal/lead-capture/internal/config"
	"github.com/visiblelegal/lead-capture/internal/consent"
	"github.com/visiblelegal/lead-capture/internal/identity"
	"github.com/visiblelegal/lead-capture/internal/lead"
	"github.com/visiblelegal/lead-capture/internal/pkg/dispatch"
	"github.com/visiblelegal/lead-capture/internal/pkg/logger"
	"github.com/visiblelegal/lead-capture/internal/tracking"
)

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.Debug {
		logger.SetLevel(logger.DEBUG)
	}

	var store consent.Store
	if client := redisClient(cfg); client != nil {
		store = consent.NewRedisStore(client, cfg.Consent.KeyPrefix, cfg.Consent.PolicyVersion)
		log.Println("consent store: redis")
	} else {
		store = consent.NewMemoryStore(cfg.Consent.PolicyVersion)
		log.Println("consent store: in-memory (set REDIS_ADDR or REDIS_URL for persistence)")
	}

	controller := consent.NewController(consent.ControllerOpts{
		Store:          store,
		Signal:         consent.NewQueuedSignal(),
		MeasurementID:  cfg.Consent.MeasurementID,
		CookiePagePath: cfg.Consent.CookiePagePath,
		Debug:          cfg.Debug,
	})

	dispatcher := dispatch.New(nil)
	pixel := tracking.NewPixelClient(cfg.Pixel.ID, cfg.Pixel.BaseURL, nil)
	gateway := tracking.NewGateway(store, pixel, dispatcher, tracking.GatewayConfig{
		ConversionsURL: cfg.Webhooks.ConversionsURL,
		IntakeURLs: map[tracking.IntakeKind]string{
			tracking.IntakeIVACapture:   cfg.Webhooks.IVACaptureURL,
			tracking.IntakeGeneralQuery: cfg.Webhooks.GeneralQueryURL,
		},
		LeadCustomData: tracking.CustomData{
			ContentCategory: cfg.Lead.ContentCategory,
			ContentName:     cfg.Lead.ContentName,
		},
		ViewCustomData: tracking.CustomData{
			ContentCategory: cfg.Lead.ContentCategory,
			ContentName:     "IVA Claim Checker",
		},
		Debug: cfg.Debug,
	})

	norm := identity.NewNormalizer(cfg.Phone.CountryCode, cfg.Phone.TrunkPrefix)
	flow := lead.NewFlow(lead.FlowConfig{
		EndpointURL:  cfg.Lead.EndpointURL,
		ContactEmail: cfg.Lead.ContactEmail,
	}, dispatcher, gateway, norm)

	handler := api.NewHandler(controller, flow, gateway)
	router := api.SetupRoutes(handler, cfg.Server.AllowedOrigins)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("lead-capture listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down lead-capture...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}

	// Let detached webhook deliveries drain before exit.
	dispatcher.Wait()
}

// redisClient builds the consent-store client from REDIS_URL/REDIS_ADDR
// style settings. Returns nil when nothing is configured or the ping
// fails, in which case the server falls back to the in-memory store.
func redisClient(cfg *config.Config) *redis.Client {
	var client *redis.Client
	switch {
	case cfg.Redis.URL != "":
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Printf("bad REDIS_URL, falling back to addr: %v", err)
			client = redis.NewClient(&redis.Options{Addr: cfg.Redis.URL})
		} else {
			client = redis.NewClient(opts)
		}
	case cfg.Redis.Addr != "":
		client = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	default:
		return nil
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Printf("redis unreachable (%v), using in-memory consent store", err)
		client.Close()
		return nil
	}
	return client
}
