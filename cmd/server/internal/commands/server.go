package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/wolfeidau/sopdesk/internal/auth"
	"github.com/wolfeidau/sopdesk/internal/entity"
	"github.com/wolfeidau/sopdesk/internal/logger"
	"github.com/wolfeidau/sopdesk/internal/registration"
	"github.com/wolfeidau/sopdesk/internal/server"
	"github.com/wolfeidau/sopdesk/internal/telemetry"
)

type ServerCmd struct {
	// Server configuration
	Listen string `help:"HTTP server listen address" default:"0.0.0.0:8000" env:"SOPDESK_LISTEN"`
	Cert   string `help:"path to TLS cert file, serves plain HTTP when empty" default:"" env:"SOPDESK_TLS_CERT"`
	Key    string `help:"path to TLS key file" default:"" env:"SOPDESK_TLS_KEY"`

	// CORS configuration
	CORSOrigins []string `help:"allowed CORS origins for API requests" default:"http://localhost:3000" env:"SOPDESK_CORS_ORIGINS"`

	// Token configuration
	Token TokenFlags `embed:"" prefix:"token-"`

	// Registration numbering
	SchemeFile string `help:"YAML file overriding the registration scheme" default:"" env:"SOPDESK_SCHEME_FILE"`
	MaxRetries uint   `help:"create attempts when a registration collides" default:"5" env:"SOPDESK_MAX_RETRIES"`

	// Operational modes
	Gzip    bool `help:"compress responses" default:"true" env:"SOPDESK_GZIP" negatable:""`
	Tracing bool `help:"enable tracing" default:"false" env:"SOPDESK_TRACING"`

	// Store configuration
	Store StoreFlags `embed:"" prefix:"store-"`
}

type TokenFlags struct {
	SecretKey string        `help:"secret key for HMAC signing of access tokens" env:"SOPDESK_SECRET_KEY"`
	TTL       time.Duration `help:"access token lifetime" default:"168h" env:"SOPDESK_TOKEN_TTL"`
	CacheSize int           `help:"validated token cache entries, 0 disables the cache" default:"1024" env:"SOPDESK_TOKEN_CACHE_SIZE"`
	CacheTTL  time.Duration `help:"validated token cache lifetime" default:"30m" env:"SOPDESK_TOKEN_CACHE_TTL"`
}

func (t *TokenFlags) Validate() error {
	if t.SecretKey == "" {
		return errors.New("secret key is required (--token-secret-key or SOPDESK_SECRET_KEY)")
	}
	if len(t.SecretKey) < auth.MinSecretLength {
		return fmt.Errorf("secret key must be at least %d bytes (256 bits) for HMAC-SHA256", auth.MinSecretLength)
	}
	return nil
}

func (t *TokenFlags) tokenService() (*auth.TokenService, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	opts := []auth.TokenOption{auth.WithTTL(t.TTL)}
	if t.CacheSize > 0 {
		opts = append(opts, auth.WithCache(auth.NewTokenCache(t.CacheSize, t.CacheTTL)))
	}
	return auth.NewTokenService([]byte(t.SecretKey), opts...)
}

func (c *ServerCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting server")

	if c.Tracing {
		log.Info().Msg("Tracing is enabled")
		shutdown, err := telemetry.InitTelemetry(ctx, telemetry.Config{
			ServiceName: "sopdesk-server",
			Version:     globals.Version,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
			shutdown = func(ctx context.Context) error { return nil }
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shutdown telemetry")
			}
		}()
	}

	tokens, err := c.Token.tokenService()
	if err != nil {
		return err
	}

	scheme := registration.DefaultScheme()
	if c.SchemeFile != "" {
		scheme, err = registration.LoadScheme(c.SchemeFile)
		if err != nil {
			return err
		}
		log.Info().Str("file", c.SchemeFile).Msg("Loaded registration scheme")
	}

	docs, err := openStore(ctx, &c.Store, false)
	if err != nil {
		return err
	}
	defer func() {
		if err := docs.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close store")
		}
	}()

	srv := server.NewServer(server.Config{
		Docs:           docs,
		Alloc:          registration.NewAllocator(docs, scheme),
		Tokens:         tokens,
		Version:        globals.Version,
		TrustedOrigins: c.CORSOrigins,
		EntityOptions:  []entity.Option{entity.WithMaxRetries(c.MaxRetries)},
	})

	handler := srv.Handler(log)
	if c.Gzip {
		handler = gzhttp.GzipHandler(handler)
	}
	handler = withCORS(c.CORSOrigins, handler)

	httpServer := configureHTTPServer(c.Listen, handler)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", c.Listen).Bool("tls", c.Cert != "").Msg("Starting HTTP server")
		if c.Cert != "" {
			errCh <- httpServer.ListenAndServeTLS(c.Cert, c.Key)
			return
		}
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return httpServer.Shutdown(shutdownCtx)
}
