package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/ayush/storefinder/internal/auth"
	"github.com/ayush/storefinder/internal/config"
	"github.com/ayush/storefinder/internal/mail"
	"github.com/ayush/storefinder/internal/photos"
	"github.com/ayush/storefinder/internal/stores"
	"github.com/ayush/storefinder/internal/telemetry"
	"github.com/ayush/storefinder/internal/web"
)

const shutdownTimeout = 10 * time.Second

func serve(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	shutdownTracing, err := telemetry.Init(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Error().Err(err).Msg("shutdown tracing")
		}
	}()

	d, err := openDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.Close()
	if err := d.migrate(ctx); err != nil {
		return err
	}

	mailer, err := mail.New(mail.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		User:     cfg.SMTP.User,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
	if err != nil {
		return err
	}
	defer mailer.Wait()

	renderer, err := web.NewRenderer()
	if err != nil {
		return err
	}
	app := web.New(web.Options{
		Sessions:      auth.NewSessionStore(d.redis),
		Users:         d.users,
		Renderer:      renderer,
		SecureCookies: cfg.CookieSecure,
	})

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: newRouter(routerOptions{
			App:            app,
			Auth:           auth.NewHandler(d.users, mailer),
			Stores:         stores.NewHandler(d.stores, d.users, d.reviews, d.files),
			Photos:         photos.NewUploader(d.files),
			Logger:         logger,
			AllowedOrigins: cfg.AllowedOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutCtx)
}
