package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/image-optimizer/internal/api/handlers/image"
	"github.com/aliskhannn/image-optimizer/internal/api/router"
	"github.com/aliskhannn/image-optimizer/internal/api/server"
	"github.com/aliskhannn/image-optimizer/internal/config"
	"github.com/aliskhannn/image-optimizer/internal/processor"
	imagesvc "github.com/aliskhannn/image-optimizer/internal/service/image"
	"github.com/aliskhannn/image-optimizer/internal/storage/file"
)

func main() {
	// Context & signals: used for graceful shutdown on system interrupts.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize logger and load application configuration.
	zlog.Init()
	cfg := config.MustLoad("./config/config.yml")

	// Scratch directory for uploads and derived files.
	storage, err := file.NewStorage(cfg.Upload.Dir, cfg.Upload.MaxFileSize)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to prepare upload directory")
	}

	imageProcessor := processor.New(storage)
	service := imagesvc.NewService(storage, imageProcessor, imagesvc.Efforts{
		Convert: cfg.Transform.WebPEffort,
		Chain:   cfg.Transform.ChainEffort,
	})

	imgHandler := image.NewHandler(service, storage.MaxSize(), cfg.Transform.DefaultQuality)

	// Start HTTP server in a separate goroutine.
	r := router.Setup(imgHandler, cfg.CORS.AllowedOrigin)
	s := server.New(cfg.Server.Addr(), r, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)
	go func() {
		zlog.Logger.Info().
			Str("addr", s.Addr).
			Str("upload_dir", storage.Dir()).
			Str("allowed_origin", cfg.CORS.AllowedOrigin).
			Msg("starting server")
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Block until context is canceled (SIGINT/SIGTERM).
	<-ctx.Done()
	zlog.Logger.Info().Msg("context done")

	// Graceful shutdown with timeout for HTTP server.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	zlog.Logger.Info().Msg("shutting down server")
	if err := s.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
		zlog.Logger.Info().Msg("timeout exceeded, forcing shutdown")
	}
}
