package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"anpr-locker/internal/config"
	apihttp "anpr-locker/internal/http"
	"anpr-locker/internal/logger"
	"anpr-locker/internal/ocr"
	"anpr-locker/internal/region"
	"anpr-locker/internal/repository"
	"anpr-locker/internal/service"
	"anpr-locker/internal/session"
	"anpr-locker/internal/vision"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := pflag.StringP("config", "c", "", "path to a YAML/JSON/TOML config file")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}

	log := logger.New(cfg.Log, uuid.NewString())

	detector, err := vision.NewCascadeDetector(cfg.Detector, log.With().Str("component", "detector").Logger())
	if err != nil {
		log.Error().Err(err).Str("path", cfg.Detector.CascadePath).Msg("failed to initialize plate detector")
		return 1
	}
	defer detector.Close()

	extractor, err := ocr.NewExtractor(cfg.OCR, log.With().Str("component", "ocr").Logger())
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize OCR engine")
		return 1
	}
	defer extractor.Close()

	repo := repository.NewANPRRepository(cfg.Storage.CaptureDir, cfg.Storage.LogPath, cfg.Storage.ImageExt)
	created, err := repo.EnsureDir()
	if err != nil {
		log.Error().Err(err).Str("dir", cfg.Storage.CaptureDir).Msg("failed to prepare capture directory")
		return 1
	}
	if created {
		log.Info().Str("dir", cfg.Storage.CaptureDir).Msg("created capture directory")
	}

	camera, err := vision.OpenCamera(cfg.Camera.Device)
	if err != nil {
		log.Error().Err(err).Str("device", cfg.Camera.Device).Msg("could not open the camera")
		return 1
	}
	defer camera.Close()

	regions := region.Default()
	anprService := service.NewANPRService(
		detector,
		vision.NewNormalizer(cfg.Normalizer),
		extractor,
		regions,
		repo,
		log.With().Str("component", "acquisition").Logger(),
	)

	var display session.Display = session.Headless{}
	if cfg.Display.Enabled {
		d := vision.NewDisplay(cfg.Display, log)
		defer d.Close()
		anprService.SetCropViewer(d)
		display = d
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := startHTTP(cfg, anprService, regions, repo, log)

	log.Info().
		Str("camera", cfg.Camera.Device).
		Str("camera_model", cfg.Camera.Model).
		Int("regions", regions.Len()).
		Bool("display", cfg.Display.Enabled).
		Msg("starting plate acquisition")

	runErr := session.New(camera, display, anprService, log).Run(ctx)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http server shutdown failed")
		}
		cancel()
	}

	st := anprService.Stats()
	log.Info().
		Int64("frames", st.Frames).
		Int64("readings", st.Readings).
		Int64("resets", st.Resets).
		Msg("session finished")

	switch {
	case runErr == nil:
		return 0
	case errors.Is(runErr, session.ErrCaptureEnded):
		log.Warn().Err(runErr).Msg("capture stopped, exiting early")
		return 0
	default:
		log.Error().Err(runErr).Msg("session failed")
		return 1
	}
}

func startHTTP(
	cfg *config.Config,
	anprService *service.ANPRService,
	regions *region.Directory,
	repo *repository.ANPRRepository,
	log zerolog.Logger,
) *http.Server {
	if cfg.HTTP.Addr == "" {
		return nil
	}
	if log.GetLevel() > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	apiLog := log.With().Str("component", "http").Logger()
	handler := apihttp.NewHandler(anprService, regions, repo, apiLog)
	srv := apihttp.NewServer(cfg.HTTP, apihttp.NewRouter(cfg.HTTP, cfg.Auth, handler, apiLog))

	go func() {
		apiLog.Info().Str("addr", cfg.HTTP.Addr).Msg("operator API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			apiLog.Error().Err(err).Msg("operator API stopped")
		}
	}()
	return srv
}
