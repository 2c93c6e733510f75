package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	authhandler "github.com/jwalitptl/radiology-api/internal/handler/auth"
	"github.com/jwalitptl/radiology-api/internal/handler/health"
	importhandler "github.com/jwalitptl/radiology-api/internal/handler/importer"
	patienthandler "github.com/jwalitptl/radiology-api/internal/handler/patient"
	promhandler "github.com/jwalitptl/radiology-api/internal/handler/prometheus"
	"github.com/jwalitptl/radiology-api/internal/handler/resource"
	"github.com/jwalitptl/radiology-api/internal/importer"
	"github.com/jwalitptl/radiology-api/internal/middleware"
	"github.com/jwalitptl/radiology-api/internal/model"
	"github.com/jwalitptl/radiology-api/internal/repository"
	"github.com/jwalitptl/radiology-api/internal/router"
	authservice "github.com/jwalitptl/radiology-api/internal/service/auth"
	"github.com/jwalitptl/radiology-api/internal/service/listing"
	patientservice "github.com/jwalitptl/radiology-api/internal/service/patient"
	"github.com/jwalitptl/radiology-api/pkg/auth"
)

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, *configPath)
		},
	}
}

func resourceFor[T any](a *app, reader repository.Reader[T], path, plural, singular string) router.Resource {
	res := router.Resource{
		Path:    path,
		Handler: resource.NewHandler(listing.NewService[T](singular, reader), plural, singular),
	}
	if imp, err := a.imports.Registry().Get(path); err == nil {
		res.Importer = imp
	}
	return res
}

func runServer(ctx context.Context, configPath string) error {
	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			a.logger.Error().Err(err).Msg("failed to close resources")
		}
	}()
	cfg := a.cfg

	jwtSvc := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry())
	authSvc := authservice.NewService(a.repos.doctors, jwtSvc, a.hasher, a.logger)
	patientSvc := patientservice.NewService(a.repos.patients, a.parents, a.logger)

	importH := importhandler.NewHandler(
		a.imports,
		importer.NewReceiver(cfg.Upload.TempDir),
		importhandler.Limits{
			Default: cfg.Upload.MaxBytes(),
			Small:   cfg.Upload.SmallMaxBytes(),
			Large:   cfg.Upload.LargeMaxBytes(),
		},
		a.logger,
	)

	// Doctor rows carry access levels and password hashes.
	doctors := resourceFor[model.Doctor](a, a.repos.doctors, "doctors", "doctors", "doctor")
	doctors.ImportLevel = model.AccessLevelAdmin

	r := router.NewRouter(
		router.Config{
			Mode:                 cfg.Server.Mode,
			RequireAuthForImport: cfg.Auth.RequireForImport,
			RateLimitEnabled:     cfg.RateLimit.Enabled,
			RateLimit: middleware.RateLimiterConfig{
				Rate:  rate.Limit(cfg.RateLimit.RPS),
				Burst: cfg.RateLimit.Burst,
			},
			CORS: middleware.DefaultCORSConfig(cfg.Server.AllowedOrigins),
		},
		a.metrics,
		middleware.NewAuthMiddleware(authSvc),
		authhandler.NewHandler(authSvc),
		patienthandler.NewHandler(patientSvc),
		importH,
		health.NewHandler(a.db),
		promhandler.New(a.registry),
		resourceFor[model.Patient](a, a.repos.patients, "patients", "patients", "patient"),
		resourceFor[model.Report](a, a.repos.reports, "reports", "reports", "report"),
		resourceFor[model.Schedule](a, a.repos.schedules, "schedules", "schedules", "schedule"),
		doctors,
		resourceFor[model.TeachingFile](a, a.repos.teachingFiles, "teaching-files", "teachingfiles", "teachingfile"),
		resourceFor[model.DicomRecord](a, a.repos.dicom, "dicom", "dicom", "series"),
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	a.logger.Info().Msg("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	if err := a.imports.Wait(shutdownCtx); err != nil {
		a.logger.Warn().Err(err).Msg("import notifications still pending at exit")
	}
	a.logger.Info().Msg("server exited properly")
	return nil
}
