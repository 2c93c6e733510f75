package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/radiology-api/internal/config"
	"github.com/jwalitptl/radiology-api/internal/importer"
	"github.com/jwalitptl/radiology-api/internal/notify"
	"github.com/jwalitptl/radiology-api/internal/repository"
	"github.com/jwalitptl/radiology-api/internal/repository/postgres"
	"github.com/jwalitptl/radiology-api/pkg/logger"
	"github.com/jwalitptl/radiology-api/pkg/messaging"
	"github.com/jwalitptl/radiology-api/pkg/messaging/redis"
	"github.com/jwalitptl/radiology-api/pkg/metrics"
	"github.com/jwalitptl/radiology-api/pkg/security"
	"github.com/jwalitptl/radiology-api/pkg/validator"
)

type repositories struct {
	patients      repository.PatientRepository
	reports       repository.ReportRepository
	schedules     repository.ScheduleRepository
	doctors       repository.DoctorRepository
	teachingFiles repository.TeachingFileRepository
	dicom         repository.DicomRepository
}

// app holds everything the subcommands share.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	db       *sqlx.DB
	repos    repositories
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	broker   messaging.Broker
	parents  *importer.ParentChecker
	imports  *importer.Service
	hasher   security.PasswordHasher
}

func loadConfig(path string) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	l := logger.New(logger.Config{Level: cfg.Log.Level, Console: cfg.Log.Console})
	log.Logger = l
	return cfg, l, nil
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, l, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if cfg.Database.AutoSchema {
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	a := &app{
		cfg:    cfg,
		logger: l,
		db:     db,
		repos: repositories{
			patients:      postgres.NewPatientRepository(db),
			reports:       postgres.NewReportRepository(db),
			schedules:     postgres.NewScheduleRepository(db),
			doctors:       postgres.NewDoctorRepository(db),
			teachingFiles: postgres.NewTeachingFileRepository(db),
			dicom:         postgres.NewDicomRepository(db),
		},
		registry: prometheus.NewRegistry(),
		hasher:   security.NewBcryptHasher(cfg.Auth.BcryptCost),
	}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.New(a.registry, "radis")

	if cfg.Redis.URL != "" {
		broker, err := redis.NewRedisBroker(ctx, redis.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   cfg.Redis.MaxRetries,
			RetryBackoff: cfg.Redis.RetryBackoff,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		}, l)
		if err != nil {
			// Notifications are optional; imports still work without them.
			l.Warn().Err(err).Msg("redis unavailable, import events will not be published")
		} else {
			a.broker = broker
		}
	}

	a.buildImporter()
	return a, nil
}

func (a *app) notifier() importer.Notifier {
	var n notify.Multi
	if a.broker != nil {
		n = append(n, notify.NewBrokerNotifier(a.broker, a.cfg.Redis.Channel))
	}
	if smtp := a.cfg.SMTP; smtp.Enabled() {
		n = append(n, notify.NewMailNotifier(notify.MailConfig{
			Host:     smtp.Host,
			Port:     smtp.Port,
			User:     smtp.User,
			Password: smtp.Password,
			From:     smtp.From,
			To:       smtp.To,
		}))
	}
	if len(n) == 0 {
		return notify.Nop{}
	}
	return n
}

func (a *app) buildImporter() {
	imp := a.cfg.Import
	observers := importer.Observers{
		importer.NewLogObserver(a.logger),
		importer.NewMetricsObserver(a.metrics),
	}

	a.parents = importer.NewParentChecker(a.repos.patients, imp.ParentCacheTTL)
	p := importer.NewPipeline(a.parents, validator.New(), observers)

	registry := importer.NewRegistry(
		importer.Bind(p, importer.PatientEntity(a.repos.patients, imp.BatchSize("patients", importer.PatientBatchSize))),
		importer.Bind(p, importer.ReportEntity(a.repos.reports, imp.BatchSize("reports", importer.ReportBatchSize))),
		importer.Bind(p, importer.ScheduleEntity(a.repos.schedules, imp.BatchSize("schedules", importer.ScheduleBatchSize))),
		importer.Bind(p, importer.DoctorEntity(a.repos.doctors, imp.BatchSize("doctors", importer.DoctorBatchSize), a.hasher)),
		importer.Bind(p, importer.TeachingFileEntity(a.repos.teachingFiles, imp.BatchSize("teaching-files", importer.TeachingFileBatchSize))),
		importer.Bind(p, importer.DicomEntity(a.repos.dicom, imp.BatchSize("dicom", importer.DicomBatchSize))),
	)
	a.imports = importer.NewService(registry, observers, a.notifier(), a.logger, imp.DefaultCharset)
}

func (a *app) importerFor(entity string) (importer.Importer, error) {
	imp, err := a.imports.Registry().Get(entity)
	if err != nil {
		return nil, fmt.Errorf("%w: %q (known: %v)", err, entity, a.imports.Registry().Names())
	}
	return imp, nil
}

func (a *app) Close() error {
	var errs []error
	if a.broker != nil {
		errs = append(errs, a.broker.Close())
	}
	errs = append(errs, a.db.Close())
	return errors.Join(errs...)
}
