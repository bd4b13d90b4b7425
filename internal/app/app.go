// Package app wires configuration into the database, platform sources,
// ingestors and their collaborators. Both commands start from New.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/oceanwatch/hazard-monitor/internal/classify"
	"github.com/oceanwatch/hazard-monitor/internal/config"
	"github.com/oceanwatch/hazard-monitor/internal/ingest"
	"github.com/oceanwatch/hazard-monitor/internal/models"
	"github.com/oceanwatch/hazard-monitor/internal/notifications"
	"github.com/oceanwatch/hazard-monitor/internal/repo"
	"github.com/oceanwatch/hazard-monitor/internal/sources"
	"github.com/oceanwatch/hazard-monitor/internal/storage"
	"github.com/oceanwatch/hazard-monitor/internal/usage"
)

// App holds the long-lived components built from a Config.
type App struct {
	Config    *config.Config
	DB        *gorm.DB
	Usage     *usage.Tracker
	Twitter   *sources.TwitterSource
	Instagram *sources.InstagramSource
	Ingestors []*ingest.Ingestor
	Ingest    *ingest.Service
	Archive   storage.Archive // nil when no archive is configured
}

// New opens the database, migrates it and builds one ingestor per
// platform. Failing to initialise a platform identity aborts startup.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := repo.Open(cfg.DBDriver, cfg.DatabaseURL, cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		closeDB(db)
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	a := &App{
		Config: cfg,
		DB:     db,
		Usage:  usage.NewTracker(db),
		Twitter: sources.NewTwitterSource(sources.TwitterOptions{
			BearerToken:  cfg.Twitter.BearerToken,
			BaseURL:      cfg.Twitter.BaseURL,
			TrendsURL:    cfg.Twitter.TrendsURL,
			SearchWindow: cfg.Twitter.SearchWindow,
		}),
		Instagram: sources.NewInstagramSource(sources.InstagramOptions{
			AccessToken: cfg.Instagram.AccessToken,
			BaseURL:     cfg.Instagram.BaseURL,
		}),
	}

	classifier := NewClassifier(cfg)
	platforms := []struct {
		source sources.Source
		opts   ingest.Options
	}{
		{a.Twitter, ingest.Options{
			Platform:    models.PlatformTwitter,
			APIEndpoint: "https://api.twitter.com/2/",
			RateLimit:   cfg.Twitter.RateLimit,
			Units:       cfg.Twitter.Keywords,
			Limit:       ingest.FairShare(cfg.Twitter.MaxResults, len(cfg.Twitter.Keywords)),
			Pause:       cfg.Twitter.Pause,
			Credibility: cfg.Twitter.Credibility,
			Threshold:   cfg.DisasterThreshold,
		}},
		{a.Instagram, ingest.Options{
			Platform:    models.PlatformInstagram,
			APIEndpoint: "https://graph.instagram.com/",
			RateLimit:   cfg.Instagram.RateLimit,
			Units:       cfg.Instagram.Accounts,
			Limit:       cfg.Instagram.MediaLimit,
			Pause:       cfg.Instagram.Pause,
			Credibility: cfg.Instagram.Credibility,
			Threshold:   cfg.DisasterThreshold,
		}},
	}
	for _, p := range platforms {
		in, err := ingest.NewIngestor(ctx, db, p.source, classifier, a.Usage, p.opts)
		if err != nil {
			closeDB(db)
			return nil, err
		}
		if !p.source.IsEnabled() {
			logrus.WithField("platform", p.opts.Platform).Warn("Platform credentials missing, ingestion disabled")
		}
		a.Ingestors = append(a.Ingestors, in)
	}

	if err := a.openArchive(ctx); err != nil {
		closeDB(db)
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	a.Ingest = ingest.NewService(a.Ingestors, a.Archive, notifications.NewService(cfg), cfg.AlertThreshold)
	return a, nil
}

// openArchive prefers Azure Blob Storage and falls back to a local
// directory. Neither configured leaves Archive nil.
func (a *App) openArchive(ctx context.Context) error {
	switch {
	case a.Config.StorageAccount != "":
		archive, err := storage.NewAzureArchive(ctx, a.Config.StorageAccount, a.Config.StorageContainer)
		if err != nil {
			return err
		}
		a.Archive = archive
	case a.Config.ArchiveDir != "":
		archive, err := storage.NewFileArchive(a.Config.ArchiveDir)
		if err != nil {
			return err
		}
		a.Archive = archive
	}
	return nil
}

// NewClassifier uses the HTTP pipeline when CLASSIFIER_URL is set and
// the keyword pipeline otherwise.
func NewClassifier(cfg *config.Config) *classify.Adapter {
	if cfg.ClassifierURL != "" {
		logrus.Infof("Using classification pipeline at %s", cfg.ClassifierURL)
		return classify.NewAdapter(classify.NewHTTPPipeline(cfg.ClassifierURL, cfg.ClassifierTimeout))
	}
	logrus.Info("No CLASSIFIER_URL set, using keyword classification")
	return classify.NewAdapter(classify.KeywordPipeline{})
}

// Observer returns the usage observer of a platform by source name.
func (a *App) Observer(name string) sources.Observer {
	for _, in := range a.Ingestors {
		if strings.EqualFold(in.Name(), name) {
			return a.Usage.For(in.Platform().ID)
		}
	}
	return sources.NopObserver{}
}

// Close releases the database.
func (a *App) Close() {
	closeDB(a.DB)
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logrus.Warnf("Failed to close database: %v", err)
		}
	}
}
