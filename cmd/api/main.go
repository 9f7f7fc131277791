package main

import (
	"context"
	"net/http"
	"os"

	"github.com/hondanabooks/hondana/pkg/config"
	"github.com/hondanabooks/hondana/pkg/covercache"
	"github.com/hondanabooks/hondana/pkg/database"
	"github.com/hondanabooks/hondana/pkg/enrich"
	"github.com/hondanabooks/hondana/pkg/enricher"
	"github.com/hondanabooks/hondana/pkg/fetch"
	"github.com/hondanabooks/hondana/pkg/migrations"
	"github.com/hondanabooks/hondana/pkg/server"
	"github.com/hondanabooks/hondana/pkg/sources"
	"github.com/hondanabooks/hondana/pkg/version"
	"github.com/hondanabooks/hondana/pkg/worker"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/signals"
)

func main() {
	ctx := context.Background()
	log := logger.New()

	log.Info("starting hondana", logger.Data{"version": version.Version})

	cfg, err := config.New()
	if err != nil {
		log.Err(err).Fatal("config error")
	}

	if err := os.MkdirAll(cfg.BackupDirectory, 0o755); err != nil {
		log.Err(err).Fatal("backup directory error")
	}

	db, err := database.New(cfg)
	if err != nil {
		log.Err(err).Fatal("database error")
	}

	group, err := migrations.BringUpToDate(ctx, db)
	if err != nil {
		log.Err(err).Fatal("migrations error")
	}
	if group.ID == 0 {
		log.Info("no new migrations to run")
	} else {
		log.Info("migrated to new group", logger.Data{"group_id": group.ID, "migration_names": group.Migrations.String()})
	}

	policy := fetch.DefaultPolicy()
	policy.MaxAttempts = cfg.FetchMaxAttempts
	policy.BaseDelay = cfg.FetchBaseDelay
	policy.MaxDelay = cfg.FetchMaxDelay
	policy.Timeout = cfg.FetchTimeout
	client := fetch.New(policy)

	covers, err := covercache.New(cfg.CoverCacheDirectory, client)
	if err != nil {
		log.Err(err).Fatal("cover cache error")
	}

	aggregator := enrich.NewAggregator(
		sources.NewOpenLibrary(cfg.OpenLibraryURL, client),
		sources.NewGoogleBooks(cfg.GoogleBooksURL, client),
		sources.NewWikipedia(cfg.WikipediaURL, client),
		covers,
	)
	enrichService := enricher.NewService(cfg, db, aggregator, covers)

	wrkr := worker.New(cfg, db, enrichService)

	srv, err := server.New(cfg, db, enrichService)
	if err != nil {
		log.Err(err).Fatal("server error")
	}

	graceful := signals.Setup()

	go func() {
		log.Info("server started", logger.Data{"addr": srv.Addr})
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Err(err).Fatal("server stopped")
		}
		log.Info("server stopped")
	}()

	wrkr.Start()
	log.Info("worker started")

	<-graceful
	log.Info("starting graceful shutdown")

	err = srv.Shutdown(ctx)
	if err != nil {
		log.Err(err).Error("server shutdown error")
	}
	log.Info("server shutdown")

	wrkr.Shutdown()
	log.Info("worker shutdown")

	err = db.Close()
	if err != nil {
		log.Err(err).Error("database close error")
	}
	log.Info("database closed")
}
