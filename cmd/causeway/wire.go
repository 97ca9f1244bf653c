package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/narvanalabs/causeway/internal/brew"
	"github.com/narvanalabs/causeway/internal/importer"
	"github.com/narvanalabs/causeway/internal/integrations/koji"
	"github.com/narvanalabs/causeway/internal/integrations/pncrest"
	"github.com/narvanalabs/causeway/internal/pnc"
	"github.com/narvanalabs/causeway/internal/secrets"
	"github.com/narvanalabs/causeway/internal/store"
	"github.com/narvanalabs/causeway/internal/store/memory"
	pgstore "github.com/narvanalabs/causeway/internal/store/postgres"
	"github.com/narvanalabs/causeway/internal/translator"
	"github.com/narvanalabs/causeway/pkg/config"
	"github.com/narvanalabs/causeway/pkg/logger"
)

// app holds everything a command needs to talk to Brew and PNC.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	brew     *brew.Gateway
	pnc      *pnc.Gateway
	store    store.ImportStore
	importer *importer.Service
	download *http.Client
}

// loadConfig reads configuration and decrypts its secret values. Strict
// loading also requires the API settings.
func loadConfig(strict bool) (*config.Config, *logger.Logger, error) {
	var (
		cfg *config.Config
		err error
	)
	if strict {
		cfg, err = config.Load()
	} else {
		cfg, err = config.LoadWithDefaults()
		if err == nil {
			err = cfg.ValidateRemotes()
		}
	}
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}

	log := logger.New(logger.ParseLevel(cfg.LogLevel), cfg.LogJSON)

	resolver, err := secrets.NewResolver(cfg.AgeIdentity, log.WithComponent("secrets").Logger)
	if err != nil {
		return nil, nil, err
	}
	err = resolver.ResolveAll(map[string]*string{
		"KOJI_PASSWORD": &cfg.Koji.Password,
		"PNC_TOKEN":     &cfg.PNC.Token,
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// newApp connects the gateways, the store and the importer.
func newApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (*app, error) {
	kojiClient, err := koji.NewClient(&koji.Config{
		HubURL:          cfg.Koji.URL,
		ClientCert:      cfg.Koji.ClientCert,
		ClientKey:       cfg.Koji.ClientKey,
		CACert:          cfg.Koji.CACert,
		Username:        cfg.Koji.User,
		Password:        cfg.Koji.Password,
		Timeout:         cfg.Koji.Timeout,
		UploadChunkSize: cfg.Koji.UploadChunkSize,
	}, log.WithComponent("koji").Logger)
	if err != nil {
		return nil, fmt.Errorf("creating koji client: %w", err)
	}

	pncClient := pncrest.NewClient(&pncrest.Config{
		URL:      cfg.PNC.URL,
		Token:    cfg.PNC.Token,
		PageSize: cfg.PNC.PageSize,
		Timeout:  cfg.PNC.Timeout,
	}, log.WithComponent("pnc").Logger)

	a := &app{
		cfg:      cfg,
		log:      log,
		brew:     brew.NewGateway(kojiClient, brew.Config{WebURL: cfg.Koji.WebURL}, log.WithComponent("brew").Logger),
		pnc:      pnc.NewGateway(pncClient, log.WithComponent("pnc").Logger),
		download: &http.Client{Timeout: cfg.Koji.Timeout},
	}

	a.store, err = openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	tr := translator.New(translator.Config{PNCURL: cfg.PNC.URL}, a.download)
	a.importer = importer.NewService(a.brew, a.pnc, tr, a.store, log.WithComponent("importer").Logger)
	return a, nil
}

// openStore uses Postgres when a DSN is configured and memory otherwise.
func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (store.ImportStore, error) {
	if cfg.DatabaseDSN == "" {
		log.Warn("DATABASE_URL not set, import jobs are kept in memory")
		return memory.New(), nil
	}

	st, err := pgstore.NewPostgresStore(pgstore.DefaultConfig(cfg.DatabaseDSN), log.WithComponent("store").Logger)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return st, nil
}

func (a *app) Close() error {
	a.download.CloseIdleConnections()
	return a.store.Close()
}
