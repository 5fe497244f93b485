package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/quantfold/tradewire/client"
	"github.com/quantfold/tradewire/internal/config"
	"github.com/quantfold/tradewire/internal/util"
	"github.com/quantfold/tradewire/kvstore"
	bboltstore "github.com/quantfold/tradewire/kvstore/bbolt"
	memorystore "github.com/quantfold/tradewire/kvstore/memory"
	"github.com/quantfold/tradewire/kvstore/sealed"
	sqlitestore "github.com/quantfold/tradewire/kvstore/sqlite"
	"github.com/quantfold/tradewire/session"
)

// app wires config, storage, the session store and the API client together
// for one command invocation.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	sessions *session.Store
	client   *client.Client
	closer   func() error
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.Log.Level),
	}))

	store, closer, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	sessions := session.NewStore(store,
		session.WithPolicy(session.NewExpiryPolicy(cfg.Session.Window)),
		session.WithLogger(logger),
	)

	c := client.New(cfg.API.BaseURL, sessions,
		client.WithLogger(logger),
		client.WithUnauthorizedHandler(
			client.NewUnauthorizedHandler(sessions, terminalNotifier{}, nil,
				client.WithHandlerLogger(logger)),
		),
	)

	return &app{
		cfg:      cfg,
		logger:   logger,
		sessions: sessions,
		client:   c,
		closer:   closer,
	}, nil
}

func (a *app) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer()
}

func openStore(cfg *config.Config) (kvstore.Store, func() error, error) {
	var (
		store  kvstore.Store
		closer func() error
	)
	switch cfg.Storage.Backend {
	case config.StoreMemory:
		store = memorystore.New()
	case config.StoreBBolt:
		s, err := bboltstore.NewFromFile(cfg.Storage.Path, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("opening session storage: %w", err)
		}
		store, closer = s, s.Close
	case config.StoreSQLite:
		s, err := sqlitestore.NewFromFile(cfg.Storage.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening session storage: %w", err)
		}
		store, closer = s, s.Close
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	if cfg.Storage.Passphrase != "" {
		salt, err := loadOrCreateSalt(cfg.Storage.Path + ".salt")
		if err != nil {
			return nil, nil, err
		}
		sealedStore, err := sealed.New(store, cfg.Storage.Passphrase, salt)
		if err != nil {
			return nil, nil, fmt.Errorf("sealing session storage: %w", err)
		}
		store = sealedStore
	}
	return store, closer, nil
}

// loadOrCreateSalt keeps the argon2id salt next to the database so the same
// passphrase derives the same sealing key across runs.
func loadOrCreateSalt(path string) ([]byte, error) {
	salt, err := os.ReadFile(path)
	if err == nil && len(salt) > 0 {
		return salt, nil
	}
	salt, err = util.RandomBytes(16)
	if err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	if err := os.WriteFile(path, salt, 0o600); err != nil {
		return nil, fmt.Errorf("writing salt file: %w", err)
	}
	return salt, nil
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
