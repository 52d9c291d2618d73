package backend

import (
	"context"
	"fmt"

	"mmms/internal/cache"
	"mmms/internal/log"
	gsheet "mmms/internal/sheets/google"
	"mmms/internal/sheets/memory"
	"mmms/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case SheetsBackend:
		return f.createSheetsBackend(config)
	case MemoryBackend:
		return f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	store, err := storage.NewSQLiteStore(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Type:     SQLiteBackend,
		Provider: store,
		Ready:    store.Ping,
		Cleanup:  store.Close,
	}, nil
}

func (f *DefaultFactory) createSheetsBackend(config Config) (*BackendResult, error) {
	provider := gsheet.NewProvider(gsheet.Config{
		Timeout: config.GoogleAPITimeout,
		Logger:  f.logger,
	})

	f.logger.Info("Initialized Google Sheets backend", "timeout", config.GoogleAPITimeout.String())

	return &BackendResult{
		Type:     SheetsBackend,
		Provider: provider,
		Ready:    func(context.Context) error { return nil },
		Caches:   []cache.Cleaner{provider.Cache()},
	}, nil
}

func (f *DefaultFactory) createMemoryBackend() (*BackendResult, error) {
	f.logger.Warn("Initialized memory backend, data is lost on restart")

	return &BackendResult{
		Type:     MemoryBackend,
		Provider: memory.New(),
		Ready:    func(context.Context) error { return nil },
	}, nil
}
