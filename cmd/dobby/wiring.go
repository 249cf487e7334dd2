package main

import (
	"fmt"
	"io"
	"time"

	"github.com/alekspetrov/dobby/internal/adapters/feishu"
	"github.com/alekspetrov/dobby/internal/config"
	"github.com/alekspetrov/dobby/internal/entity"
	"github.com/alekspetrov/dobby/internal/intent"
	"github.com/alekspetrov/dobby/internal/logging"
	"github.com/alekspetrov/dobby/internal/taskstore"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// initCLILogging sends logs to stderr so command output stays clean.
func initCLILogging(cfg *config.Config) (func(), error) {
	lc := logging.DefaultConfig()
	if cfg.Logging != nil {
		copied := *cfg.Logging
		lc = &copied
	}
	if lc.Output == "" || lc.Output == "stdout" {
		lc.Output = "stderr"
	}
	closer, err := logging.Init(lc)
	if err != nil {
		return nil, fmt.Errorf("initializing logging: %w", err)
	}
	return func() { _ = closer.Close() }, nil
}

// dateParser returns the parser for the configured timezone, falling back
// to local time when none is set.
func dateParser(cfg *config.Config) (*entity.DateParser, error) {
	if cfg.Dispatch == nil || cfg.Dispatch.Timezone == "" {
		return entity.NewDateParser(time.Local), nil
	}
	loc, err := time.LoadLocation(cfg.Dispatch.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone: %w", err)
	}
	return entity.NewDateParser(loc), nil
}

// openRecordStore opens the configured backend. The returned closer
// releases it.
func openRecordStore(cfg *config.Config, client *feishu.Client) (taskstore.RecordStore, io.Closer, error) {
	store := cfg.Store
	if store == nil {
		store = &taskstore.Config{Backend: taskstore.BackendBitable}
	}

	switch store.Backend {
	case taskstore.BackendSQLite:
		s, err := taskstore.NewSQLiteStore(store.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case taskstore.BackendBitable, "":
		return feishu.NewBitableStore(client, cfg.Bitable), nopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", store.Backend)
	}
}

// newAdapter builds the task store adapter. The LLM serves as matcher
// only when it is configured.
func newAdapter(records taskstore.RecordStore, llm *intent.LLMClient) *taskstore.Adapter {
	var matcher taskstore.Matcher
	if llm.Enabled() {
		matcher = llm
	}
	return taskstore.NewAdapter(records, matcher)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
