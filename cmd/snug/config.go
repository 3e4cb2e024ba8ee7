package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	snug "github.com/rickhohler/snug"
)

// config is the on-disk ~/.snug/config.yaml document. Every field is
// optional; SNUG_STORAGE always takes precedence.
type config struct {
	StorageRoot string `yaml:"storageRoot"`
}

func loadConfig() config {
	home, err := os.UserHomeDir()
	if err != nil {
		return config{}
	}
	data, err := os.ReadFile(filepath.Join(home, ".snug", "config.yaml"))
	if err != nil {
		return config{}
	}
	var c config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return config{}
	}
	return c
}

// resolveStorageRoot applies the precedence order: SNUG_STORAGE env var,
// then ~/.snug/config.yaml, then a sensible default.
func resolveStorageRoot() string {
	if v := os.Getenv("SNUG_STORAGE"); v != "" {
		return v
	}
	if c := loadConfig(); c.StorageRoot != "" {
		return c.StorageRoot
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".snug-store"
	}
	return filepath.Join(home, ".snug", "store")
}

func openStore() (snug.Store, error) {
	return snug.NewDiskStore(resolveStorageRoot())
}

// newRunLogger returns a logger tagged with a fresh per-invocation
// correlation id when verbose is set, matching distribution-distribution's
// internal/uuid request-id convention; otherwise logging is discarded.
func newRunLogger(verbose bool) *slog.Logger {
	if !verbose {
		return slog.New(slog.DiscardHandler)
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(handler).With("run_id", uuid.NewString())
}
