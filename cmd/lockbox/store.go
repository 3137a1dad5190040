package main

import (
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/lockbox-sh/lockbox"
	"github.com/lockbox-sh/lockbox/audit"
	"github.com/lockbox-sh/lockbox/backend"
	"github.com/lockbox-sh/lockbox/internal/config"
)

var (
	configPath  string
	backendName string
)

// loadConfig reads the config file and applies the --backend override.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if backendName != "" {
		cfg.Backend = backendName
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// openStore builds the secret store the config describes: backend, optional
// audit decoration, and facade. The returned cleanup must run when the
// command is done.
func openStore() (*lockbox.Store, *config.Config, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}

	b, err := openBackend(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	var auditLogger *audit.Logger
	if cfg.AuditLog != "" {
		auditLogger, err = audit.NewLogger(cfg.AuditLog)
		if err != nil {
			b.Close()
			return nil, nil, nil, err
		}
		b = audit.Wrap(b, auditLogger, "cli")
	}

	opts := []lockbox.Option{lockbox.WithBackend(b)}
	if cfg.Accessible != "" {
		a, err := backend.ParseAccessible(cfg.Accessible)
		if err != nil {
			b.Close()
			return nil, nil, nil, err
		}
		opts = append(opts, lockbox.WithDefaultAccessible(a))
	}

	store, err := lockbox.New(opts...)
	if err != nil {
		b.Close()
		return nil, nil, nil, err
	}

	cleanup := func() {
		store.Close()
		if auditLogger != nil {
			auditLogger.Close()
		}
	}
	return store, cfg, cleanup, nil
}

func openBackend(cfg *config.Config) (backend.Backend, error) {
	switch cfg.Backend {
	case "", "system":
		return backend.NewSystem()
	case "keychain":
		if runtime.GOOS != "darwin" {
			return nil, fmt.Errorf("backend keychain requires macOS")
		}
		return backend.NewSystem()
	case "wincred":
		if runtime.GOOS != "windows" {
			return nil, fmt.Errorf("backend wincred requires Windows")
		}
		return backend.NewSystem()
	case "keyring":
		return backend.NewKeyring(dataPath(cfg, "keyring"))
	case "file":
		return backend.NewFile(dataPath(cfg, "secrets.enc"), cfg.Passphrase)
	case "sqlite":
		return backend.NewSQLite(dataPath(cfg, "secrets.db"))
	case "memory":
		return backend.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// dataPath places a backend's data under the configured data directory, or
// leaves the backend's own default when none is configured.
func dataPath(cfg *config.Config, name string) string {
	if cfg.DataDir == "" {
		return ""
	}
	return filepath.Join(cfg.DataDir, name)
}

// itemOptions turns the shared --access-group flag into facade options.
func itemOptions(accessGroup string, cfg *config.Config) []lockbox.ItemOption {
	group := accessGroup
	if group == "" && cfg != nil {
		group = cfg.AccessGroup
	}
	if group == "" {
		return nil
	}
	return []lockbox.ItemOption{lockbox.WithAccessGroup(group)}
}
