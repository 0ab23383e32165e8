package persistence

import (
	"fmt"
	"sync"

	"gorm.io/gorm"
)

// DialectorOpener is an alias for a function that returns a gorm.Dialector for a given DSN.
type DialectorOpener = func(string) gorm.Dialector

var (
	registryMu sync.RWMutex
	providers  = make(map[string]DialectorOpener)
)

// Register adds a new database provider to the registry.
func Register(name string, opener DialectorOpener) {
	registryMu.Lock()
	defer registryMu.Unlock()
	providers[name] = opener
}

// OpenRepository opens a repository on the registered provider and runs the
// schema migration unless skipMigrate is set.
func OpenRepository(name string, dsn string, cfg *gorm.Config, skipMigrate bool) (*Repository, error) {
	registryMu.RLock()
	opener, ok := providers[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("persistence: unknown database provider %q", name)
	}

	if cfg == nil {
		cfg = &gorm.Config{}
	}

	db, err := gorm.Open(opener(dsn), cfg)
	if err != nil {
		return nil, err
	}

	repo := NewRepository(db)
	if !skipMigrate {
		if err := repo.AutoMigrate(); err != nil {
			return nil, err
		}
	}

	return repo, nil
}
