package kvstore

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cuemby/milli-core/pkg/apperr"
	"github.com/cuemby/milli-core/pkg/log"
	"github.com/rs/zerolog"
	bolt "go.etcd.io/bbolt"
)

// dataFileName is bbolt's single-file analogue of the spec's data.mdb; bbolt
// has no separate lock.mdb, its freelist and lock live in the same file.
const dataFileName = "data.db"

// EnvConfig configures the memory-mapped environment.
type EnvConfig struct {
	// Dir is the index directory containing data.db, VERSION and
	// instance-uid.
	Dir string

	// MapSizeBytes caps the environment's memory map. bbolt grows the
	// file as needed and has no hard map-size ceiling the way LMDB/MDBX
	// does, so this is enforced in software by Environment.Update,
	// which refuses a write transaction once the file would exceed the
	// cap (§7 Resource error "map size exceeded").
	MapSizeBytes int64

	// ReadOnly opens the environment without ever taking a write lock.
	ReadOnly bool

	// OpenTimeout bounds how long Open waits for a write transaction
	// already in progress in another process to release the flock.
	OpenTimeout time.Duration
}

// DefaultMapSize is the default cap (§6: "Map size is a caller-supplied cap
// (default 100 GiB)").
const DefaultMapSize int64 = 100 << 30

func (c EnvConfig) withDefaults() EnvConfig {
	if c.MapSizeBytes <= 0 {
		c.MapSizeBytes = DefaultMapSize
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = 5 * time.Second
	}
	return c
}

// Environment is the process-wide memory-mapped transactional key-value
// store (§2, §3.1, §5). Any number of Index handles (pkg/indexcore) may
// share one Environment; bbolt enforces at most one write transaction
// system-wide and any number of concurrent consistent-snapshot readers.
type Environment struct {
	db     *bolt.DB
	cfg    EnvConfig
	logger zerolog.Logger
}

func Open(cfg EnvConfig) (*Environment, error) {
	cfg = cfg.withDefaults()
	if cfg.Dir == "" {
		return nil, apperr.Validation("environment directory must be set")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, apperr.Internal(err, "create environment directory %q", cfg.Dir)
	}

	path := filepath.Join(cfg.Dir, dataFileName)
	_, statErr := os.Stat(path)
	dataFileExists := statErr == nil

	if err := checkVersion(cfg.Dir, dataFileExists); err != nil {
		return nil, err
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{
		ReadOnly: cfg.ReadOnly,
		Timeout:  cfg.OpenTimeout,
	})
	if err != nil {
		return nil, apperr.Internal(err, "open environment %q", path)
	}

	env := &Environment{db: db, cfg: cfg, logger: log.WithComponent("kvstore")}
	env.logger.Info().Str("dir", cfg.Dir).Msg("environment opened")
	return env, nil
}

// Close releases the memory map. Any in-flight read transactions must have
// already finished; bbolt blocks Close until they have.
func (e *Environment) Close() error {
	if err := e.db.Close(); err != nil {
		return apperr.Internal(err, "close environment")
	}
	return nil
}

// Update runs fn inside the single system-wide write transaction. Only one
// Update call across the whole process (and, via bbolt's flock, across
// processes on the same file) runs at a time; callers queue.
func (e *Environment) Update(fn func(tx *bolt.Tx) error) error {
	if e.cfg.ReadOnly {
		return apperr.Validation("environment %q is read-only", e.cfg.Dir)
	}
	if fi, err := os.Stat(filepath.Join(e.cfg.Dir, dataFileName)); err == nil {
		if fi.Size() >= e.cfg.MapSizeBytes {
			return apperr.Resource("map size %d bytes exceeded", e.cfg.MapSizeBytes)
		}
	}
	return e.db.Update(fn)
}

// View runs fn against a consistent read-only snapshot taken at the moment
// View is called. It never blocks on a concurrent or pending write.
func (e *Environment) View(fn func(tx *bolt.Tx) error) error {
	return e.db.View(fn)
}

// Path returns the on-disk data file path.
func (e *Environment) Path() string {
	return filepath.Join(e.cfg.Dir, dataFileName)
}

func (e *Environment) fmtStats() string {
	s := e.db.Stats()
	return fmt.Sprintf("tx=%d open_tx=%d free_page_n=%d", s.TxN, s.OpenTxN, s.FreePageN)
}

// Stats returns a human-readable snapshot of bbolt's internal counters,
// useful for the metrics collector.
func (e *Environment) Stats() string { return e.fmtStats() }
