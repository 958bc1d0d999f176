package metadata

import (
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/forester-vcs/forester/internal/foresterr"
)

// Index is the single transactional store described by spec §4.2, grounded
// in the teacher's database.DB but opened against a local SQLite file with
// write-ahead logging instead of a shared Postgres server (spec §5: "the
// metadata index is opened with write-ahead logging enabled").
type Index struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

// Open connects to (and, if necessary, creates and migrates) the SQLite
// database file at path.
func Open(path string, log *zap.SugaredLogger) (*Index, error) {
	gormLogger := logger.New(
		zapGormWriter{log: log},
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)

	db, err := gorm.Open(sqlite.Open(path+"?_journal_mode=WAL&_foreign_keys=on"), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, foresterr.Wrap(foresterr.IOError, err, "opening metadata index %s", path)
	}

	if err := db.AutoMigrate(allModels...); err != nil {
		return nil, foresterr.Wrap(foresterr.IOError, err, "migrating metadata index")
	}

	return &Index{db: db, log: log}, nil
}

// Close releases the underlying SQL connection.
func (idx *Index) Close() error {
	sqlDB, err := idx.db.DB()
	if err != nil {
		return foresterr.Wrap(foresterr.IOError, err, "unwrapping sql.DB")
	}
	return sqlDB.Close()
}

// Checkpoint forces a WAL checkpoint so subsequent connections observe the
// writes just committed — spec §4.2 calls this out explicitly as the fix
// for the source's stale-cache "switch branch looks like a no-op" bug.
func (idx *Index) Checkpoint() error {
	if err := idx.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)").Error; err != nil {
		return foresterr.Wrap(foresterr.IOError, err, "forcing WAL checkpoint")
	}
	return nil
}

// WithTx runs fn inside a single transaction, per spec §4.2's "every
// write-side operation is framed in one transaction".
func (idx *Index) WithTx(fn func(tx *gorm.DB) error) error {
	err := idx.db.Transaction(fn)
	if err != nil {
		return foresterr.Wrap(foresterr.IOError, err, "metadata transaction failed")
	}
	return nil
}

// DB exposes the underlying *gorm.DB for queries the Index methods do not
// cover; calls made through it get no transactional framing.
func (idx *Index) DB() *gorm.DB { return idx.db }

// zapGormWriter adapts GORM's logger.Writer interface to the zap sugared
// logger threaded through the rest of Forester, replacing the teacher's
// plain stdout logger.
type zapGormWriter struct {
	log *zap.SugaredLogger
}

func (w zapGormWriter) Printf(format string, args ...interface{}) {
	if w.log != nil {
		w.log.Debugf(format, args...)
	}
}
