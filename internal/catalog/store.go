package catalog

import (
	"context"
	"errors"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/appgrove/appgrove-server/internal/xerrors"
)

// Store wraps the catalog database. All methods translate driver errors
// into the error kinds the HTTP boundary maps to status codes.
type Store struct {
	db *gorm.DB
}

// Options configures Open.
type Options struct {
	// Driver is "sqlite" or "mysql".
	Driver string
	DSN    string
}

// Open connects, migrates the schema and returns the store. Duplicate
// key errors are translated by gorm so constraint violations surface as
// gorm.ErrDuplicatedKey regardless of driver.
func Open(opts Options) (*Store, error) {
	var dial gorm.Dialector
	switch opts.Driver {
	case "sqlite":
		dsn := opts.DSN
		// cascade constraints are inert on sqlite unless the pragma is set
		if !strings.Contains(dsn, "_foreign_keys") {
			if strings.Contains(dsn, "?") {
				dsn += "&_foreign_keys=on"
			} else {
				dsn += "?_foreign_keys=on"
			}
		}
		dial = sqlite.Open(dsn)
	case "mysql":
		dial = mysql.Open(opts.DSN)
	default:
		return nil, xerrors.Newf("unsupported database driver %q", opts.Driver)
	}

	gdb, err := gorm.Open(dial, &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Discard,
	})
	if err != nil {
		return nil, xerrors.Wrap(err, "open database")
	}

	if err := gdb.AutoMigrate(
		&User{},
		&Category{},
		&ContentItem{},
		&CommunityImage{},
		&ItemLike{},
		&ImageLike{},
		&ActivityRecord{},
		&AppSource{},
	); err != nil {
		return nil, xerrors.Wrap(err, "migrate schema")
	}

	return &Store{db: gdb}, nil
}

// Ping reports database reachability for the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// storeErr assigns a kind to a gorm error. notFound names the entity for
// the 404 message.
func storeErr(err error, notFound string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return xerrors.Ef(xerrors.KindNotFound, "%s not found", notFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return xerrors.WithKind(xerrors.WithStack(err), xerrors.KindConflict)
	default:
		return xerrors.WithKind(xerrors.WithStack(err), xerrors.KindStorage)
	}
}

// IsConflict reports whether err came from a uniqueness constraint.
func IsConflict(err error) bool { return xerrors.IsKind(err, xerrors.KindConflict) }
