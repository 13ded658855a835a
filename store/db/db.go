package db

import (
	"github.com/pkg/errors"

	"github.com/hrygo/carenotes/internal/profile"
	"github.com/hrygo/carenotes/store"
	"github.com/hrygo/carenotes/store/db/postgres"
	"github.com/hrygo/carenotes/store/db/sqlite"
)

// NewDBDriver creates new db driver based on profile.
//
// PostgreSQL is the production database; SQLite covers development and
// testing (the driver is pure Go, so tests need no external service).
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	default:
		return nil, errors.New("unknown db driver: only 'postgres' and 'sqlite' are supported")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
