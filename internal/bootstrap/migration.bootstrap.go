package bootstrap

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/guregu/null/v6"
	"github.com/krobus00/meta-exchange/internal/config"
	"github.com/krobus00/meta-exchange/internal/util"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const migrationRootDir = "migration/postgresql"

var errInvalidMigrationAction = errors.New("invalid migration action")

type migrationRequest struct {
	dir     string
	action  string
	name    string
	version int64
}

// StartMigrate runs goose against the migrations of one configured database,
// e.g. market_data for order book snapshots and transaction results.
func StartMigrate(cmd *cobra.Command, args []string) {
	databaseName, _ := cmd.Flags().GetString("databaseName")
	actionType, _ := cmd.Flags().GetString("action")
	migrationName, _ := cmd.Flags().GetString("name")
	version, _ := cmd.Flags().GetInt64("version")

	dbConfig, ok := config.Env.Database[databaseName]
	if !ok || dbConfig.DSN == "" {
		util.ContinueOrFatal(fmt.Errorf("database %q is not configured", databaseName))
	}

	db, err := sql.Open("postgres", dbConfig.DSN)
	util.ContinueOrFatal(err)
	defer db.Close()

	err = goose.SetDialect("postgres")
	util.ContinueOrFatal(err)

	req := migrationRequest{
		dir:     filepath.Join(migrationRootDir, databaseName),
		action:  actionType,
		name:    migrationName,
		version: version,
	}

	logger := logrus.WithFields(logrus.Fields{
		"database": databaseName,
		"action":   actionType,
		"dir":      req.dir,
	})
	logger.Info("running migration")

	util.ContinueOrFatal(runMigration(db, req))

	logger.Info("migration finished")
}

func runMigration(db *sql.DB, req migrationRequest) error {
	switch req.action {
	case "create":
		if req.name == "" {
			return errors.New("migration name is required")
		}
		return goose.Create(db, req.dir, req.name, "sql")
	case "up":
		return goose.Up(db, req.dir, goose.WithAllowMissing())
	case "up-by-one":
		return goose.UpByOne(db, req.dir, goose.WithAllowMissing())
	case "up-to":
		return goose.UpTo(db, req.dir, null.IntFrom(req.version).Int64, goose.WithAllowMissing())
	case "down":
		return goose.Down(db, req.dir, goose.WithAllowMissing())
	case "down-to":
		return goose.DownTo(db, req.dir, null.IntFrom(req.version).Int64, goose.WithAllowMissing())
	case "status":
		return goose.Status(db, req.dir)
	case "reset":
		if err := goose.Reset(db, req.dir, goose.WithAllowMissing()); err != nil {
			return err
		}
		return goose.Up(db, req.dir, goose.WithAllowMissing())
	default:
		return fmt.Errorf("%w: %q", errInvalidMigrationAction, req.action)
	}
}
