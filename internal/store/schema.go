package store

import (
	"database/sql"

	"codeberg.org/mutker/torquectl/internal/errors"
	"codeberg.org/mutker/torquectl/internal/logger"
)

const (
	SchemaVersion = 2

	// Tables carry no integrity constraints; profile ids are assigned by the
	// repository.
	createTablesSQL = `
	   CREATE TABLE IF NOT EXISTS schema_versions (
	       version     INTEGER PRIMARY KEY,
	       applied_at  TEXT NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS profiles (
	       id           INTEGER,
	       max_torque   REAL,
	       unit         TEXT,
	       type         TEXT,
	       applied_torq TEXT,
	       allowance1   TEXT,
	       allowance2   TEXT,
	       allowance3   TEXT
	   );
	   CREATE TABLE IF NOT EXISTS readings (
	       id           INTEGER PRIMARY KEY AUTOINCREMENT,
	       torque_value REAL,
	       profile_id   INTEGER,
	       band_label   TEXT,
	       range_str    TEXT,
	       session_id   TEXT,
	       recorded_at  INTEGER
	   );
	   CREATE TABLE IF NOT EXISTS summaries (
	       session_id   TEXT,
	       profile_id   INTEGER,
	       range_str    TEXT,
	       test_results TEXT,
	       created_at   INTEGER
	   );`

	insertReadingSQL = `
    INSERT INTO readings (
        torque_value, profile_id, band_label, range_str, session_id, recorded_at
    ) VALUES (?, ?, ?, ?, ?, ?)`
)

// migrations[v] upgrades a version v schema to v+1.
var migrations = map[int]string{
	1: `
	   ALTER TABLE readings ADD COLUMN session_id TEXT;
	   ALTER TABLE readings ADD COLUMN recorded_at INTEGER;
	   CREATE TABLE IF NOT EXISTS summaries (
	       session_id   TEXT,
	       profile_id   INTEGER,
	       range_str    TEXT,
	       test_results TEXT,
	       created_at   INTEGER
	   );`,
}

// InitSchema creates a new database schema with the current version
func InitSchema(db *sql.DB, log logger.Logger) error {
	errFactory := errors.New()

	log.Debug().Msg("Creating database...")

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				log.Debug().Err(err).Msg("Failed to rollback transaction")
			}
		}
	}()

	if _, err := tx.Exec(createTablesSQL); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Error string
			Phase string
		}{
			Error: err.Error(),
			Phase: "create_tables",
		})
	}

	if err := recordVersion(tx, SchemaVersion); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}
	committed = true

	log.Info().
		Int("version", SchemaVersion).
		Msg("Schema initialized successfully")

	return nil
}

func recordVersion(tx *sql.Tx, version int) error {
	if _, err := tx.Exec(`
        INSERT INTO schema_versions (version, applied_at)
        VALUES (?, datetime('now'))
    `, version); err != nil {
		return errors.New().WithData(ErrSchemaInitFailed, struct {
			Error   string
			Phase   string
			Version int
		}{
			Error:   err.Error(),
			Phase:   "record_version",
			Version: version,
		})
	}

	return nil
}

// GetSchemaVersion returns the current schema version, or 0 for a new database
func GetSchemaVersion(db *sql.DB) (int, error) {
	errFactory := errors.New()

	exists, err := TableExists(db, "schema_versions")
	if err != nil {
		return 0, errFactory.Wrap(ErrSchemaValidationFailed, err)
	}
	if !exists {
		return 0, nil
	}

	var version int
	err = db.QueryRow(`
        SELECT version
        FROM schema_versions
        ORDER BY version DESC
        LIMIT 1
    `).Scan(&version)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errFactory.WithData(ErrSchemaValidationFailed, struct {
			Phase string
			Error string
		}{
			Phase: "get_version",
			Error: err.Error(),
		})
	}

	return version, nil
}

// TableExists checks if a table exists
func TableExists(db *sql.DB, tableName string) (bool, error) {
	var exists bool
	err := db.QueryRow(`
        SELECT EXISTS (
            SELECT 1 FROM sqlite_master
            WHERE type='table' AND name=?
        )
    `, tableName).Scan(&exists)
	if err != nil {
		return false, errors.New().WithData(ErrSchemaValidationFailed, struct {
			Phase string
			Table string
			Error string
		}{
			Phase: "check_table_exists",
			Table: tableName,
			Error: err.Error(),
		})
	}

	return exists, nil
}
