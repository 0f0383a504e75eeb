package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeberg.org/mutker/torquectl/internal/errors"
	"codeberg.org/mutker/torquectl/internal/logger"
	"codeberg.org/mutker/torquectl/internal/profile"
	"codeberg.org/mutker/torquectl/internal/session"
	_ "github.com/mattn/go-sqlite3"
	"github.com/tidwall/gjson"
)

// Repository is the SQLite-backed profile store, readings sink and summary
// recorder. Readings are buffered and written in batches.
type Repository struct {
	db            *sql.DB
	logger        logger.Logger
	cfg           Config
	mu            sync.Mutex
	buffer        []session.Reading
	flushTicker   *time.Ticker
	shutdownChan  chan struct{}
	flushDoneChan chan struct{}
	closeOnce     sync.Once
}

// Open opens or creates the database at cfg.DBPath and brings its schema up
// to date.
func Open(cfg Config, log logger.Logger) (*Repository, error) {
	errFactory := errors.New()

	if log == nil {
		log = logger.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  cfg.DBPath,
			Error: err.Error(),
		})
	}

	dsn := cfg.DBPath + "?_journal=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "open_database",
			Error: err.Error(),
		})
	}

	if err := ValidateAndUpdateSchema(db, cfg.backupDir(), log); err != nil {
		db.Close()
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "schema_version",
			Error: err.Error(),
		})
	}

	log.Debug().
		Str("path", cfg.DBPath).
		Int("schema_version", SchemaVersion).
		Int("batch_size", cfg.BatchSize).
		Int("batch_timeout", cfg.BatchTimeout).
		Msg("Repository initialized")

	repo := &Repository{
		db:            db,
		logger:        log,
		cfg:           cfg,
		buffer:        make([]session.Reading, 0, cfg.BatchSize),
		shutdownChan:  make(chan struct{}),
		flushDoneChan: make(chan struct{}),
	}

	if cfg.BatchSize > 0 && cfg.BatchTimeout > 0 {
		repo.flushTicker = time.NewTicker(time.Duration(cfg.BatchTimeout) * time.Second)
		go repo.flusher()
	} else {
		close(repo.flushDoneChan)
	}

	return repo, nil
}

// ListProfiles returns all profiles in storage order.
func (r *Repository) ListProfiles(ctx context.Context) ([]profile.Profile, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT id, max_torque, unit, type, applied_torq, allowance1, allowance2, allowance3
        FROM profiles
        ORDER BY rowid`)
	if err != nil {
		return nil, errors.New().Wrap(ErrStorageAccess, err)
	}
	defer rows.Close()

	var profiles []profile.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, errors.New().Wrap(ErrStorageAccess, err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New().Wrap(ErrStorageAccess, err)
	}

	return profiles, nil
}

// GetProfile returns the first profile stored with id.
func (r *Repository) GetProfile(ctx context.Context, id int64) (profile.Profile, error) {
	row := r.db.QueryRowContext(ctx, `
        SELECT id, max_torque, unit, type, applied_torq, allowance1, allowance2, allowance3
        FROM profiles
        WHERE id = ?
        ORDER BY rowid
        LIMIT 1`, id)

	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return profile.Profile{}, errors.New().WithData(ErrProfileNotFound, id)
	}
	if err != nil {
		return profile.Profile{}, errors.New().Wrap(ErrStorageAccess, err)
	}

	return p, nil
}

// AddProfile stores p under the next free id and returns it. p.ID is ignored.
func (r *Repository) AddProfile(ctx context.Context, p profile.Profile) (int64, error) {
	errFactory := errors.New()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errFactory.Wrap(ErrTransactionFailed, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var id int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) + 1 FROM profiles`).Scan(&id); err != nil {
		return 0, errFactory.Wrap(ErrStorageAccess, err)
	}

	args := append([]any{id}, profileColumns(p)...)
	if _, err := tx.ExecContext(ctx, `
        INSERT INTO profiles (id, max_torque, unit, type, applied_torq, allowance1, allowance2, allowance3)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, args...); err != nil {
		return 0, errFactory.Wrap(ErrStorageAccess, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, errFactory.Wrap(ErrTransactionFailed, err)
	}

	r.logger.Debug().Int64("id", id).Str("profile", p.String()).Msg("Profile added")

	return id, nil
}

// UpdateProfile overwrites every profile stored with p.ID.
func (r *Repository) UpdateProfile(ctx context.Context, p profile.Profile) error {
	args := append(profileColumns(p), p.ID)
	res, err := r.db.ExecContext(ctx, `
        UPDATE profiles
        SET max_torque = ?, unit = ?, type = ?, applied_torq = ?,
            allowance1 = ?, allowance2 = ?, allowance3 = ?
        WHERE id = ?`, args...)
	if err != nil {
		return errors.New().Wrap(ErrStorageAccess, err)
	}

	return requireAffected(res, p.ID)
}

// DeleteProfile removes every profile stored with id.
func (r *Repository) DeleteProfile(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM profiles WHERE id = ?`, id)
	if err != nil {
		return errors.New().Wrap(ErrStorageAccess, err)
	}

	return requireAffected(res, id)
}

func requireAffected(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.New().Wrap(ErrStorageAccess, err)
	}
	if n == 0 {
		return errors.New().WithData(ErrProfileNotFound, id)
	}

	return nil
}

// SeedDefaults stores the sample profiles when the store is empty and
// reports whether it did.
func (r *Repository) SeedDefaults(ctx context.Context) (bool, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&count); err != nil {
		return false, errors.New().Wrap(ErrStorageAccess, err)
	}
	if count > 0 {
		return false, nil
	}

	for _, p := range DefaultProfiles() {
		if _, err := r.AddProfile(ctx, p); err != nil {
			return false, err
		}
	}

	r.logger.Info().Int("profiles", len(DefaultProfiles())).Msg("Seeded default profiles")

	return true, nil
}

// DefaultProfiles are the sample profiles of a fresh installation.
func DefaultProfiles() []profile.Profile {
	return []profile.Profile{
		{
			MaxTorque: 100, Unit: "Nm", Category: "Wrench",
			Bands: [profile.BandCount]profile.Band{
				{Target: 95, Low: 90, High: 100},
				{Target: 65, Low: 60, High: 70},
				{Target: 40, Low: 36, High: 44},
			},
		},
		{
			MaxTorque: 200, Unit: "Nm", Category: "Torque Multiplier",
			Bands: [profile.BandCount]profile.Band{
				{Target: 60, Low: 57.6, High: 62.4},
				{Target: 40, Low: 38.4, High: 41.6},
				{Target: 20, Low: 19.2, High: 20.8},
			},
		},
	}
}

// RecordReading buffers r for the next flush. Write failures are logged and
// never returned to the acquisition loop.
func (r *Repository) RecordReading(reading session.Reading) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buffer = append(r.buffer, reading)
	if len(r.buffer) >= r.cfg.BatchSize {
		if err := r.flush(); err != nil {
			r.logger.Error().Err(err).Msg("Failed to persist readings")
		}
	}
}

// Flush writes buffered readings now.
func (r *Repository) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flush()
}

// Readings returns the persisted readings of a session in arrival order.
func (r *Repository) Readings(ctx context.Context, sessionID string) ([]session.Reading, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT torque_value, profile_id, band_label, range_str, session_id, recorded_at
        FROM readings
        WHERE session_id = ?
        ORDER BY id`, sessionID)
	if err != nil {
		return nil, errors.New().Wrap(ErrStorageAccess, err)
	}
	defer rows.Close()

	var out []session.Reading
	for rows.Next() {
		var (
			rd session.Reading
			at int64
		)
		if err := rows.Scan(&rd.Value, &rd.ProfileID, &rd.BandLabel, &rd.Range, &rd.SessionID, &at); err != nil {
			return nil, errors.New().Wrap(ErrStorageAccess, err)
		}
		rd.At = time.UnixMilli(at)
		out = append(out, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New().Wrap(ErrStorageAccess, err)
	}

	return out, nil
}

// RecordSummary stores one row per band for a finished session.
func (r *Repository) RecordSummary(
	ctx context.Context, sessionID string, profileID int64, rows []session.SummaryRow,
) error {
	errFactory := errors.New()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	now := time.Now().UnixMilli()
	for _, row := range rows {
		tests := row.Tests
		if tests == nil {
			tests = []float64{}
		}
		results, err := json.Marshal(tests)
		if err != nil {
			return errFactory.Wrap(ErrStorageAccess, err)
		}
		if _, err := tx.ExecContext(ctx, `
            INSERT INTO summaries (session_id, profile_id, range_str, test_results, created_at)
            VALUES (?, ?, ?, ?, ?)`,
			sessionID, profileID, row.Range, string(results), now); err != nil {
			return errFactory.Wrap(ErrStorageAccess, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	return nil
}

// SummaryResults returns the stored test values per range string for a session.
func (r *Repository) SummaryResults(ctx context.Context, sessionID string) (map[string][]float64, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT range_str, test_results FROM summaries WHERE session_id = ?`, sessionID)
	if err != nil {
		return nil, errors.New().Wrap(ErrStorageAccess, err)
	}
	defer rows.Close()

	out := make(map[string][]float64)
	for rows.Next() {
		var rangeStr, results string
		if err := rows.Scan(&rangeStr, &results); err != nil {
			return nil, errors.New().Wrap(ErrStorageAccess, err)
		}
		values := []float64{}
		for _, v := range gjson.Parse(results).Array() {
			values = append(values, v.Float())
		}
		out[rangeStr] = values
	}

	return out, rows.Err()
}

// Close flushes pending readings and closes the database.
func (r *Repository) Close() error {
	var closeErr error

	r.closeOnce.Do(func() {
		close(r.shutdownChan)
		if r.flushTicker != nil {
			r.flushTicker.Stop()
		}
		<-r.flushDoneChan

		r.mu.Lock()
		if err := r.flush(); err != nil {
			r.logger.Error().Err(err).Msg("Failed to persist readings on close")
		}
		r.mu.Unlock()

		if _, err := r.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			r.logger.Debug().Err(err).Msg("Failed to checkpoint WAL")
		}

		if err := r.db.Close(); err != nil {
			closeErr = errors.New().WithData(ErrStorageClose, struct {
				Phase string
				Error string
			}{
				Phase: "close_database",
				Error: err.Error(),
			})
			return
		}

		r.logger.Debug().Msg("Repository closed")
	})

	return closeErr
}

func (r *Repository) flusher() {
	defer close(r.flushDoneChan)

	for {
		select {
		case <-r.flushTicker.C:
			r.mu.Lock()
			if err := r.flush(); err != nil {
				r.logger.Error().Err(err).Msg("Failed to persist readings")
			}
			r.mu.Unlock()
		case <-r.shutdownChan:
			return
		}
	}
}

func (r *Repository) flush() error {
	if len(r.buffer) == 0 {
		return nil
	}

	errFactory := errors.New()

	tx, err := r.db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	stmt, err := tx.Prepare(insertReadingSQL)
	if err != nil {
		if err := tx.Rollback(); err != nil {
			r.logger.Error().Err(err).Msg("Failed to roll back transaction")
		}
		return errFactory.Wrap(ErrTransactionFailed, err)
	}
	defer stmt.Close()

	for _, rd := range r.buffer {
		if _, err := stmt.Exec(
			rd.Value,
			rd.ProfileID,
			rd.BandLabel,
			rd.Range,
			rd.SessionID,
			rd.At.UnixMilli(),
		); err != nil {
			if err := tx.Rollback(); err != nil {
				r.logger.Error().Err(err).Msg("Failed to roll back transaction")
			}
			return errFactory.Wrap(ErrTransactionFailed, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	r.logger.Debug().Int("records", len(r.buffer)).Msg("Flushed readings to database")
	r.buffer = r.buffer[:0]

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (profile.Profile, error) {
	var (
		p          profile.Profile
		unit, kind sql.NullString
		applied    sql.NullString
		maxTorque  sql.NullFloat64
		id         sql.NullInt64
		allowances [profile.BandCount]sql.NullString
	)

	if err := row.Scan(&id, &maxTorque, &unit, &kind, &applied,
		&allowances[0], &allowances[1], &allowances[2]); err != nil {
		return profile.Profile{}, err
	}

	p.ID = id.Int64
	p.MaxTorque = maxTorque.Float64
	p.Unit = unit.String
	p.Category = kind.String

	targets := decodeTargets(applied.String)
	for i := range p.Bands {
		p.Bands[i].Target = targets[i]
		low, high, ok := profile.ParseRange(allowances[i].String)
		if !ok {
			// a malformed range never fits a reading
			low, high = math.NaN(), math.NaN()
		}
		p.Bands[i].Low = low
		p.Bands[i].High = high
	}

	return p, nil
}

// decodeTargets reads the applied-torque JSON array leniently: malformed
// input and missing entries read as 0.
func decodeTargets(s string) [profile.BandCount]float64 {
	var targets [profile.BandCount]float64
	if !gjson.Valid(s) {
		return targets
	}

	arr := gjson.Parse(s).Array()
	for i := 0; i < len(targets) && i < len(arr); i++ {
		targets[i] = arr[i].Float()
	}

	return targets
}

func encodeTargets(p profile.Profile) string {
	targets := p.Targets()
	b, err := json.Marshal(targets[:])
	if err != nil {
		return "[]"
	}

	return string(b)
}

func profileColumns(p profile.Profile) []any {
	return []any{
		p.MaxTorque,
		p.Unit,
		p.Category,
		encodeTargets(p),
		p.Bands[0].Range(),
		p.Bands[1].Range(),
		p.Bands[2].Range(),
	}
}
