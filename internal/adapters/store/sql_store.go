package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/mikey/llm-mail-sorter/internal/core"
	"go.uber.org/zap"
)

const emailColumns = `id, sender, subject, snippet, received_at, category, classified,
	source, rationale, rule_pattern, synced, size_estimate`

const ruleColumns = `id, pattern, category, confidence, hit_count, correction_count,
	created_at, last_hit_at`

// SQLStore keeps records and learned rules in a SQL database
type SQLStore struct {
	db      *sqlx.DB
	dialect dialect
	clock   core.Clock
	logger  *zap.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at path
func NewSQLiteStore(path string, clock core.Clock, logger *zap.Logger) (*SQLStore, error) {
	return newSQLStore(sqliteDialect, path, clock, logger)
}

// NewMySQLStore connects to MySQL. The DSN must set parseTime=true.
func NewMySQLStore(dsn string, clock core.Clock, logger *zap.Logger) (*SQLStore, error) {
	return newSQLStore(mysqlDialect, dsn, clock, logger)
}

// NewPostgresStore connects to PostgreSQL through pgx
func NewPostgresStore(dsn string, clock core.Clock, logger *zap.Logger) (*SQLStore, error) {
	return newSQLStore(postgresDialect, dsn, clock, logger)
}

func newSQLStore(d dialect, dsn string, clock core.Clock, logger *zap.Logger) (*SQLStore, error) {
	db, err := sqlx.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", d.name, err)
	}

	if d.name == sqliteDialect.name {
		// a second connection to :memory: would see an empty database
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", d.name, err)
	}

	for _, stmt := range d.schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	if clock == nil {
		clock = core.SystemClock{}
	}
	logger.Debug("Opened record store", zap.String("dialect", d.name))
	return &SQLStore{db: db, dialect: d, clock: clock, logger: logger}, nil
}

// Close closes the database
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// InsertRecords stores records whose id is not yet known
func (s *SQLStore) InsertRecords(ctx context.Context, records []core.EmailRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := s.dialect.insert("emails", emailColumns,
		`:id, :sender, :subject, :snippet, :received_at, :category, :classified,
		:source, :rationale, :rule_pattern, :synced, :size_estimate`, "id")

	inserted := 0
	for _, r := range records {
		r.Date = r.Date.UTC()
		if r.Source == "" {
			r.Source = core.SourceUnclassified
		}
		if r.Category == "" {
			r.Category = core.CategoryUnclassified
		}
		res, err := tx.NamedExecContext(ctx, query, r)
		if err != nil {
			return 0, fmt.Errorf("failed to insert record %s: %w", r.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit records: %w", err)
	}
	return inserted, nil
}

// GetRecord returns the record with the given id
func (s *SQLStore) GetRecord(ctx context.Context, id string) (*core.EmailRecord, error) {
	var r core.EmailRecord
	err := s.db.GetContext(ctx, &r, s.db.Rebind(`SELECT `+emailColumns+` FROM emails WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query record: %w", err)
	}
	return &r, nil
}

type senderCount struct {
	Sender string `db:"sender"`
	Count  int    `db:"cnt"`
}

type subjectRow struct {
	Subject string    `db:"subject"`
	Date    time.Time `db:"received_at"`
}

// AggregateSenders groups records by sender, most frequent first
func (s *SQLStore) AggregateSenders(ctx context.Context, limit, maxSubjects int) ([]core.SenderAggregate, error) {
	query := `SELECT sender, COUNT(*) AS cnt FROM emails WHERE sender <> '' GROUP BY sender ORDER BY cnt DESC, sender ASC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var counts []senderCount
	if err := s.db.SelectContext(ctx, &counts, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to count senders: %w", err)
	}

	recent := `SELECT subject, received_at FROM emails WHERE sender = ? ORDER BY received_at DESC`
	if maxSubjects > 0 {
		recent += fmt.Sprintf(` LIMIT %d`, maxSubjects)
	}
	recent = s.db.Rebind(recent)

	aggs := make([]core.SenderAggregate, 0, len(counts))
	for _, c := range counts {
		var rows []subjectRow
		if err := s.db.SelectContext(ctx, &rows, recent, c.Sender); err != nil {
			return nil, fmt.Errorf("failed to load subjects for %s: %w", c.Sender, err)
		}
		agg := core.SenderAggregate{Sender: c.Sender, Count: c.Count}
		for i, row := range rows {
			if i == 0 {
				agg.LastDate = row.Date.UTC()
			}
			agg.Subjects = append(agg.Subjects, row.Subject)
		}
		aggs = append(aggs, agg)
	}
	return aggs, nil
}

// RecentManual returns manually classified records, newest first
func (s *SQLStore) RecentManual(ctx context.Context, limit int) ([]core.EmailRecord, error) {
	query := `SELECT ` + emailColumns + ` FROM emails WHERE source IN (?, ?) ORDER BY received_at DESC`
	args := []any{string(core.SourceManual), string(core.SourceManualMigrated)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var out []core.EmailRecord
	if err := s.db.SelectContext(ctx, &out, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query manual records: %w", err)
	}
	return out, nil
}

// SampleClassified returns a random sample of classified records outside excludeCategories
func (s *SQLStore) SampleClassified(ctx context.Context, excludeCategories []string, limit int) ([]core.EmailRecord, error) {
	query := `SELECT ` + emailColumns + ` FROM emails WHERE classified = ? AND category <> ?`
	args := []any{true, core.CategoryUnclassified}
	if len(excludeCategories) > 0 {
		query += ` AND category NOT IN (?)`
		args = append(args, excludeCategories)
	}
	query += ` ORDER BY ` + s.dialect.random
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, err
	}
	var out []core.EmailRecord
	if err := s.db.SelectContext(ctx, &out, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to sample classified records: %w", err)
	}
	return out, nil
}

// ListUnsynced returns classified records whose remote label is stale, oldest first
func (s *SQLStore) ListUnsynced(ctx context.Context, limit int) ([]core.EmailRecord, error) {
	query := `SELECT ` + emailColumns + ` FROM emails WHERE classified = ? AND synced = ? ORDER BY received_at ASC, id ASC`
	args := []any{true, false}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var out []core.EmailRecord
	if err := s.db.SelectContext(ctx, &out, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query unsynced records: %w", err)
	}
	return out, nil
}

// MarkSynced flags the given records as synced
func (s *SQLStore) MarkSynced(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`UPDATE emails SET synced = ? WHERE id IN (?)`, true, ids)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to mark records synced: %w", err)
	}
	return nil
}

// InTx runs fn in one database transaction, rolling back if it fails
func (s *SQLStore) InTx(ctx context.Context, fn func(tx core.RecordTx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqlTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Upsert creates a learned rule unless the pattern already exists
func (s *SQLStore) Upsert(ctx context.Context, pattern, category string) (bool, error) {
	query := s.dialect.insert("learned_rules",
		"pattern, category, confidence, hit_count, correction_count, created_at",
		"?, ?, 1.0, 0, 0, ?", "pattern")
	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), pattern, category, s.clock.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to upsert learned rule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ActiveRules returns rules above minConfidence, most hit first
func (s *SQLStore) ActiveRules(ctx context.Context, minConfidence float64) ([]core.LearnedRule, error) {
	var out []core.LearnedRule
	query := `SELECT ` + ruleColumns + ` FROM learned_rules WHERE confidence > ? ORDER BY hit_count DESC, id ASC`
	if err := s.db.SelectContext(ctx, &out, s.db.Rebind(query), minConfidence); err != nil {
		return nil, fmt.Errorf("failed to query active rules: %w", err)
	}
	return out, nil
}

// RecordHit counts a hit on pattern; an unknown pattern is ignored
func (s *SQLStore) RecordHit(ctx context.Context, pattern string, at time.Time) error {
	query := `UPDATE learned_rules SET hit_count = hit_count + 1, last_hit_at = ? WHERE pattern = ?`
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(query), at.UTC(), pattern); err != nil {
		return fmt.Errorf("failed to record hit: %w", err)
	}
	return nil
}

// GarbageCollect deletes every rule the policy considers collectable at now
func (s *SQLStore) GarbageCollect(ctx context.Context, now time.Time, policy core.LifecyclePolicy) ([]core.LearnedRule, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var rules []core.LearnedRule
	if err := tx.SelectContext(ctx, &rules, `SELECT `+ruleColumns+` FROM learned_rules ORDER BY id ASC`); err != nil {
		return nil, fmt.Errorf("failed to query learned rules: %w", err)
	}

	var deleted []core.LearnedRule
	var ids []int64
	for _, r := range rules {
		if policy.Collectable(r, now) {
			deleted = append(deleted, r)
			ids = append(ids, r.ID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`DELETE FROM learned_rules WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to delete learned rules: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit garbage collection: %w", err)
	}
	return deleted, nil
}

// Penalize lowers the confidence of pattern and counts the correction
func (s *SQLStore) Penalize(ctx context.Context, pattern string, amount float64) (bool, error) {
	return penalize(ctx, s.db, pattern, amount)
}

// List returns every learned rule in creation order
func (s *SQLStore) List(ctx context.Context) ([]core.LearnedRule, error) {
	var out []core.LearnedRule
	if err := s.db.SelectContext(ctx, &out, `SELECT `+ruleColumns+` FROM learned_rules ORDER BY id ASC`); err != nil {
		return nil, fmt.Errorf("failed to list learned rules: %w", err)
	}
	return out, nil
}

type sqlTx struct {
	tx *sqlx.Tx
}

func (t *sqlTx) RecordsBySender(ctx context.Context, sender string) ([]core.EmailRecord, error) {
	var out []core.EmailRecord
	query := t.tx.Rebind(`SELECT ` + emailColumns + ` FROM emails WHERE sender = ? ORDER BY id ASC`)
	if err := t.tx.SelectContext(ctx, &out, query, sender); err != nil {
		return nil, fmt.Errorf("failed to query records of %s: %w", sender, err)
	}
	return out, nil
}

func (t *sqlTx) UpdateClassification(ctx context.Context, id string, c core.Classification) error {
	query := t.tx.Rebind(`UPDATE emails SET category = ?, source = ?, rationale = ?, rule_pattern = ?,
		classified = ?, synced = ? WHERE id = ?`)
	if _, err := t.tx.ExecContext(ctx, query, c.Category, string(c.Source), c.Rationale, c.RulePattern, true, false, id); err != nil {
		return fmt.Errorf("failed to update record %s: %w", id, err)
	}
	return nil
}

func (t *sqlTx) Penalize(ctx context.Context, pattern string, amount float64) (bool, error) {
	return penalize(ctx, t.tx, pattern, amount)
}

func penalize(ctx context.Context, db sqlx.ExtContext, pattern string, amount float64) (bool, error) {
	query := db.Rebind(`UPDATE learned_rules
		SET confidence = CASE WHEN confidence - ? < 0 THEN 0 ELSE confidence - ? END,
			correction_count = correction_count + 1
		WHERE pattern = ?`)
	res, err := db.ExecContext(ctx, query, amount, amount, pattern)
	if err != nil {
		return false, fmt.Errorf("failed to penalize rule %q: %w", pattern, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
