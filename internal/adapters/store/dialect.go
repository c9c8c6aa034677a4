package store

import "fmt"

// dialect holds the SQL that differs between the supported databases
type dialect struct {
	name   string
	driver string
	schema []string
	random string
	// insertIgnore uses MySQL's INSERT IGNORE instead of ON CONFLICT DO NOTHING
	insertIgnore bool
}

// insert builds an INSERT that silently skips rows conflicting on the conflict column
func (d dialect) insert(table, columns, values, conflict string) string {
	if d.insertIgnore {
		return fmt.Sprintf("INSERT IGNORE INTO %s (%s) VALUES (%s)", table, columns, values)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s) DO NOTHING", table, columns, values, conflict)
}

var sqliteDialect = dialect{
	name:   "sqlite",
	driver: "sqlite3",
	random: "RANDOM()",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS emails (
			id TEXT PRIMARY KEY,
			sender TEXT NOT NULL,
			subject TEXT NOT NULL,
			snippet TEXT NOT NULL,
			received_at TIMESTAMP NOT NULL,
			category TEXT NOT NULL,
			classified BOOLEAN NOT NULL DEFAULT 0,
			source TEXT NOT NULL,
			rationale TEXT NOT NULL,
			rule_pattern TEXT NOT NULL,
			synced BOOLEAN NOT NULL DEFAULT 0,
			size_estimate INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_emails_sender ON emails(sender)`,
		`CREATE TABLE IF NOT EXISTS learned_rules (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			pattern TEXT NOT NULL UNIQUE,
			category TEXT NOT NULL,
			confidence REAL NOT NULL DEFAULT 1.0,
			hit_count INTEGER NOT NULL DEFAULT 0,
			correction_count INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			last_hit_at TIMESTAMP NULL
		)`,
	},
}

var mysqlDialect = dialect{
	name:   "mysql",
	driver: "mysql",
	random: "RAND()",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS emails (
			id VARCHAR(255) PRIMARY KEY,
			sender VARCHAR(255) NOT NULL,
			subject TEXT NOT NULL,
			snippet TEXT NOT NULL,
			received_at DATETIME(6) NOT NULL,
			category VARCHAR(64) NOT NULL,
			classified BOOLEAN NOT NULL DEFAULT FALSE,
			source VARCHAR(32) NOT NULL,
			rationale TEXT NOT NULL,
			rule_pattern TEXT NOT NULL,
			synced BOOLEAN NOT NULL DEFAULT FALSE,
			size_estimate BIGINT NOT NULL DEFAULT 0,
			INDEX idx_emails_sender (sender)
		)`,
		`CREATE TABLE IF NOT EXISTS learned_rules (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			pattern VARCHAR(512) NOT NULL UNIQUE,
			category VARCHAR(64) NOT NULL,
			confidence DOUBLE NOT NULL DEFAULT 1.0,
			hit_count INT NOT NULL DEFAULT 0,
			correction_count INT NOT NULL DEFAULT 0,
			created_at DATETIME(6) NOT NULL,
			last_hit_at DATETIME(6) NULL
		)`,
	},
	insertIgnore: true,
}

var postgresDialect = dialect{
	name:   "postgres",
	driver: "pgx",
	random: "RANDOM()",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS emails (
			id TEXT PRIMARY KEY,
			sender TEXT NOT NULL,
			subject TEXT NOT NULL,
			snippet TEXT NOT NULL,
			received_at TIMESTAMPTZ NOT NULL,
			category TEXT NOT NULL,
			classified BOOLEAN NOT NULL DEFAULT FALSE,
			source TEXT NOT NULL,
			rationale TEXT NOT NULL,
			rule_pattern TEXT NOT NULL,
			synced BOOLEAN NOT NULL DEFAULT FALSE,
			size_estimate BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_emails_sender ON emails(sender)`,
		`CREATE TABLE IF NOT EXISTS learned_rules (
			id BIGSERIAL PRIMARY KEY,
			pattern TEXT NOT NULL UNIQUE,
			category TEXT NOT NULL,
			confidence DOUBLE PRECISION NOT NULL DEFAULT 1.0,
			hit_count INTEGER NOT NULL DEFAULT 0,
			correction_count INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL,
			last_hit_at TIMESTAMPTZ NULL
		)`,
	},
}
