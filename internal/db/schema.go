package db

import (
	"database/sql"
	"fmt"
)

// SchemaSQL is the complete schema for fresh installs.
// This schema reflects the current state after all migrations.
//
// This is the SINGLE SOURCE OF TRUTH for the database schema. Repository tests load it
// through GetSchemaSQL() so a column referenced by adapter code but missing here fails
// immediately with "no such column".
//
// When adding new columns or tables:
//  1. Add a migration in migrations.go
//  2. Update SchemaSQL here
//  3. Bump the version recorded for fresh installs (latestVersion)
const SchemaSQL = `
-- Tags (generic tagging system)
CREATE TABLE IF NOT EXISTS tags (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	description TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS entity_tags (
	id TEXT PRIMARY KEY,
	entity_id TEXT NOT NULL,
	entity_type TEXT NOT NULL CHECK(entity_type IN ('experiment_repo', 'subject')),
	tag_id TEXT NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (tag_id) REFERENCES tags(id) ON DELETE CASCADE,
	UNIQUE(entity_id, entity_type, tag_id)
);

-- Frameworks used by experiments (jspsych, etc.)
CREATE TABLE IF NOT EXISTS frameworks (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	template TEXT NOT NULL DEFAULT '',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Repo origins (git repositories containing experiments)
CREATE TABLE IF NOT EXISTS repo_origins (
	id TEXT PRIMARY KEY,
	url TEXT NOT NULL UNIQUE,
	path TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL UNIQUE,
	active INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(name, path)
);

-- Experiment repos (an experiment at a location inside an origin)
CREATE TABLE IF NOT EXISTS experiment_repos (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	origin_id TEXT,
	branch TEXT NOT NULL DEFAULT 'master',
	location TEXT NOT NULL DEFAULT '',
	framework_id TEXT,
	active INTEGER NOT NULL DEFAULT 1,
	cogat_id TEXT NOT NULL DEFAULT '',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (origin_id) REFERENCES repo_origins(id) ON DELETE SET NULL,
	FOREIGN KEY (framework_id) REFERENCES frameworks(id) ON DELETE SET NULL
);

-- Experiment instances (an experiment repo pinned at a commit)
CREATE TABLE IF NOT EXISTS experiment_instances (
	id TEXT PRIMARY KEY,
	experiment_repo_id TEXT NOT NULL,
	commit_sha TEXT NOT NULL,
	commit_date DATETIME,
	note TEXT NOT NULL DEFAULT '',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (experiment_repo_id) REFERENCES experiment_repos(id) ON DELETE CASCADE,
	UNIQUE(experiment_repo_id, commit_sha)
);

-- Batteries (ordered collections of experiment instances)
CREATE TABLE IF NOT EXISTS batteries (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	status TEXT NOT NULL CHECK(status IN ('template', 'draft', 'published', 'inactive')) DEFAULT 'template',
	template_id TEXT,
	consent TEXT NOT NULL DEFAULT '',
	instructions TEXT NOT NULL DEFAULT '',
	advertisement TEXT NOT NULL DEFAULT '',
	random_order INTEGER NOT NULL DEFAULT 1,
	public INTEGER NOT NULL DEFAULT 0,
	inter_task_break_seconds INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (template_id) REFERENCES batteries(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS battery_experiments (
	id TEXT PRIMARY KEY,
	battery_id TEXT NOT NULL,
	experiment_instance_id TEXT NOT NULL,
	exp_order INTEGER NOT NULL DEFAULT 0,
	use_latest INTEGER NOT NULL DEFAULT 1,
	FOREIGN KEY (battery_id) REFERENCES batteries(id) ON DELETE CASCADE,
	FOREIGN KEY (experiment_instance_id) REFERENCES experiment_instances(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_battery_experiments_battery ON battery_experiments(battery_id, exp_order);

-- Experiment orders (persisted permutations of a battery's experiments)
CREATE TABLE IF NOT EXISTS experiment_orders (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	battery_id TEXT NOT NULL,
	auto_generated INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (battery_id) REFERENCES batteries(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS experiment_order_items (
	id TEXT PRIMARY KEY,
	experiment_order_id TEXT NOT NULL,
	battery_experiment_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	FOREIGN KEY (experiment_order_id) REFERENCES experiment_orders(id) ON DELETE CASCADE,
	FOREIGN KEY (battery_experiment_id) REFERENCES battery_experiments(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_experiment_order_items_order ON experiment_order_items(experiment_order_id, position);

-- Subjects (study participants)
CREATE TABLE IF NOT EXISTS subjects (
	id TEXT PRIMARY KEY,
	handle TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT '',
	uuid TEXT NOT NULL UNIQUE,
	active INTEGER NOT NULL DEFAULT 1,
	prolific_id TEXT UNIQUE,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Assignments (one subject bound to one battery)
CREATE TABLE IF NOT EXISTS assignments (
	id TEXT PRIMARY KEY,
	subject_id TEXT NOT NULL,
	battery_id TEXT NOT NULL,
	status TEXT NOT NULL CHECK(status IN ('not-started', 'started', 'completed', 'failed', 'redo')) DEFAULT 'not-started',
	started_at DATETIME,
	completed_at DATETIME,
	failed_at DATETIME,
	consent_accepted INTEGER,
	note TEXT NOT NULL DEFAULT '',
	ordering_id TEXT,
	group_index INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (subject_id) REFERENCES subjects(id) ON DELETE CASCADE,
	FOREIGN KEY (battery_id) REFERENCES batteries(id) ON DELETE CASCADE,
	FOREIGN KEY (ordering_id) REFERENCES experiment_orders(id) ON DELETE SET NULL,
	UNIQUE(subject_id, battery_id)
);

-- Results (one outcome per assignment / battery experiment / subject)
CREATE TABLE IF NOT EXISTS results (
	id TEXT PRIMARY KEY,
	assignment_id TEXT,
	battery_experiment_id TEXT,
	subject_id TEXT,
	status TEXT NOT NULL CHECK(status IN ('not-started', 'started', 'completed', 'failed', 'redo')) DEFAULT 'not-started',
	started_at DATETIME,
	completed_at DATETIME,
	failed_at DATETIME,
	data TEXT NOT NULL DEFAULT '',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (assignment_id) REFERENCES assignments(id) ON DELETE SET NULL,
	FOREIGN KEY (battery_experiment_id) REFERENCES battery_experiments(id) ON DELETE SET NULL,
	FOREIGN KEY (subject_id) REFERENCES subjects(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_results_subject_status ON results(subject_id, status);

-- Audit log (who changed what)
CREATE TABLE IF NOT EXISTS audit_log (
	id TEXT PRIMARY KEY,
	actor_id TEXT NOT NULL DEFAULT '',
	entity_type TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	action TEXT NOT NULL CHECK(action IN ('create', 'update', 'delete')),
	field_name TEXT,
	old_value TEXT,
	new_value TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_audit_log_entity ON audit_log(entity_type, entity_id);
`

// InitSchema creates the schema on a fresh database or runs pending migrations on an
// existing one.
func InitSchema(conn *sql.DB) error {
	var tableCount int
	err := conn.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableCount)
	if err != nil {
		return err
	}

	if tableCount > 0 {
		return RunMigrations(conn)
	}

	if _, err := conn.Exec(SchemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if _, err := conn.Exec(schemaVersionSQL); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}
	if _, err := conn.Exec("INSERT INTO schema_version (version) VALUES (?)", latestVersion()); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return nil
}

// GetSchemaSQL returns the authoritative schema for tests.
func GetSchemaSQL() string {
	return SchemaSQL
}
