// Package sqlite_test contains integration tests for SQLite repositories.
//
// # Schema Protection
//
// This file is the SINGLE POINT where the database schema is loaded for tests.
// All test setup functions use db.GetSchemaSQL() to ensure tests run against
// the authoritative schema, preventing drift between test and production.
//
// DO NOT hardcode CREATE TABLE statements in test files. Use setupTestDB() and
// the seed* helpers instead.
package sqlite_test

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/expfactory/internal/db"
)

// setupTestDB creates an in-memory database with the authoritative schema.
// The pool is pinned to one connection so every statement sees the same database.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	testDB.SetMaxOpenConns(1)

	// Use the authoritative schema from schema.go
	_, err = testDB.Exec(db.GetSchemaSQL())
	if err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		testDB.Close()
	})

	return testDB
}

// seedOrigin inserts a test origin and returns its ID.
func seedOrigin(t *testing.T, db *sql.DB, id, name string) string {
	t.Helper()
	if id == "" {
		id = "ORIG-001"
	}
	if name == "" {
		name = "experiments"
	}
	_, err := db.Exec("INSERT INTO repo_origins (id, url, path, name) VALUES (?, ?, ?, ?)",
		id, "git@github.com:expfactory/"+name+".git", "/repos/"+name, name)
	if err != nil {
		t.Fatalf("failed to seed origin: %v", err)
	}
	return id
}

// seedExperimentRepo inserts a test experiment repo and returns its ID.
func seedExperimentRepo(t *testing.T, db *sql.DB, id, originID, name string) string {
	t.Helper()
	if id == "" {
		id = "EXP-001"
	}
	if name == "" {
		name = "stroop"
	}
	var origin any
	if originID != "" {
		origin = originID
	}
	_, err := db.Exec("INSERT INTO experiment_repos (id, name, origin_id, location) VALUES (?, ?, ?, ?)",
		id, name, origin, "/repos/experiments/"+name)
	if err != nil {
		t.Fatalf("failed to seed experiment repo: %v", err)
	}
	return id
}

// seedInstance inserts a test experiment instance and returns its ID.
func seedInstance(t *testing.T, db *sql.DB, id, experimentRepoID, commit string) string {
	t.Helper()
	if id == "" {
		id = "INST-001"
	}
	if commit == "" {
		commit = "abc123"
	}
	_, err := db.Exec("INSERT INTO experiment_instances (id, experiment_repo_id, commit_sha) VALUES (?, ?, ?)",
		id, experimentRepoID, commit)
	if err != nil {
		t.Fatalf("failed to seed instance: %v", err)
	}
	return id
}

// seedBattery inserts a test battery and returns its ID.
func seedBattery(t *testing.T, db *sql.DB, id, status string) string {
	t.Helper()
	if id == "" {
		id = "BATT-001"
	}
	if status == "" {
		status = "draft"
	}
	_, err := db.Exec("INSERT INTO batteries (id, title, status) VALUES (?, ?, ?)", id, "Test Battery", status)
	if err != nil {
		t.Fatalf("failed to seed battery: %v", err)
	}
	return id
}

// seedBatteryExperiment places an instance in a battery and returns the row ID.
func seedBatteryExperiment(t *testing.T, db *sql.DB, id, batteryID, instanceID string, order int) string {
	t.Helper()
	_, err := db.Exec("INSERT INTO battery_experiments (id, battery_id, experiment_instance_id, exp_order) VALUES (?, ?, ?, ?)",
		id, batteryID, instanceID, order)
	if err != nil {
		t.Fatalf("failed to seed battery experiment: %v", err)
	}
	return id
}

// seedSubject inserts a test subject and returns its ID.
func seedSubject(t *testing.T, db *sql.DB, id, handle string) string {
	t.Helper()
	if id == "" {
		id = "SUBJ-001"
	}
	_, err := db.Exec("INSERT INTO subjects (id, handle, uuid) VALUES (?, ?, ?)", id, handle, "uuid-"+id)
	if err != nil {
		t.Fatalf("failed to seed subject: %v", err)
	}
	return id
}

// seedAssignment inserts a test assignment and returns its ID.
func seedAssignment(t *testing.T, db *sql.DB, id, subjectID, batteryID string) string {
	t.Helper()
	if id == "" {
		id = "ASGN-001"
	}
	_, err := db.Exec("INSERT INTO assignments (id, subject_id, battery_id) VALUES (?, ?, ?)", id, subjectID, batteryID)
	if err != nil {
		t.Fatalf("failed to seed assignment: %v", err)
	}
	return id
}

// seedResult inserts a test result and returns its ID.
func seedResult(t *testing.T, db *sql.DB, id, assignmentID, batteryExperimentID, subjectID, status, data string) string {
	t.Helper()
	_, err := db.Exec("INSERT INTO results (id, assignment_id, battery_experiment_id, subject_id, status, data) VALUES (?, ?, ?, ?, ?, ?)",
		id, assignmentID, batteryExperimentID, subjectID, status, data)
	if err != nil {
		t.Fatalf("failed to seed result: %v", err)
	}
	return id
}

// seedTag inserts a test tag and returns its ID.
func seedTag(t *testing.T, db *sql.DB, id, name string) string {
	t.Helper()
	if id == "" {
		id = "TAG-001"
	}
	if name == "" {
		name = "test-tag"
	}
	_, err := db.Exec("INSERT INTO tags (id, name) VALUES (?, ?)", id, name)
	if err != nil {
		t.Fatalf("failed to seed tag: %v", err)
	}
	return id
}
