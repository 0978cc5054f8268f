package db

import (
	"database/sql"
	"fmt"
)

// SeedFixtures populates the database with development fixtures: one origin with two
// experiments, a template battery holding both, and two subjects.
func SeedFixtures(database *sql.DB) error {
	statements := []struct {
		name  string
		query string
		args  []any
	}{
		{"framework", "INSERT INTO frameworks (id, name, template) VALUES (?, ?, ?)",
			[]any{"FRMW-001", "jspsych", "<script src=\"jspsych.js\"></script>"}},
		{"origin", "INSERT INTO repo_origins (id, url, path, name) VALUES (?, ?, ?, ?)",
			[]any{"ORIG-001", "git@github.com:expfactory/experiments.git", "/tmp/expfactory/repos/experiments", "experiments"}},
		{"experiment", "INSERT INTO experiment_repos (id, name, origin_id, branch, location, framework_id) VALUES (?, ?, ?, ?, ?, ?)",
			[]any{"EXP-001", "stroop", "ORIG-001", "main", "/tmp/expfactory/repos/experiments/stroop", "FRMW-001"}},
		{"experiment", "INSERT INTO experiment_repos (id, name, origin_id, branch, location, framework_id) VALUES (?, ?, ?, ?, ?, ?)",
			[]any{"EXP-002", "go-nogo", "ORIG-001", "main", "/tmp/expfactory/repos/experiments/go-nogo", "FRMW-001"}},
		{"instance", "INSERT INTO experiment_instances (id, experiment_repo_id, commit_sha) VALUES (?, ?, ?)",
			[]any{"INST-001", "EXP-001", "3f2a9c1"}},
		{"instance", "INSERT INTO experiment_instances (id, experiment_repo_id, commit_sha) VALUES (?, ?, ?)",
			[]any{"INST-002", "EXP-002", "3f2a9c1"}},
		{"battery", "INSERT INTO batteries (id, title, status, random_order) VALUES (?, ?, 'template', 1)",
			[]any{"BATT-001", "Self-regulation pilot"}},
		{"battery experiment", "INSERT INTO battery_experiments (id, battery_id, experiment_instance_id, exp_order) VALUES (?, ?, ?, ?)",
			[]any{"BEXP-001", "BATT-001", "INST-001", 0}},
		{"battery experiment", "INSERT INTO battery_experiments (id, battery_id, experiment_instance_id, exp_order) VALUES (?, ?, ?, ?)",
			[]any{"BEXP-002", "BATT-001", "INST-002", 1}},
		{"subject", "INSERT INTO subjects (id, handle, uuid) VALUES (?, ?, ?)",
			[]any{"SUBJ-001", "pilot-01", "6b1d2c3e-0000-4000-8000-000000000001"}},
		{"subject", "INSERT INTO subjects (id, handle, uuid) VALUES (?, ?, ?)",
			[]any{"SUBJ-002", "pilot-02", "6b1d2c3e-0000-4000-8000-000000000002"}},
	}

	for _, s := range statements {
		if _, err := database.Exec(s.query, s.args...); err != nil {
			return fmt.Errorf("seed %s: %w", s.name, err)
		}
	}
	return nil
}
