package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/example/expfactory/internal/config"
	"github.com/example/expfactory/internal/db"
)

// InitCmd returns the init command
func InitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the expfactory configuration and database",
		Long: `Write ~/.expfactory/config.yaml (keeping an existing one) and create the
database, repo and deployment directories it names.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := config.HomeDir()
			if err != nil {
				return err
			}
			return runInit(cmd, dir)
		},
	}

	cmd.Flags().String("repo-dir", "", "Where origins are cloned (default ~/.expfactory/repos)")
	cmd.Flags().String("deployment-dir", "", "Where instances are checked out (default ~/.expfactory/deployments)")
	cmd.Flags().String("db-path", "", "SQLite database file (default ~/.expfactory/expfactory.db)")
	return cmd
}

func runInit(cmd *cobra.Command, dir string) error {
	cfg, err := config.LoadConfig(dir)
	if err != nil {
		return err
	}
	for flag, field := range map[string]*string{
		"repo-dir":       &cfg.RepoDir,
		"deployment-dir": &cfg.DeploymentDir,
		"db-path":        &cfg.DBPath,
	} {
		if v, _ := cmd.Flags().GetString(flag); v != "" {
			*field = v
		}
	}

	if err := config.SaveConfig(dir, cfg); err != nil {
		return err
	}
	fmt.Printf("✓ Configuration written to %s\n", filepath.Join(dir, config.FileName))

	for _, d := range []string{cfg.RepoDir, cfg.DeploymentDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", d, err)
		}
	}

	conn, err := db.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer conn.Close()
	fmt.Printf("✓ Database initialized at %s\n", cfg.DBPath)

	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  expfactory origin create https://github.com/expfactory/experiments.git")
	fmt.Println("  expfactory battery create \"My first battery\"")
	return nil
}
