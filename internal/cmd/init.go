package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hargabyte/bundlescope/internal/cache"
	"github.com/hargabyte/bundlescope/internal/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize .bscope directory, config and history",
	Long: `Initialize the .bscope directory in the current directory.

This writes config.yaml with every default spelled out and creates the
history.db database that stores reports for later baseline comparison.

Examples:
  bscope init          # Initialize in current directory`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	configDir := filepath.Join(cwd, config.ConfigDirName)
	configFile := filepath.Join(configDir, config.ConfigFileName)
	relPath, _ := filepath.Rel(cwd, configDir)

	if _, err := os.Stat(configFile); err == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Already initialized at %s\n", relPath)
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("checking config path: %w", err)
	}

	if _, err := config.SaveDefault(cwd); err != nil {
		return err
	}

	history, err := cache.Open(configDir)
	if err != nil {
		return fmt.Errorf("initializing history: %w", err)
	}
	defer history.Close()

	fmt.Fprintf(cmd.OutOrStdout(), "Initialized bscope at %s\n", relPath)
	return nil
}
