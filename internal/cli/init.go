package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilupskalvis/binform/internal/cas"
	"github.com/kilupskalvis/binform/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new binform repository",
	Long: `Initialize a new binform repository in the current directory.
This creates a .binform directory holding the content-addressed object
store, the similarity index, and the refs namespace.`,
	Run: runInit,
}

func runInit(cmd *cobra.Command, args []string) {
	// Check if already initialized
	if _, err := config.FindRoot(); err == nil {
		exitError(exitStore, "binform repository already exists")
	}

	cfg, err := config.Initialize("")
	if err != nil {
		exitError(exitStore, "failed to initialize config: %v", err)
	}

	// Open the store once so the index database exists up front.
	st, err := cas.Open(cfg.ObjectsPath(), cfg.IndexPath(), cfg.RefsPath(), nil)
	if err != nil {
		exitError(exitStore, "failed to create store: %v", err)
	}
	defer st.Close()

	fmt.Printf("Initialized empty binform repository in %s/\n", config.BinformDir)
	fmt.Printf("Default mode: %s, detect threshold: %.2f\n", cfg.DefaultMode, cfg.DetectThreshold)
}
