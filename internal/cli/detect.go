package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kilupskalvis/binform/internal/cas"
	"github.com/kilupskalvis/binform/internal/detect"
)

var detectCmd = &cobra.Command{
	Use:   "detect <file>",
	Short: "Propose candidate grammars for an unidentified file",
	Long: `Try every registered grammar's magic-number entry against the file,
falling back to similarity-hash proximity over stored grammars. Prints a
ranked candidate list; picking a grammar for decomposition is up to you.`,
	Args: cobra.ExactArgs(1),
	Run:  runDetect,
}

var detectThreshold float64

func init() {
	detectCmd.Flags().Float64Var(&detectThreshold, "threshold", 0, "minimum similarity score (default from config)")
}

func runDetect(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	buf, err := os.ReadFile(args[0])
	if err != nil {
		exitError(exitStore, "failed to read %s: %v", args[0], err)
	}

	threshold := detectThreshold
	if threshold <= 0 {
		threshold = c.Config.DetectThreshold
	}

	d := detect.New(c.Registry, c.Store, threshold)
	candidates, err := d.Detect(context.Background(), buf)
	if err != nil {
		exitError(exitStore, "%v", err)
	}

	if len(candidates) == 0 {
		fmt.Printf("No candidate grammars for %s (threshold %.2f)\n", args[0], threshold)
		return
	}

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	fmt.Printf("Candidates for %s:\n", args[0])
	for _, cand := range candidates {
		line := fmt.Sprintf("  %-20s score %.2f  (%s)", fmt.Sprintf("%s/%d", cand.Format, cand.Version), cand.Score, cand.Method)
		if cand.Hash != "" {
			line += "  " + cas.ShortHash(cand.Hash)
		}
		if cand.Method == detect.MethodMagic {
			green.Println(line)
		} else {
			yellow.Println(line)
		}
	}
}
