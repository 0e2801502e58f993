package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kilupskalvis/binform/internal/decompose"
	"github.com/kilupskalvis/binform/internal/grammar"
	"github.com/kilupskalvis/binform/internal/reconstruct"
)

var reconstructCmd = &cobra.Command{
	Use:   "reconstruct <document> <grammar> <output>",
	Short: "Rebuild a binary file from a decomposition document",
	Long: `Reconstruct the byte buffer described by a decomposition document
using a grammar (FORMAT or FORMAT/version) and write it to the output file.
Derived fields such as lengths and checksums are recomputed, so an edited
document reconstructs into a consistent binary.`,
	Args: cobra.ExactArgs(3),
	Run:  runReconstruct,
}

func runReconstruct(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	data, err := os.ReadFile(args[0])
	if err != nil {
		exitError(exitStore, "failed to read %s: %v", args[0], err)
	}
	doc, err := decompose.ParseDocument(data)
	if err != nil {
		exitError(exitStore, "%v", err)
	}
	g := c.resolveGrammar(args[1])

	out, err := reconstruct.New(c.Registry).Reconstruct(&doc.Tree, g)
	if err != nil {
		if errors.Is(err, reconstruct.ErrReconstruction) {
			exitError(exitMismatch, "%v", err)
		}
		if errors.Is(err, grammar.ErrGrammar) {
			exitError(exitStore, "%v", err)
		}
		exitError(exitStore, "%v", err)
	}

	if err := os.WriteFile(args[2], out, 0644); err != nil {
		exitError(exitStore, "failed to write %s: %v", args[2], err)
	}
	fmt.Printf("Reconstructed %d bytes (%s/%d) to %s\n", len(out), g.Format, g.Version, args[2])
}
