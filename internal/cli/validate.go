package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kilupskalvis/binform/internal/decompose"
	"github.com/kilupskalvis/binform/internal/reconstruct"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file> <grammar>",
	Short: "Verify the decompose/reconstruct round trip for a file",
	Long: `Decompose a file with a grammar, reconstruct it from the resulting
tree, and compare against the original bytes. Exits 0 if the round trip is
byte-identical, 2 with a diff-offset report otherwise.`,
	Args: cobra.ExactArgs(2),
	Run:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	buf, err := os.ReadFile(args[0])
	if err != nil {
		exitError(exitStore, "failed to read %s: %v", args[0], err)
	}
	g := c.resolveGrammar(args[1])

	// Round-trip validation is only meaningful in strict mode.
	tree, err := decompose.New(c.Registry, decompose.ModeStrict).Decompose(buf, g)
	if err != nil {
		exitDecomposeError(err)
	}

	out, err := reconstruct.New(c.Registry).Reconstruct(tree, g)
	if err != nil {
		exitError(exitMismatch, "%v", err)
	}

	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	if diff := firstDiff(buf, out); diff >= 0 || len(buf) != len(out) {
		red.Printf("MISMATCH %s (%s/%d)\n", args[0], g.Format, g.Version)
		if diff >= 0 {
			fmt.Printf("  first differing byte at offset %d (0x%x): original 0x%02x, reconstructed 0x%02x\n",
				diff, diff, buf[diff], out[diff])
		}
		fmt.Printf("  original %d bytes, reconstructed %d bytes\n", len(buf), len(out))
		os.Exit(exitMismatch)
	}

	green.Printf("OK %s (%s/%d, %d bytes)\n", args[0], g.Format, g.Version, len(buf))
}

// firstDiff returns the first offset where the buffers differ within their
// common prefix, or -1.
func firstDiff(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return -1
}
