package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kilupskalvis/binform/internal/cas"
	"github.com/kilupskalvis/binform/internal/decompose"
	"github.com/kilupskalvis/binform/internal/grammar"
	"github.com/kilupskalvis/binform/internal/pattern"
)

var decomposeCmd = &cobra.Command{
	Use:   "decompose <file> <grammar>",
	Short: "Decompose a binary file into a structural tree",
	Long: `Decompose a binary file using a grammar (FORMAT or FORMAT/version)
and write the decomposition document as JSON.`,
	Args: cobra.ExactArgs(2),
	Run:  runDecompose,
}

var (
	decomposeMode   string
	decomposeOutput string
	decomposeSave   bool
)

func init() {
	decomposeCmd.Flags().StringVar(&decomposeMode, "mode", "", "parse mode: strict or best-effort (default from config)")
	decomposeCmd.Flags().StringVarP(&decomposeOutput, "output", "o", "", "write the document to a file instead of stdout")
	decomposeCmd.Flags().BoolVar(&decomposeSave, "save", false, "store the source file and the extraction record in the object store")
}

func runDecompose(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	buf, err := os.ReadFile(args[0])
	if err != nil {
		exitError(exitStore, "failed to read %s: %v", args[0], err)
	}
	g := c.resolveGrammar(args[1])

	modeStr := decomposeMode
	if modeStr == "" {
		modeStr = c.Config.DefaultMode
	}
	mode, err := decompose.ParseMode(modeStr)
	if err != nil {
		exitError(exitStore, "%v", err)
	}

	tree, err := decompose.New(c.Registry, mode).Decompose(buf, g)
	if err != nil {
		exitDecomposeError(err)
	}
	for _, w := range tree.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s at offset %d: %s\n", w.Pattern, w.Offset, w.Msg)
	}

	doc := tree.Document()
	if decomposeSave {
		doc = saveExtraction(c, buf, tree, g)
	}

	data, err := doc.Marshal()
	if err != nil {
		exitError(exitStore, "%v", err)
	}
	if decomposeOutput == "" {
		fmt.Println(string(data))
		return
	}
	if err := os.WriteFile(decomposeOutput, data, 0644); err != nil {
		exitError(exitStore, "failed to write %s: %v", decomposeOutput, err)
	}
	fmt.Printf("Wrote decomposition of %s (%s/%d) to %s\n", args[0], tree.Format, tree.Version, decomposeOutput)
}

// saveExtraction stores the source payload and the stamped extraction
// record, and returns the record for output.
func saveExtraction(c *cmdContext, buf []byte, tree *decompose.Tree, g *grammar.Grammar) *decompose.Document {
	ctx := context.Background()

	fileRes, err := c.Store.Put(ctx, buf, cas.TypeFile, nil, nil)
	if err != nil {
		exitError(exitStore, "failed to store source file: %v", err)
	}

	doc := tree.Record(fileRes.ExactHash)
	data, err := doc.Marshal()
	if err != nil {
		exitError(exitStore, "%v", err)
	}
	recRes, err := c.Store.Put(ctx, data, cas.TypeExtraction, nil, map[string]string{
		"source":  fileRes.ExactHash,
		"format":  g.Format,
		"version": fmt.Sprintf("%d", g.Version),
		"id":      doc.ID,
	})
	if err != nil {
		exitError(exitStore, "failed to store extraction record: %v", err)
	}
	fmt.Fprintf(os.Stderr, "stored file %s, extraction %s\n",
		cas.ShortHash(fileRes.ExactHash), cas.ShortHash(recRes.ExactHash))
	return doc
}

// exitDecomposeError maps a decomposition failure onto an exit code.
func exitDecomposeError(err error) {
	if errors.Is(err, pattern.ErrParse) {
		exitError(exitParse, "%v", err)
	}
	if errors.Is(err, grammar.ErrGrammar) {
		exitError(exitStore, "%v", err)
	}
	exitError(exitStore, "%v", err)
}
