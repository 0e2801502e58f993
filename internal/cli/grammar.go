package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kilupskalvis/binform/internal/cas"
	"github.com/kilupskalvis/binform/internal/grammar"
)

var grammarCmd = &cobra.Command{
	Use:   "grammar",
	Short: "Manage format grammars",
}

var grammarAddCmd = &cobra.Command{
	Use:   "add <file.yaml>",
	Short: "Validate and store a grammar document",
	Long: `Parse and validate a grammar document, store it in the object store,
and point the grammar/FORMAT/VERSION and grammar/FORMAT/latest refs at it.
Stored grammar versions are immutable; a revision needs a new version.`,
	Args: cobra.ExactArgs(1),
	Run:  runGrammarAdd,
}

var grammarListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered grammars",
	Run:   runGrammarList,
}

var grammarShowCmd = &cobra.Command{
	Use:   "show <grammar>",
	Short: "Print a grammar document",
	Args:  cobra.ExactArgs(1),
	Run:   runGrammarShow,
}

func init() {
	grammarCmd.AddCommand(grammarAddCmd)
	grammarCmd.AddCommand(grammarListCmd)
	grammarCmd.AddCommand(grammarShowCmd)
}

func runGrammarAdd(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()
	ctx := context.Background()

	data, err := os.ReadFile(args[0])
	if err != nil {
		exitError(exitStore, "failed to read %s: %v", args[0], err)
	}
	g, err := grammar.Parse(data)
	if err != nil {
		exitError(exitStore, "%v", err)
	}
	if err := c.Registry.Add(g); err != nil {
		exitError(exitStore, "%v", err)
	}

	fieldCount, diversity, depth, repeats := g.StructuralFeatures()
	res, err := c.Store.Put(ctx, data, cas.TypeGrammar,
		&cas.StructuralFeatures{
			FieldCount:    fieldCount,
			TypeDiversity: diversity,
			Repeats:       repeats,
			Depth:         depth,
		},
		map[string]string{
			"format":  g.Format,
			"version": fmt.Sprintf("%d", g.Version),
		})
	if err != nil {
		exitError(exitStore, "failed to store grammar: %v", err)
	}

	versionRef := fmt.Sprintf("grammar/%s/%d", g.Format, g.Version)
	if err := c.Store.SetRef(versionRef, res.ExactHash); err != nil {
		exitError(exitStore, "failed to set ref: %v", err)
	}
	latestRef := fmt.Sprintf("grammar/%s/latest", g.Format)
	if latest, err := c.Registry.Latest(g.Format); err == nil && latest.Version == g.Version {
		if err := c.Store.SetRef(latestRef, res.ExactHash); err != nil {
			exitError(exitStore, "failed to set ref: %v", err)
		}
	}

	fmt.Printf("Stored grammar %s as %s\n", g.Ref(), cas.ShortHash(res.ExactHash))
	if res.Existed {
		fmt.Println("(identical document was already stored)")
	}
}

func runGrammarList(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	cyan := color.New(color.FgCyan)
	for _, g := range c.Registry.All() {
		fieldCount, diversity, depth, repeats := g.StructuralFeatures()
		cyan.Printf("%s/%d", g.Format, g.Version)
		fmt.Printf("  patterns=%d kinds=%d depth=%d repeats=%v", fieldCount, diversity, depth, repeats)
		if hash, err := c.Store.ResolveRef(fmt.Sprintf("grammar/%s/%d", g.Format, g.Version)); err == nil {
			fmt.Printf("  %s", cas.ShortHash(hash))
		}
		fmt.Println()
	}
}

func runGrammarShow(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	g := c.resolveGrammar(args[0])
	data, err := g.Encode()
	if err != nil {
		exitError(exitStore, "%v", err)
	}
	fmt.Print(string(data))
}
