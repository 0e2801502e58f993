package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilupskalvis/binform/internal/cas"
)

var refCmd = &cobra.Command{
	Use:   "ref",
	Short: "Manage symbolic refs",
}

var refListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all symbolic refs",
	Run:   runRefList,
}

var refSetCmd = &cobra.Command{
	Use:   "set <name> <hash>",
	Short: "Point a symbolic ref at an exact hash",
	Args:  cobra.ExactArgs(2),
	Run:   runRefSet,
}

func init() {
	refCmd.AddCommand(refListCmd)
	refCmd.AddCommand(refSetCmd)
}

func runRefList(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	refs, err := c.Store.ListRefs()
	if err != nil {
		exitError(exitStore, "failed to list refs: %v", err)
	}
	for _, ref := range refs {
		fmt.Printf("%s  %s\n", cas.ShortHash(ref.Hash), ref.Name)
	}
}

func runRefSet(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	if err := c.Store.SetRef(args[0], args[1]); err != nil {
		exitError(exitStore, "%v", err)
	}
	fmt.Printf("%s -> %s\n", args[0], cas.ShortHash(args[1]))
}
