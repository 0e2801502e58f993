package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var patternCmd = &cobra.Command{
	Use:   "pattern",
	Short: "Inspect the pattern catalog",
}

var patternListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the structural pattern kinds grammars can reference",
	Run:   runPatternList,
}

func init() {
	patternCmd.AddCommand(patternListCmd)
}

func runPatternList(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	for _, kind := range c.Registry.Patterns.Kinds() {
		fmt.Println(string(kind))
	}
}
