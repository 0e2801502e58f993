package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kilupskalvis/binform/internal/cas"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Work with the content-addressed object store",
}

var storePutCmd = &cobra.Command{
	Use:   "put <file>",
	Short: "Store a file's bytes as a content-addressed object",
	Args:  cobra.ExactArgs(1),
	Run:   runStorePut,
}

var storeGetCmd = &cobra.Command{
	Use:   "get <hash>",
	Short: "Retrieve an object's payload by exact hash",
	Args:  cobra.ExactArgs(1),
	Run:   runStoreGet,
}

var storeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored objects of one type, newest first",
	Run:   runStoreList,
}

var (
	storeType   string
	storeOutput string
)

func init() {
	storeCmd.AddCommand(storePutCmd)
	storeCmd.AddCommand(storeGetCmd)
	storeCmd.AddCommand(storeListCmd)

	storeCmd.PersistentFlags().StringVarP(&storeType, "type", "t", "file", "object type: pattern, grammar, file, or extraction")
	storeGetCmd.Flags().StringVarP(&storeOutput, "output", "o", "", "write the payload to a file instead of stdout")
}

func runStorePut(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	typ, err := cas.ParseObjectType(storeType)
	if err != nil {
		exitError(exitStore, "%v", err)
	}
	payload, err := os.ReadFile(args[0])
	if err != nil {
		exitError(exitStore, "failed to read %s: %v", args[0], err)
	}

	res, err := c.Store.Put(context.Background(), payload, typ, nil,
		map[string]string{"source": args[0]})
	if err != nil {
		exitError(exitStore, "%v", err)
	}

	fmt.Printf("%s  similarity %s\n", res.ExactHash, res.SimilarityHash.String())
	if res.Existed {
		fmt.Println("(identical payload was already stored)")
	}
}

func runStoreGet(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	typ, err := cas.ParseObjectType(storeType)
	if err != nil {
		exitError(exitStore, "%v", err)
	}
	payload, obj, err := c.Store.Load(context.Background(), typ, args[0])
	if err != nil {
		exitError(exitStore, "%v", err)
	}

	if storeOutput == "" {
		os.Stdout.Write(payload)
		return
	}
	if err := os.WriteFile(storeOutput, payload, 0644); err != nil {
		exitError(exitStore, "failed to write %s: %v", storeOutput, err)
	}
	fmt.Printf("Wrote %d bytes (%s %s) to %s\n", len(payload), obj.Type, obj.ShortID(), storeOutput)
}

func runStoreList(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	typ, err := cas.ParseObjectType(storeType)
	if err != nil {
		exitError(exitStore, "%v", err)
	}
	objects, err := c.Store.ListObjects(context.Background(), typ)
	if err != nil {
		exitError(exitStore, "%v", err)
	}
	for _, obj := range objects {
		fmt.Printf("%s  %s  %8d bytes", obj.ShortID(), obj.SimilarityHash, obj.Size)
		if f := obj.Metadata["format"]; f != "" {
			fmt.Printf("  %s", f)
			if v := obj.Metadata["version"]; v != "" {
				fmt.Printf("/%s", v)
			}
		}
		fmt.Println()
	}
}
