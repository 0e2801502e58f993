// Package cli implements the command-line interface for binform.
package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kilupskalvis/binform/internal/cas"
	"github.com/kilupskalvis/binform/internal/config"
	"github.com/kilupskalvis/binform/internal/grammar"
)

// Exit codes. Every command maps its failures onto these.
const (
	exitOK       = 0
	exitParse    = 1 // the input bytes did not match the grammar
	exitMismatch = 2 // reconstruction produced different bytes
	exitStore    = 3 // grammar or store error
)

// cmdContext holds common resources for CLI commands
type cmdContext struct {
	Config   *config.Config
	Store    *cas.Store
	Registry *grammar.Registry
}

// Close releases resources held by cmdContext
func (c *cmdContext) Close() {
	if c.Store != nil {
		c.Store.Close()
	}
}

// initContext loads the repository config, opens the store, and builds a
// grammar registry holding the builtins plus every grammar stored in the
// repository.
func initContext() *cmdContext {
	cfg, err := config.Load()
	if err != nil {
		exitError(exitStore, "%v", err)
	}

	st, err := cas.Open(cfg.ObjectsPath(), cfg.IndexPath(), cfg.RefsPath(), nil)
	if err != nil {
		exitError(exitStore, "failed to open store: %v", err)
	}

	reg, err := grammar.NewRegistry()
	if err != nil {
		st.Close()
		exitError(exitStore, "failed to build registry: %v", err)
	}

	c := &cmdContext{Config: cfg, Store: st, Registry: reg}
	if err := c.loadStoredGrammars(); err != nil {
		c.Close()
		exitError(exitStore, "failed to load stored grammars: %v", err)
	}
	return c
}

// loadStoredGrammars registers every grammar object in the store. Versions
// that collide with a builtin are skipped; stored versions never change, so
// a collision means the same document.
func (c *cmdContext) loadStoredGrammars() error {
	ctx := context.Background()
	objects, err := c.Store.ListObjects(ctx, cas.TypeGrammar)
	if err != nil {
		return err
	}
	for _, obj := range objects {
		payload, _, err := c.Store.Load(ctx, cas.TypeGrammar, obj.ExactHash)
		if err != nil {
			return err
		}
		g, err := grammar.Parse(payload)
		if err != nil {
			return fmt.Errorf("stored grammar %s: %w", obj.ShortID(), err)
		}
		if _, err := c.Registry.Get(g.Format, g.Version); err == nil {
			continue
		}
		if err := c.Registry.Add(g); err != nil {
			return fmt.Errorf("stored grammar %s: %w", obj.ShortID(), err)
		}
	}
	return nil
}

// resolveGrammar resolves a "FORMAT" or "FORMAT/version" argument.
func (c *cmdContext) resolveGrammar(spec string) *grammar.Grammar {
	format, versionStr, hasVersion := strings.Cut(spec, "/")
	if !hasVersion {
		g, err := c.Registry.Latest(format)
		if err != nil {
			exitError(exitStore, "%v", err)
		}
		return g
	}
	version, err := strconv.Atoi(versionStr)
	if err != nil {
		exitError(exitStore, "invalid grammar version %q", versionStr)
	}
	g, err := c.Registry.Get(format, version)
	if err != nil {
		exitError(exitStore, "%v", err)
	}
	return g
}

var rootCmd = &cobra.Command{
	Use:   "binform",
	Short: "Grammar-driven binary format engine",
	Long: `binform decomposes binary files into structural trees using declarative
pattern grammars, reconstructs the original bytes from those trees, and
keeps patterns and grammars in a content-addressed store with exact and
similarity hashing.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(decomposeCmd)
	rootCmd.AddCommand(reconstructCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(grammarCmd)
	rootCmd.AddCommand(patternCmd)
	rootCmd.AddCommand(refCmd)
	rootCmd.AddCommand(storeCmd)
}

// exitError prints an error and exits with the given code
func exitError(code int, format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(code)
}
