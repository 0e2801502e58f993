package cli

import (
	"os"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "completion [bash|zsh|fish]",
		Short: "Generate shell completion script",
		Long: `Generate a shell completion script for the binform CLI.

Completion covers subcommands and flags; positional arguments such as
grammar specs (PNG, CHUNKED/1) and object hashes are not completed.

Bash:
  $ source <(binform completion bash)
  # Or add to ~/.bashrc:
  $ echo 'source <(binform completion bash)' >> ~/.bashrc

Zsh:
  $ source <(binform completion zsh)
  # Or add to ~/.zshrc:
  $ echo 'source <(binform completion zsh)' >> ~/.zshrc

Fish:
  $ binform completion fish | source
  # Or write it out once:
  $ binform completion fish > ~/.config/fish/completions/binform.fish
`,
		ValidArgs:             []string{"bash", "zsh", "fish"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		DisableFlagsInUseLine: true,
		Run: func(cmd *cobra.Command, args []string) {
			switch args[0] {
			case "bash":
				rootCmd.GenBashCompletion(os.Stdout)
			case "zsh":
				rootCmd.GenZshCompletion(os.Stdout)
			case "fish":
				rootCmd.GenFishCompletion(os.Stdout, true)
			}
		},
	})
}
