package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/streetlabs/bobwire/internal/config"
)

func onboardCmd() *cobra.Command {
	var callName string
	var provider string

	cmd := &cobra.Command{
		Use:   "onboard",
		Short: "Write an initial config file from flags and environment",
		Long: "Detects credentials from the environment, writes a starter config file, " +
			"and prints what is still missing. Secrets are never written to the file.",
		Run: func(cmd *cobra.Command, args []string) {
			if err := runOnboard(callName, provider); err != nil {
				fmt.Fprintf(os.Stderr, "onboard failed: %v\n", err)
				os.Exit(1)
			}
		},
	}

	cmd.Flags().StringVar(&callName, "call-name", "bob", "name the bot answers to in chat")
	cmd.Flags().StringVar(&provider, "provider", "anthropic", "generation backend: anthropic or openai")
	return cmd
}

func runOnboard(callName, provider string) error {
	path := resolveConfigPath()

	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Config already exists at %s, leaving it alone.\n", path)
		fmt.Println("Delete it first if you want a fresh one.")
		return nil
	}

	cfg := config.Default()
	cfg.Agent.CallName = callName
	cfg.Agent.Provider = provider

	if err := config.Save(path, cfg); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	fmt.Printf("Wrote %s\n\n", path)

	// Report what the environment already covers and what is still needed.
	checks := []struct {
		env      string
		required bool
		label    string
	}{
		{"BOBWIRE_DISCORD_TOKEN", true, "Discord bot token"},
		{"BOBWIRE_ANTHROPIC_API_KEY", provider == "anthropic", "Anthropic API key"},
		{"BOBWIRE_OPENAI_API_KEY", provider == "openai", "OpenAI API key"},
		{"BOBWIRE_OWNER_ID", false, "owner user ID (enables !tx and !control)"},
	}

	missing := 0
	for _, c := range checks {
		switch {
		case os.Getenv(c.env) != "":
			fmt.Printf("  [ok]      %s (%s)\n", c.label, c.env)
		case c.required:
			fmt.Printf("  [missing] %s: export %s\n", c.label, c.env)
			missing++
		default:
			fmt.Printf("  [skip]    %s: export %s to enable\n", c.label, c.env)
		}
	}

	fmt.Println()
	if missing > 0 {
		fmt.Println("Set the missing variables above, then run: bobwire serve")
	} else {
		fmt.Println("Everything needed is set. Run: bobwire serve")
	}
	return nil
}
