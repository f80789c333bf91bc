package cmd

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/streetlabs/bobwire/internal/config"
	"github.com/streetlabs/bobwire/internal/store"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the local setup and report problems",
		Run: func(cmd *cobra.Command, args []string) {
			if !runDoctor() {
				os.Exit(1)
			}
		},
	}
}

func runDoctor() bool {
	fmt.Printf("bobwire %s (%s, %s/%s)\n\n", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)

	healthy := true
	report := func(ok bool, label, detail string) {
		mark := "ok"
		if !ok {
			mark = "FAIL"
			healthy = false
		}
		fmt.Printf("  [%-4s] %-22s %s\n", mark, label, detail)
	}

	path := resolveConfigPath()
	if _, err := os.Stat(path); err == nil {
		report(true, "config file", path)
	} else {
		report(true, "config file", path+" (absent, using defaults and env)")
	}

	cfg, err := config.Load(path)
	if err != nil {
		report(false, "config parse", err.Error())
		return false
	}

	agent, disc, ctl, _ := cfg.Snapshot()

	report(disc.Token != "", "discord token",
		presence(disc.Token != "", "set", "missing (export BOBWIRE_DISCORD_TOKEN)"))
	report(true, "owner id",
		presence(disc.OwnerID != "", "set", "unset (owner commands disabled)"))

	keySet := agent.AnthropicAPIKey != "" || agent.OpenAIAPIKey != ""
	report(true, "provider", agent.Provider+" "+
		presence(keySet, "(key set)", "(no key, fixed-notice replies)"))

	dbPath := cfg.DatabasePath()
	st, err := store.NewSQLite(dbPath)
	if err != nil {
		report(false, "database", fmt.Sprintf("%s: %v", dbPath, err))
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := st.Ping(ctx)
		cancel()
		st.Close()
		if err != nil {
			report(false, "database", fmt.Sprintf("%s: %v", dbPath, err))
		} else {
			report(true, "database", dbPath)
		}
	}

	report(true, "control surface",
		presence(ctl.Enabled, fmt.Sprintf("enabled on %s:%d", ctl.Host, ctl.Port), "disabled"))

	fmt.Println()
	if healthy {
		fmt.Println("All checks passed.")
	} else {
		fmt.Println("Some checks failed; see above.")
	}
	return healthy
}

func presence(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}
