package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/credent-works/certverify-cli/internal/match"
	"github.com/credent-works/certverify-cli/internal/store"
)

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Inspect and manage the approved-institute registry",
}

// -- registry status --

var registryStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show registry file summary",
	RunE: func(cmd *cobra.Command, _ []string) error {
		reg, err := loadRegistry()
		if err != nil {
			return eris.Wrap(err, "registry status")
		}

		fmt.Fprintf(os.Stdout, "source: %s\nentries: %d\n", reg.Source(), reg.Len())
		return nil
	},
}

// -- registry search --

var registrySearchCmd = &cobra.Command{
	Use:   "search <institution name>",
	Short: "Match an institution name against the registry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry()
		if err != nil {
			return eris.Wrap(err, "registry search")
		}

		outcome := match.Match(args[0], reg)
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(outcome)
	},
}

// -- registry import --

var registryImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import the registry file into PostgreSQL",
	Long:  "Loads the configured registry file and upserts entries into the registry_entries table. Requires the postgres store driver.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if cfg.Store.Driver != "postgres" {
			return eris.New("registry import requires store.driver=postgres")
		}

		reg, err := loadRegistry()
		if err != nil {
			return eris.Wrap(err, "registry import")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		pg, ok := st.(*store.PostgresStore)
		if !ok {
			return eris.New("registry import requires the postgres store")
		}

		entries := make([][2]string, 0, reg.Len())
		for _, e := range reg.Entries() {
			display := ""
			if len(e.Fields) > 0 {
				display = e.Fields[0]
			}
			entries = append(entries, [2]string{e.Normalized, display})
		}

		n, err := pg.ImportRegistry(ctx, entries, reg.Source())
		if err != nil {
			return eris.Wrap(err, "registry import")
		}

		zap.L().Info("registry imported",
			zap.String("source", reg.Source()),
			zap.Int64("rows", n),
		)
		fmt.Fprintf(os.Stdout, "imported %d entries from %s\n", n, reg.Source())
		return nil
	},
}

func init() {
	registryCmd.AddCommand(registryStatusCmd)
	registryCmd.AddCommand(registrySearchCmd)
	registryCmd.AddCommand(registryImportCmd)
	rootCmd.AddCommand(registryCmd)
}
