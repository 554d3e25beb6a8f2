package commands

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/autoflux/autoflux/internal/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Manage the cycle journal database",
}

func init() {
	journalCmd.AddCommand(journalMigrateCmd, journalVersionCmd)
	journalMigrateCmd.Flags().Bool("down", false, "roll back the most recent migration instead")
}

var journalMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply journal schema migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, err := openJournalDB()
		if err != nil {
			return err
		}
		defer db.Close() //nolint:errcheck

		down, _ := cmd.Flags().GetBool("down")
		if down {
			if err := journal.MigrateDown(db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "rolled back one migration")
			return nil
		}
		if err := journal.MigrateUp(db); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "journal schema up to date")
		return nil
	},
}

var journalVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the journal schema version",
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, err := openJournalDB()
		if err != nil {
			return err
		}
		defer db.Close() //nolint:errcheck

		version, dirty, err := journal.MigrateVersion(db)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "version %d dirty %v\n", version, dirty)
		return nil
	},
}

// openJournalDB opens the journal database named by the config. The journal
// does not need to be enabled, only configured with a path.
func openJournalDB() (*sql.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Journal.Path == "" {
		return nil, errors.New("no journal path configured; set journal.path in the config")
	}
	return sql.Open("sqlite", cfg.Journal.Path)
}
