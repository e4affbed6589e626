package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"shardd/internal/storage/sqlite"
)

func newStatusCmd() *cobra.Command {
	var (
		engine string
		dbPath string
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "List download statuses persisted in the status database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if dbPath != "" {
				cfg.StatusDB = dbPath
			}
			if cfg.StatusDB == "" {
				return fmt.Errorf("no status database configured (set status_db or SHARDD_STATUS_DB)")
			}
			db, err := sqlite.InitDB(cfg.StatusDB)
			if err != nil {
				return err
			}
			defer db.Close()
			recs, err := sqlite.NewStatusRepository(db).GetStatuses(cmd.Context(), engine)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ENGINE\tSHARD\tSTATUS\tPROGRESS\tUPDATED")
			for _, r := range recs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s / %s\t%s\n",
					r.Engine, r.Shard, r.Status.Status,
					humanize.Bytes(uint64(r.Status.DownloadedBytes)),
					humanize.Bytes(uint64(r.Status.TotalBytes)),
					humanize.Time(r.UpdatedAt))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&engine, "engine", "", "Only list this engine (all when empty)")
	cmd.Flags().StringVar(&dbPath, "db", "", "Status database path (overrides status_db)")
	return cmd
}
