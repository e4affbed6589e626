package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"shardd/internal/download"
	"shardd/pkg/types"
)

func newFetchCmd() *cobra.Command {
	var (
		shard  types.Shard
		engine string
	)
	cmd := &cobra.Command{
		Use:     "fetch",
		Short:   "Download a shard's artifacts into the cache",
		Example: "  shardd fetch --model mlx-community/Llama-3.2-1B-Instruct-4bit --start 0 --end 15 --layers 16",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := shard.Validate(); err != nil {
				return err
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if engine == "" {
				engine = cfg.EngineName
			}
			log := newLogger(cfg)
			dl, closeDB, err := newDownloader(cfg, log)
			if err != nil {
				return err
			}
			defer closeDB()

			out := cmd.OutOrStdout()
			dl.OnProgress().Register("cli", download.Throttle(cfg.BroadcastInterval.D(), func(_ types.Shard, ev types.ProgressEvent) {
				if ev.Status != types.DownloadInProgress {
					return
				}
				fmt.Fprintf(out, "\r%s: %s / %s (%.1f%%) %s/s",
					ev.ModelID,
					humanize.Bytes(uint64(ev.DownloadedBytes)),
					humanize.Bytes(uint64(ev.TotalBytes)),
					download.Percent(ev.DownloadedBytes, ev.TotalBytes),
					humanize.Bytes(uint64(ev.SpeedBps)))
			}))
			dir, err := dl.EnsureShard(cmd.Context(), shard, engine)
			fmt.Fprintln(out)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, dir)
			return nil
		},
	}
	cmd.Flags().StringVar(&shard.ModelID, "model", "", "Model id (hub repository or local path)")
	cmd.Flags().IntVar(&shard.StartLayer, "start", 0, "First layer (inclusive)")
	cmd.Flags().IntVar(&shard.EndLayer, "end", 0, "Last layer (inclusive)")
	cmd.Flags().IntVar(&shard.NLayers, "layers", 0, "Total number of model layers")
	cmd.Flags().StringVar(&engine, "engine", "", "Engine namespace for the recorded status")
	_ = cmd.MarkFlagRequired("model")
	_ = cmd.MarkFlagRequired("layers")
	return cmd
}
