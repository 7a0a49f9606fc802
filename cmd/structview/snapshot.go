package main

import (
	"fmt"

	"github.com/segmentio/ksuid"
	"github.com/spf13/cobra"

	"github.com/wippyai/structview/snapshot"
)

func newSnapshotCmd(o *options) *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Save and restore decoded copies of a table",
		Long: `Snapshots keep every record of a table in a bbolt file so a data file can
be restored after editing.

Example:
  structview snapshot save -s frame.yaml -f frames.bin --db frames.snap
  structview snapshot list --db frames.snap
  structview snapshot restore -s frame.yaml -f frames.bin --db frames.snap <id>`,
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", "structview.snap", "snapshot file")

	openStore := func() (*snapshot.Store, error) {
		return snapshot.Open(dbPath, snapshot.WithLogger(o.logger))
	}

	save := &cobra.Command{
		Use:   "save",
		Short: "Snapshot the current table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := o.open(cmd.Context())
			if err != nil {
				return err
			}
			defer t.close()
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			info, err := store.Save(t.view)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), info.ID)
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List snapshots in creation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			infos, err := store.List()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, info := range infos {
				fmt.Fprintf(w, "%s  %s  %-16s %6d × %d\n",
					info.ID, info.Created.Format("2006-01-02 15:04:05"), info.Schema, info.Count, info.Stride)
			}
			return nil
		},
	}

	restore := &cobra.Command{
		Use:   "restore <id>",
		Short: "Write a snapshot back into a data file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := ksuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid snapshot id: %w", err)
			}
			if o.wasmPath != "" {
				return fmt.Errorf("restore works on data files only")
			}
			t, err := o.open(cmd.Context())
			if err != nil {
				return err
			}
			defer t.close()
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Restore(id, t.view); err != nil {
				return err
			}
			return o.save(t)
		},
	}

	remove := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := ksuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid snapshot id: %w", err)
			}
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			return store.Delete(id)
		},
	}

	cmd.AddCommand(save, list, restore, remove)
	return cmd
}
