package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/taski/internal/jsonl"
)

func newExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export FILE",
		Short: "Write every task in the local store to a JSONL file",
		Long: `Export reads the store selected by backend/--data-dir directly, without
going through a server, and writes one task per line.`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(a.settings)
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := jsonl.Export(contextOrBackground(cmd), store, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d todos to %s\n", n, args[0])
			return nil
		},
	}
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Add the tasks of a JSONL file to the local store",
		Long: `Import appends each task of the file to the store selected by
backend/--data-dir. IDs already used are reassigned; lines without a title
are skipped.`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(a.settings)
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := jsonl.Import(contextOrBackground(cmd), store, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d todos from %s\n", n, args[0])
			return nil
		},
	}
}
