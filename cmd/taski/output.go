package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/mesh-intelligence/taski/pkg/types"
)

// listView is the --json shape of "taski list".
type listView struct {
	Incomplete []*types.Task `json:"incomplete"`
	Completed  []*types.Task `json:"completed"`
	Remaining  int           `json:"remaining"`
}

func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

func printList(w io.Writer, view listView) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	section := func(name string, tasks []*types.Task) {
		fmt.Fprintf(tw, "%s (%d)\n", name, len(tasks))
		for _, t := range tasks {
			fmt.Fprintf(tw, "  %s\t%d\t%s\t%s\n", checkbox(t.Completed), t.ID, t.Title, t.Description)
		}
	}
	section("Incomplete", view.Incomplete)
	section("Completed", view.Completed)
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\nYou've got %d tasks to do.\n", view.Remaining)
	return err
}

func printTask(w io.Writer, t *types.Task) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%d\n", t.ID)
	fmt.Fprintf(tw, "Title:\t%s\n", t.Title)
	if t.Description != "" {
		fmt.Fprintf(tw, "Description:\t%s\n", t.Description)
	}
	fmt.Fprintf(tw, "Completed:\t%s\n", strconv.FormatBool(t.Completed))
	fmt.Fprintf(tw, "Created:\t%s\n", t.CreatedAt.Local().Format("2006-01-02 15:04"))
	return tw.Flush()
}

func checkbox(done bool) string {
	if done {
		return "[x]"
	}
	return "[ ]"
}
