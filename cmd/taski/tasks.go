package main

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/taski/internal/logging"
	"github.com/mesh-intelligence/taski/pkg/client"
	"github.com/mesh-intelligence/taski/pkg/tasklist"
	"github.com/mesh-intelligence/taski/pkg/types"
)

// withList loads the task list from the configured API and runs fn on it.
func (a *app) withList(cmd *cobra.Command, fn func(ctx context.Context, list *tasklist.State) error) error {
	opts := a.settings.breaker
	opts.HTTPClient = &http.Client{Timeout: a.settings.httpTimeout}
	opts.Logger = logging.Logger
	remote := client.New(a.settings.apiURL, opts)

	list := tasklist.New(remote, tasklist.WithLogger(logging.Logger))
	defer list.Close()

	ctx := contextOrBackground(cmd)
	if err := list.Load(ctx); err != nil {
		return err
	}
	return fn(ctx, list)
}

// parseID reads a task ID argument.
func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, usageError{fmt.Errorf("%w: %q", types.ErrInvalidID, arg)}
	}
	return id, nil
}

func newListCmd(a *app) *cobra.Command {
	var search string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, incomplete first",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withList(cmd, func(ctx context.Context, list *tasklist.State) error {
				incomplete, completed := list.Search(search)
				remaining, _ := list.Counts()
				view := listView{Incomplete: incomplete, Completed: completed, Remaining: remaining}
				if a.flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), view)
				}
				return printList(cmd.OutOrStdout(), view)
			})
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "only titles containing this text (case-insensitive)")
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show one task",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.withList(cmd, func(ctx context.Context, list *tasklist.State) error {
				task, ok := list.Get(id)
				if !ok {
					return fmt.Errorf("todo %d: %w", id, types.ErrNotFound)
				}
				if a.flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), task)
				}
				return printTask(cmd.OutOrStdout(), task)
			})
		},
	}
}

func newAddCmd(a *app) *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "add TITLE",
		Short: "Create a task",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withList(cmd, func(ctx context.Context, list *tasklist.State) error {
				task, err := list.Create(ctx, args[0], description)
				if err != nil {
					return err
				}
				if a.flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), task)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created todo %d: %s\n", task.ID, task.Title)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "task description")
	return cmd
}

func newEditCmd(a *app) *cobra.Command {
	var title, description string
	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Change a task's title or description",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var patch types.Patch
			if cmd.Flags().Changed("title") {
				patch.Title = types.String(title)
			}
			if cmd.Flags().Changed("description") {
				patch.Description = types.String(description)
			}
			if patch.IsEmpty() {
				return usageError{fmt.Errorf("edit: nothing to change, set --title or --description")}
			}
			return a.withList(cmd, func(ctx context.Context, list *tasklist.State) error {
				if err := list.Update(ctx, id, patch); err != nil {
					return err
				}
				return a.report(cmd, list, id, "Updated todo %d\n")
			})
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "new title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "new description")
	return cmd
}

func newDoneCmd(a *app, completed bool) *cobra.Command {
	use, short, msg := "done ID", "Mark a task completed", "Completed todo %d\n"
	if !completed {
		use, short, msg = "undo ID", "Mark a task incomplete", "Reopened todo %d\n"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.withList(cmd, func(ctx context.Context, list *tasklist.State) error {
				if _, ok := list.Get(id); !ok {
					return fmt.Errorf("todo %d: %w", id, types.ErrNotFound)
				}
				if err := list.SetCompleted(ctx, id, completed); err != nil {
					return err
				}
				return a.report(cmd, list, id, msg)
			})
		},
	}
}

func newRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm ID",
		Aliases: []string{"delete"},
		Short:   "Delete a task",
		Args:    exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.withList(cmd, func(ctx context.Context, list *tasklist.State) error {
				if err := list.Delete(ctx, id); err != nil {
					return err
				}
				if a.flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), map[string]any{"id": id, "message": "Todo deleted"})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted todo %d\n", id)
				return nil
			})
		},
	}
}

func newClearCompletedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-completed",
		Short: "Delete every completed task",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withList(cmd, func(ctx context.Context, list *tasklist.State) error {
				_, n := list.Counts()
				if err := list.DeleteAllCompleted(ctx); err != nil {
					return err
				}
				if a.flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), map[string]any{"deleted": n, "message": "All Completed Todos deleted"})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d completed todos\n", n)
				return nil
			})
		},
	}
}

func newMoveCmd(a *app) *cobra.Command {
	var (
		to    string
		index int
	)
	cmd := &cobra.Command{
		Use:   "move ID --to incomplete|completed",
		Short: "Move a task to a position in either list",
		Long: `Move drags a task to --index in the list named by --to (default: the end).

Moving between lists changes the task's completion on the server. Reordering
within a list only affects this listing and is not saved.`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			dest, err := tasklist.ParsePartition(to)
			if err != nil {
				return usageError{err}
			}
			return a.withList(cmd, func(ctx context.Context, list *tasklist.State) error {
				src, ok := list.Locate(id)
				if !ok {
					return fmt.Errorf("todo %d: %w", id, types.ErrNotFound)
				}
				incomplete, completed := list.Counts()
				size := incomplete
				if dest == tasklist.PartitionCompleted {
					size = completed
				}
				if src.List == dest {
					size--
				}
				at := size
				if cmd.Flags().Changed("index") {
					at = index
				}

				drag := tasklist.Drag{Source: src, Destination: &tasklist.Location{List: dest, Index: at}}
				if err := list.Move(ctx, drag); err != nil {
					return err
				}
				if a.flags.jsonMode {
					incomplete, completed := list.Search("")
					remaining, _ := list.Counts()
					return printJSON(cmd.OutOrStdout(), listView{Incomplete: incomplete, Completed: completed, Remaining: remaining})
				}
				loc, _ := list.Locate(id)
				fmt.Fprintf(cmd.OutOrStdout(), "Moved todo %d to %s[%d]\n", id, loc.List, loc.Index)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "destination list: incomplete or completed")
	cmd.Flags().IntVar(&index, "index", 0, "position in the destination list (default: end)")
	return cmd
}

// report prints the task after a successful mutation.
func (a *app) report(cmd *cobra.Command, list *tasklist.State, id int64, format string) error {
	if a.flags.jsonMode {
		if task, ok := list.Get(id); ok {
			return printJSON(cmd.OutOrStdout(), task)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), format, id)
	return nil
}
