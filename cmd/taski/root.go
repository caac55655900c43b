package main

import (
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/taski/internal/logging"
)

// rootFlags holds global flag values.
type rootFlags struct {
	configDir string
	dataDir   string
	apiURL    string
	jsonMode  bool
}

// app is the state shared by every subcommand of one invocation.
type app struct {
	flags    rootFlags
	settings *settings
}

// newRootCmd builds the command tree. Each call returns an independent tree.
func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "taski",
		Short: "A small task tracker: REST server and command-line client",
		Long: `taski keeps a list of short tasks split into incomplete and completed.

"taski serve" runs the REST service over a SQLite, MongoDB or in-memory
store. The other commands talk to a running service through --api-url.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadDotEnv(); err != nil {
				return err
			}
			s, err := resolveSettings(&a.flags)
			if err != nil {
				return err
			}
			if err := logging.Init(s.log); err != nil {
				return usageError{err}
			}
			a.settings = s
			return nil
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError{err}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: $(CWD)/.taski)")
	pf.StringVar(&a.flags.dataDir, "data-dir", "", "data directory (default: $(CWD)/.taski-db)")
	pf.StringVar(&a.flags.apiURL, "api-url", "", "task collection URL (default: http://localhost:5000/api/todos)")
	pf.BoolVar(&a.flags.jsonMode, "json", false, "output as JSON")

	root.AddCommand(
		newVersionCmd(),
		newServeCmd(a),
		newListCmd(a),
		newShowCmd(a),
		newAddCmd(a),
		newEditCmd(a),
		newDoneCmd(a, true),
		newDoneCmd(a, false),
		newRemoveCmd(a),
		newClearCompletedCmd(a),
		newMoveCmd(a),
		newExportCmd(a),
		newImportCmd(a),
	)
	return root
}
