package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/meigma/packfs"
)

// app carries the state shared by every subcommand.
type app struct {
	stdout  io.Writer
	stderr  io.Writer
	verbose bool
	logger  *slog.Logger
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "packfs",
		Short: "packed-file archive tool",
		Long: `
Create, inspect, and edit packed-file archives: single files holding many
named files with fixed capacities. Archive paths starting with http:// or
https:// are opened read-only over HTTP range requests.
`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			level := slog.LevelWarn
			if a.verbose {
				level = slog.LevelDebug
			}
			a.logger = slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log debug output")

	root.AddCommand(
		a.createCmd(),
		a.lsCmd(),
		a.infoCmd(),
		a.addCmd(),
		a.catCmd(),
		a.rmCmd(),
		a.mvCmd(),
		a.exportCmd(),
		a.extractCmd(),
	)
	return root
}

// withArchive loads the archive at path, runs fn, and shuts the archive down.
func (a *app) withArchive(path string, access packfs.Access, fn func(*packfs.Archive) error) (err error) {
	m := packfs.NewManager(packfs.WithManagerLogger(a.logger))
	defer func() {
		if closeErr := m.Close(); err == nil {
			err = closeErr
		}
	}()

	arc, err := m.Load(path, access)
	if err != nil {
		return err
	}
	return fn(arc)
}
