package main

import (
	"fmt"
	"io"
	"log/slog"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/texcomp"
)

// app holds the state shared by all subcommands.
type app struct {
	verbose bool
	stderr  io.Writer
	w       io.Writer

	fw *texcomp.Framework
	p  *message.Printer
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "texc",
		Short: "Texture compression tool",
		Long: `texc converts textures to block-compressed formats on the CPU or a GPU
compute backend, and inspects the mip chains of texture files.`,
		Version:       texcomp.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			a.setup(cmd.OutOrStdout())
		},
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log progress and backend details")
	root.SetVersionTemplate(fmt.Sprintf(
		"texc %s (%s/%s, %s)\n",
		texcomp.Version, runtime.GOOS, runtime.GOARCH, runtime.Version(),
	))

	root.AddCommand(
		a.convertCommand(),
		a.infoCommand(),
		a.formatsCommand(),
	)
	return root
}

// setup creates the framework once flags are parsed.
func (a *app) setup(w io.Writer) {
	a.w = w
	a.p = message.NewPrinter(language.English)

	var opts []texcomp.Option
	if a.verbose {
		l := slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
		opts = append(opts, texcomp.WithLogger(l))
	}
	a.fw = texcomp.NewFramework(opts...)
}

// printf writes to the command output with English number grouping.
func (a *app) printf(format string, args ...any) {
	a.p.Fprintf(a.w, format, args...)
}
