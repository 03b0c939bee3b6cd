package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/chefboot-go/internal/app"
	"github.com/John-Robertt/chefboot-go/internal/statement"
)

func newRenderCmd(opts *rootOptions) *cobra.Command {
	var osName string
	cmd := &cobra.Command{
		Use:   "render <group>",
		Short: "Print the boot script for a node group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			family, err := statement.ParseFamily(osName)
			if err != nil {
				return err
			}
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			ctx, cancel := context.WithTimeout(ctx, cfg.HTTP.RequestTimeout)
			defer cancel()

			a, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			return render(ctx, a, args[0], family, opts.stdout)
		},
	}
	cmd.Flags().StringVar(&osName, "os", "unix", "target OS family (unix, windows)")
	return cmd
}

func render(ctx context.Context, a *app.App, group string, family statement.Family, w io.Writer) error {
	st, err := a.Synth.Synthesize(ctx, group)
	if err != nil {
		return err
	}
	script, err := statement.Script(st, family)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, script)
	return err
}
