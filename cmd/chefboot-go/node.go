package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/chefboot-go/internal/app"
)

func newNodeCmd(opts *rootOptions) *cobra.Command {
	node := &cobra.Command{
		Use:   "node",
		Short: "Query nodes on the chef server",
	}
	node.AddCommand(&cobra.Command{
		Use:   "exists <name>",
		Short: "Print true if the node is registered, false otherwise",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			if a.Chef == nil {
				return errors.New("chef.client is not configured")
			}
			ok, err := a.Chef.NodeExists(ctx, args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(opts.stdout, ok)
			return err
		},
	})
	return node
}
