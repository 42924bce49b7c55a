package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newLayoutCmd(root *rootOptions) *cobra.Command {
	opts := &plotOptions{}
	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Compute node positions and clusters as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return layoutExec(cmd, root, opts)
		},
		SuggestionsMinimumDistance: 3,
	}
	opts.register(cmd)
	return cmd
}

func layoutExec(cmd *cobra.Command, root *rootOptions, opts *plotOptions) error {
	layouts, req, _, err := opts.plan(cmd, root)
	if err != nil {
		return err
	}

	result, err := layouts.ComputeLayout(commandContext(cmd), req)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode layout: %w", err)
	}
	return writeOutput(cmd, opts.out, append(data, '\n'))
}
