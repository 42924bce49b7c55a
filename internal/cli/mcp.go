package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/variant-lollipop-server/internal/setup"
)

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Register the lollipop MCP server with a desktop MCP client",
	}
	cmd.AddCommand(newMCPRegisterCmd(), newMCPStatusCmd())
	return cmd
}

func newMCPRegisterCmd() *cobra.Command {
	var (
		opts setup.RegisterOptions
		env  []string
	)
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Add the lollipop-mcp server to the client configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			vars, err := parseEnv(env)
			if err != nil {
				return err
			}
			opts.Env = vars
			path, err := setup.Register(opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s in %s\n", serverName(opts.ServerName), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.ConfigPath, "client-config", "", "client configuration file (default desktop client location)")
	cmd.Flags().StringVarP(&opts.BinaryPath, "binary", "b", "", "path to lollipop-mcp (default searched on PATH)")
	cmd.Flags().StringVarP(&opts.ServerName, "name", "n", setup.DefaultServerName, "server name in the client configuration")
	cmd.Flags().StringArrayVarP(&env, "env", "e", nil, "KEY=VALUE passed to the server, repeatable")
	return cmd
}

func newMCPStatusCmd() *cobra.Command {
	var path, name string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether the server is registered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				var err error
				if path, err = setup.DefaultClientConfigPath(); err != nil {
					return err
				}
			}
			status, err := setup.GetStatus(path, name)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "config:     %s\n", status.ConfigPath)
			fmt.Fprintf(out, "registered: %t\n", status.Registered)
			if status.Command != "" {
				fmt.Fprintf(out, "command:    %s\n", status.Command)
			}
			for _, issue := range status.Issues {
				fmt.Fprintf(out, "issue:      %s\n", issue)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "client-config", "", "client configuration file (default desktop client location)")
	cmd.Flags().StringVarP(&name, "name", "n", setup.DefaultServerName, "server name in the client configuration")
	return cmd
}

func parseEnv(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	vars := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("--env expects KEY=VALUE, got %q", pair)
		}
		vars[key] = value
	}
	return vars, nil
}

func serverName(name string) string {
	if name == "" {
		return setup.DefaultServerName
	}
	return name
}
