// Package cli is the command line front end of the lollipop layout engine.
package cli

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/variant-lollipop-server/internal/config"
)

// Version of the command line tool
const Version = "1.0.0"

type rootOptions struct {
	configFile string
	logLevel   string
}

// NewRootCommand builds the lollipop command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use: "lollipop",
		Short: `Lay out protein variants as collision-free lollipop diagrams.
Tracks are read from YAML, variants from the track file, a VCF or the remote variant API`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "configuration file (default ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override logging.level")

	rootCmd.AddCommand(newRenderCmd(opts))
	rootCmd.AddCommand(newLayoutCmd(opts))
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newMCPCmd())

	return rootCmd
}

// Execute runs the command tree. This is called by main.main().
func Execute() {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		rootCmd.PrintErrln("Error:", err)
		os.Exit(1)
	}
}

// load reads the configuration and builds a logger that writes to the
// command's stderr, keeping stdout free for documents.
func (o *rootOptions) load(cmd *cobra.Command) (*config.Manager, *logrus.Logger, error) {
	var managerOpts []config.ManagerOption
	if o.configFile != "" {
		managerOpts = append(managerOpts, config.WithConfigFile(o.configFile))
	}
	cfgManager, err := config.NewManager(managerOpts...)
	if err != nil {
		return nil, nil, err
	}
	if err := cfgManager.Validate(); err != nil {
		return nil, nil, err
	}

	logger := config.NewLogger(cfgManager.GetConfig().Logging)
	logger.SetOutput(cmd.ErrOrStderr())
	if o.logLevel != "" {
		level, err := logrus.ParseLevel(o.logLevel)
		if err != nil {
			return nil, nil, err
		}
		logger.SetLevel(level)
	}
	return cfgManager, logger, nil
}
