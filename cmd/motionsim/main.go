// Command motionsim runs the motion reporter firmware on a host, with a
// simulated sensor and either an in-process or a Bluetooth transport.
package main

import (
	"github.com/spf13/cobra"

	"github.com/mlsorensen/gomotion/internal/config"
)

var RootCmd = &cobra.Command{
	Use:   "motionsim",
	Short: "simulated motion reporter",
	Long:  "simulated motion reporter running the board firmware against a mock sensor",
}

func ServeCmdFlags(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "default configuration path")
	cmd.Flags().StringP("name", "n", "", "advertised device name")
	cmd.Flags().String("sensor", config.DefaultSensor, "sensor driver")
	cmd.Flags().StringP("transport", "t", config.DefaultTransport, "transport: mock or bluetooth")
	cmd.Flags().Bool("debug", false, "toggle debug logging")
}

var ServeCmd = &cobra.Command{
	Use: "serve",
	SuggestFor: []string{
		"ru", "ser",
	},
	Short: "serve runs the simulated reporter using predefined configs.",
	Long: `serve runs the simulated reporter using predefined configs, by the following order:
1. path specified in --config flag
2. path defined GOMOTION_CONFIG environment variable
3. default location $HOME/.config/gomotion/config.yaml, /etc/gomotion/config.yaml, current directory
The parameters in the configuration file will be overwritten by the following order:
1. command line arguments
2. environment variables
`,
	Example: `  motionsim serve --transport=bluetooth --name="Motion reporter sim"`,
	RunE:    serve,
}

var InitCmd = &cobra.Command{
	Use: "init",
	SuggestFor: []string{
		"ini", "in",
	},
	Short: "init create a configuration template",
	Long: `init create a configuration template.
If --print flag is present, the configuration will be printed to stdout.
If --output / -o flag is present, the configuration will be saved to the path specified
Otherwise init will output configuration file to $HOME/.config/gomotion/config.yaml
If --yes / -y flag is present, the configuration will be overwrite without confirmation
`,
	Example: `  motionsim init --print
  motionsim init -o /path/to/config.yaml -y`,
	RunE: config.InitCfg,
}

func getRootCmd() *cobra.Command {
	ServeCmdFlags(ServeCmd)
	RootCmd.AddCommand(ServeCmd)

	config.InitCmdFlags(InitCmd)
	RootCmd.AddCommand(InitCmd)

	return RootCmd
}

func main() {
	if err := getRootCmd().Execute(); err != nil {
		panic(err)
	}
}
