// Command motionclient finds motion reporters, streams their samples and
// reads or writes their settings.
package main

import (
	"github.com/spf13/cobra"

	"github.com/mlsorensen/gomotion"
	"github.com/mlsorensen/gomotion/internal/config"
)

var RootCmd = &cobra.Command{
	Use:   "motionclient",
	Short: "motion reporter client",
	Long:  "motion reporter client: scan for reporters, stream samples and change settings",
}

func commonFlags(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "default configuration path")
	cmd.Flags().String("prefix", gomotion.DefaultNamePrefix, "advertised name prefix to look for")
	cmd.Flags().StringP("address", "a", "", "connect only to the reporter with this address")
	cmd.Flags().Bool("debug", false, "toggle debug logging")
}

var ScanCmd = &cobra.Command{
	Use:     "scan",
	Short:   "scan lists the reporters in range",
	Example: `  motionclient scan --prefix="Motion reporter"`,
	RunE:    scan,
}

func StreamCmdFlags(cmd *cobra.Command) {
	commonFlags(cmd)
	cmd.Flags().Bool("influx", false, "also record samples to InfluxDB")
}

var StreamCmd = &cobra.Command{
	Use:   "stream",
	Short: "stream connects to a reporter and logs its samples",
	Long: `stream connects to a reporter and logs its samples until interrupted.
If --influx flag is present, the samples are also written to the InfluxDB
configured under influx: in the configuration file.
`,
	Example: `  motionclient stream --influx`,
	RunE:    stream,
}

var SetCmd = &cobra.Command{
	Use:   "set <attribute> <value>",
	Short: "set writes one setting",
	Example: `  motionclient set motion-read-duration 3
  motionclient set play-sound true
  motionclient set manual-read true`,
	Args: cobra.ExactArgs(2),
	RunE: set,
}

var GetCmd = &cobra.Command{
	Use:     "get <attribute>",
	Short:   "get reads one setting",
	Example: `  motionclient get firmware-version`,
	Args:    cobra.ExactArgs(1),
	RunE:    get,
}

var AttributesCmd = &cobra.Command{
	Use:   "attributes",
	Short: "attributes lists the settings a reporter exposes",
	RunE:  attributes,
}

func getRootCmd() *cobra.Command {
	commonFlags(ScanCmd)
	RootCmd.AddCommand(ScanCmd)

	StreamCmdFlags(StreamCmd)
	RootCmd.AddCommand(StreamCmd)

	commonFlags(SetCmd)
	RootCmd.AddCommand(SetCmd)

	commonFlags(GetCmd)
	RootCmd.AddCommand(GetCmd)

	RootCmd.AddCommand(AttributesCmd)

	config.InitCmdFlags(InitCmd)
	RootCmd.AddCommand(InitCmd)

	return RootCmd
}

var InitCmd = &cobra.Command{
	Use:     "init",
	Short:   "init create a configuration template",
	Example: `  motionclient init --print`,
	RunE:    config.InitCfg,
}

func main() {
	if err := getRootCmd().Execute(); err != nil {
		panic(err)
	}
}
