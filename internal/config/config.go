// Package config loads the host tools' configuration from flags, the
// environment and a yaml file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mlsorensen/gomotion"
)

const DefaultAppName = "gomotion"
const DefaultConfigName = "config"
const DefaultSensor = "mock"
const DefaultTransport = "mock"
const DefaultShakeEveryMS = 15000
const DefaultShakeForMS = 2000
const DefaultScanTimeoutS = 10
const DefaultInfluxURL = "http://localhost:8086"
const DefaultInfluxBucket = "motion"

var userHomeDir, _ = os.UserHomeDir()
var DefaultConfig = path.Join(userHomeDir, ".config/"+DefaultAppName+"/"+DefaultConfigName+".yaml")
var DefaultConfigSearchPath0 = path.Join(userHomeDir, ".config", DefaultAppName)

const DefaultConfigSearchPath1 = "/etc/" + DefaultAppName
const DefaultConfigSearchPath2 = "./"

var ErrConfigExists = errors.New("configuration already exists")

type DeviceOpt struct {
	Name      string `yaml:"name" mapstructure:"name"`
	Sensor    string `yaml:"sensor" mapstructure:"sensor"`
	Transport string `yaml:"transport" mapstructure:"transport"`
}

type SimOpt struct {
	ShakeEveryMS int `yaml:"shake_every_ms" mapstructure:"shake_every_ms"`
	ShakeForMS   int `yaml:"shake_for_ms" mapstructure:"shake_for_ms"`
}

type ClientOpt struct {
	Prefix       string `yaml:"prefix" mapstructure:"prefix"`
	Address      string `yaml:"address" mapstructure:"address"`
	ScanTimeoutS int    `yaml:"scan_timeout_s" mapstructure:"scan_timeout_s"`
}

type InfluxOpt struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	URL     string `yaml:"url" mapstructure:"url"`
	Token   string `yaml:"token" mapstructure:"token"`
	Org     string `yaml:"org" mapstructure:"org"`
	Bucket  string `yaml:"bucket" mapstructure:"bucket"`
}

type Opt struct {
	Device DeviceOpt `yaml:"device" mapstructure:"device"`
	Sim    SimOpt    `yaml:"sim" mapstructure:"sim"`
	Client ClientOpt `yaml:"client" mapstructure:"client"`
	Influx InfluxOpt `yaml:"influx" mapstructure:"influx"`
	Debug  bool      `yaml:"debug" mapstructure:"debug"`
}

type Desc struct {
	Opt   Opt
	Viper *viper.Viper
}

func NewDesc() Desc {
	return Desc{
		Opt:   NewOpt(),
		Viper: nil,
	}
}

func NewOpt() Opt {
	return Opt{
		Device: DeviceOpt{
			Name:      gomotion.DefaultNamePrefix,
			Sensor:    DefaultSensor,
			Transport: DefaultTransport,
		},
		Sim: SimOpt{
			ShakeEveryMS: DefaultShakeEveryMS,
			ShakeForMS:   DefaultShakeForMS,
		},
		Client: ClientOpt{
			Prefix:       gomotion.DefaultNamePrefix,
			ScanTimeoutS: DefaultScanTimeoutS,
		},
		Influx: InfluxOpt{
			URL:    DefaultInfluxURL,
			Bucket: DefaultInfluxBucket,
		},
		Debug: false,
	}
}

// flagKeys maps command line flags onto config keys. Flags a command does
// not define are skipped.
var flagKeys = map[string]string{
	"name":      "device.name",
	"sensor":    "device.sensor",
	"transport": "device.transport",
	"prefix":    "client.prefix",
	"address":   "client.address",
	"influx":    "influx.enabled",
	"debug":     "debug",
}

func (o *Desc) Parse(cmd *cobra.Command) error {
	vipCfg := viper.New()
	def := NewOpt()
	vipCfg.SetDefault("device.name", def.Device.Name)
	vipCfg.SetDefault("device.sensor", def.Device.Sensor)
	vipCfg.SetDefault("device.transport", def.Device.Transport)
	vipCfg.SetDefault("sim.shake_every_ms", def.Sim.ShakeEveryMS)
	vipCfg.SetDefault("sim.shake_for_ms", def.Sim.ShakeForMS)
	vipCfg.SetDefault("client.prefix", def.Client.Prefix)
	vipCfg.SetDefault("client.address", def.Client.Address)
	vipCfg.SetDefault("client.scan_timeout_s", def.Client.ScanTimeoutS)
	vipCfg.SetDefault("influx.enabled", def.Influx.Enabled)
	vipCfg.SetDefault("influx.url", def.Influx.URL)
	vipCfg.SetDefault("influx.token", def.Influx.Token)
	vipCfg.SetDefault("influx.org", def.Influx.Org)
	vipCfg.SetDefault("influx.bucket", def.Influx.Bucket)
	vipCfg.SetDefault("debug", def.Debug)

	if configFileCmd, err := cmd.Flags().GetString("config"); err == nil && configFileCmd != "" {
		vipCfg.SetConfigFile(configFileCmd)
	} else {
		configFileEnv := os.Getenv(strings.ToUpper(DefaultAppName) + "_CONFIG")
		if configFileEnv != "" {
			vipCfg.SetConfigFile(configFileEnv)
		} else {
			vipCfg.SetConfigName(DefaultConfigName)
			vipCfg.SetConfigType("yaml")
			vipCfg.AddConfigPath(DefaultConfigSearchPath0)
			vipCfg.AddConfigPath(DefaultConfigSearchPath1)
			vipCfg.AddConfigPath(DefaultConfigSearchPath2)
		}
	}

	vipCfg.SetEnvPrefix(DefaultAppName)
	vipCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vipCfg.AutomaticEnv()

	for flag, key := range flagKeys {
		if f := cmd.Flags().Lookup(flag); f != nil {
			_ = vipCfg.BindPFlag(key, f)
		}
	}

	// If a config file is found, read it in.
	if err := vipCfg.ReadInConfig(); err == nil {
		log.Debugln("using config file:", vipCfg.ConfigFileUsed())
	} else {
		log.Debugln(err)
	}

	if err := vipCfg.Unmarshal(&o.Opt); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	o.Viper = vipCfg
	return nil
}

func (o *Desc) PostParse() {
	if o.Opt.Debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

func (o *Desc) SaveConfig() error {
	if o.Viper == nil {
		return errors.New("viper is nil")
	}
	file := o.Viper.ConfigFileUsed()
	if file == "" {
		file = DefaultConfig
	}
	return DumpOption(o.Opt, file, true)
}

// DumpOption writes opt as yaml to outputPath, creating its directory.
// An existing file is only replaced when overwrite is set.
func DumpOption(opt interface{}, outputPath string, overwrite bool) error {
	buffer, err := yaml.Marshal(opt)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(path.Dir(outputPath), 0700); err != nil {
		return fmt.Errorf("cannot create directory: %w", err)
	}
	if !overwrite {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("%w: %s", ErrConfigExists, outputPath)
		}
	}

	log.Infoln("writing configuration to", outputPath)
	return os.WriteFile(outputPath, buffer, 0600)
}

// InitCfg prepares config for the application.
func InitCfg(cmd *cobra.Command, _ []string) error {
	printFlag, _ := cmd.Flags().GetBool("print")
	outputPath, _ := cmd.Flags().GetString("output")
	overwriteFlag, _ := cmd.Flags().GetBool("yes")

	desc := NewDesc()
	if err := desc.Parse(cmd); err != nil {
		log.Errorln(err)
		return err
	}

	if printFlag {
		configBuffer, _ := yaml.Marshal(desc.Opt)
		_, err := fmt.Fprintln(cmd.OutOrStdout(), string(configBuffer))
		return err
	}
	if outputPath == "" {
		outputPath = DefaultConfig
	}
	return DumpOption(desc.Opt, outputPath, overwriteFlag)
}

// InitCmdFlags registers the flags InitCfg reads.
func InitCmdFlags(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "configuration to start from")
	cmd.Flags().Bool("print", false, "print config to stdout")
	cmd.Flags().BoolP("yes", "y", false, "overwrite")
	cmd.Flags().StringP("output", "o", DefaultConfig, "specify output file")
}
