package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func newCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("config", "", "")
	cmd.Flags().String("sensor", DefaultSensor, "")
	cmd.Flags().Bool("debug", false, "")
	require.NoError(t, cmd.Flags().Parse(args))
	return cmd
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0600))
	return p
}

func TestParseDefaults(t *testing.T) {
	desc := NewDesc()
	require.NoError(t, desc.Parse(newCmd(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"))))
	assert.Equal(t, NewOpt(), desc.Opt)
	assert.NotNil(t, desc.Viper)
}

func TestParseFileEnvAndFlags(t *testing.T) {
	p := writeFile(t, `
device:
  name: Motion reporter bench
  sensor: mpu6050
sim:
  shake_every_ms: 500
influx:
  enabled: true
  org: lab
`)
	t.Setenv("GOMOTION_INFLUX_BUCKET", "bench")

	desc := NewDesc()
	require.NoError(t, desc.Parse(newCmd(t, "--config", p, "--debug")))

	assert.Equal(t, "Motion reporter bench", desc.Opt.Device.Name)
	assert.Equal(t, "mpu6050", desc.Opt.Device.Sensor)
	assert.Equal(t, DefaultTransport, desc.Opt.Device.Transport)
	assert.Equal(t, 500, desc.Opt.Sim.ShakeEveryMS)
	assert.Equal(t, DefaultShakeForMS, desc.Opt.Sim.ShakeForMS)
	assert.True(t, desc.Opt.Influx.Enabled)
	assert.Equal(t, "lab", desc.Opt.Influx.Org)
	assert.Equal(t, "bench", desc.Opt.Influx.Bucket, "environment beats the file")
	assert.True(t, desc.Opt.Debug)

	desc = NewDesc()
	require.NoError(t, desc.Parse(newCmd(t, "--config", p, "--sensor", "mock")))
	assert.Equal(t, "mock", desc.Opt.Device.Sensor, "flags beat the file")
}

func TestConfigEnvVar(t *testing.T) {
	p := writeFile(t, "client:\n  address: AA:BB:CC:DD:EE:FF\n")
	t.Setenv("GOMOTION_CONFIG", p)

	desc := NewDesc()
	require.NoError(t, desc.Parse(newCmd(t)))
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", desc.Opt.Client.Address)
}

func TestInitCfg(t *testing.T) {
	t.Setenv("GOMOTION_CONFIG", filepath.Join(t.TempDir(), "none.yaml"))

	cmd := &cobra.Command{Use: "init", RunE: InitCfg}
	InitCmdFlags(cmd)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--print"})
	require.NoError(t, cmd.Execute())

	var opt Opt
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &opt))
	assert.Equal(t, NewOpt(), opt)

	dst := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cmd = &cobra.Command{Use: "init", RunE: InitCfg}
	InitCmdFlags(cmd)
	cmd.SetArgs([]string{"-o", dst})
	require.NoError(t, cmd.Execute())
	assert.FileExists(t, dst)
}

func TestDumpOptionOverwrite(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, DumpOption(NewOpt(), dst, false))
	assert.ErrorIs(t, DumpOption(NewOpt(), dst, false), ErrConfigExists)

	opt := NewOpt()
	opt.Debug = true
	require.NoError(t, DumpOption(opt, dst, true))

	raw, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "debug: true")
}

func TestPostParse(t *testing.T) {
	desc := NewDesc()
	desc.Opt.Debug = true
	desc.PostParse()
	assert.Equal(t, "debug", logLevel())
	desc.Opt.Debug = false
	desc.PostParse()
	assert.Equal(t, "info", logLevel())
}

func logLevel() string {
	return log.GetLevel().String()
}
