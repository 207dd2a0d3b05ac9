// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/relabs-tech/inertial_dmp/internal/app"
	"github.com/relabs-tech/inertial_dmp/internal/config"
	"github.com/relabs-tech/inertial_dmp/internal/dmp"
)

var v = config.NewViper()

var RootCmd = &cobra.Command{
	Use:   "inertial_dmp",
	Short: "MPU-6050 DMP reader and MQTT publisher",
	Long: `inertial_dmp brings up the MPU-6050 Digital Motion Processor, drains its
FIFO packets and publishes orientation over MQTT.

Configuration is read from a KEY=VALUE file (--config, default ` + config.DefaultConfigPath + `).
Every key can be overridden with an ` + config.EnvPrefix + `_ prefixed environment variable.
`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("config")
	if _, err := os.Stat(path); err != nil && !cmd.Flags().Changed("config") {
		// The default file is optional.
		path = ""
	}
	if err := config.InitGlobal(v, path); err != nil {
		return err
	}
	config.ConfigureLogging(config.Get().Debug)
	return nil
}

var ProduceCmd = &cobra.Command{
	Use:        "produce",
	SuggestFor: []string{"prod", "run"},
	Short:      "bring up the DMP and publish its samples",
	Long: `produce opens the source selected by DMP_SOURCE (i2c, spi, serial or sim),
loads the DMP firmware when the source is a register bus, and publishes
quaternion, pose, raw and motion payloads on every IMU_SAMPLE_INTERVAL tick.
`,
	Example: `  inertial_dmp produce --config=/etc/inertial_config.txt
  INERTIAL_DMP_SOURCE=sim inertial_dmp produce --debug`,
	RunE: func(cmd *cobra.Command, args []string) error { return app.RunDMPProducer() },
}

var ConsoleCmd = &cobra.Command{
	Use:   "console",
	Short: "print published samples to the terminal",
	RunE:  func(cmd *cobra.Command, args []string) error { return app.RunConsoleMQTT() },
}

var WebCmd = &cobra.Command{
	Use:   "web",
	Short: "serve the latest orientation over HTTP and websocket",
	RunE:  func(cmd *cobra.Command, args []string) error { return app.RunWeb() },
}

var DisplayCmd = &cobra.Command{
	Use:   "display",
	Short: "show the latest orientation on an SSD1306 OLED",
	RunE:  func(cmd *cobra.Command, args []string) error { return app.RunDisplay() },
}

var LayoutsCmd = &cobra.Command{
	Use:   "layouts",
	Short: "print the known packet layouts as YAML",
	Long: `layouts prints the built-in packet layouts followed by those declared in
DMP_LAYOUT_FILE. The output is itself a valid DMP_LAYOUT_FILE.
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printLayouts(cmd.OutOrStdout(), config.Get())
	},
}

var RegistersCmd = &cobra.Command{
	Use:        "registers",
	SuggestFor: []string{"regs", "dump"},
	Short:      "dump the MPU-6050 registers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.RunRegisterDump(cmd.OutOrStdout())
	},
}

// printLayouts writes the effective layout set. A file layout replaces the
// built-in of the same name, matching dmp.LookupLayout.
func printLayouts(w io.Writer, cfg *config.Config) error {
	var extra map[string]dmp.Layout
	if cfg.DMPLayoutFile != "" {
		var err error
		if extra, err = dmp.LoadLayouts(cfg.DMPLayoutFile); err != nil {
			return err
		}
	}
	var layouts []dmp.Layout
	for _, l := range dmp.BuiltinLayouts() {
		if _, shadowed := extra[l.Name]; !shadowed {
			layouts = append(layouts, l)
		}
	}
	names := make([]string, 0, len(extra))
	for name := range extra {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		layouts = append(layouts, extra[name])
	}
	out, err := dmp.MarshalLayouts(layouts)
	if err != nil {
		return fmt.Errorf("marshal layouts: %w", err)
	}
	_, err = w.Write(out)
	return err
}

func rootFlags(cmd *cobra.Command, v *viper.Viper) {
	cmd.PersistentFlags().String("config", config.DefaultConfigPath, "KEY=VALUE configuration file")
	cmd.PersistentFlags().Bool("debug", false, "toggle debug logging")
	if err := v.BindPFlag("DEBUG", cmd.PersistentFlags().Lookup("debug")); err != nil {
		log.Fatalf("bind flag: %v", err)
	}
}

func getRootCmd() *cobra.Command {
	rootFlags(RootCmd, v)

	RootCmd.AddCommand(ProduceCmd)
	RootCmd.AddCommand(ConsoleCmd)
	RootCmd.AddCommand(WebCmd)
	RootCmd.AddCommand(DisplayCmd)
	RootCmd.AddCommand(LayoutsCmd)
	RootCmd.AddCommand(RegistersCmd)

	return RootCmd
}

func Execute() {
	rootCmd := getRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
