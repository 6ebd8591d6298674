/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "async-serial",
	Short: "Event-driven serial port tool",
	Long: `async-serial opens a serial port with a background I/O loop and reports
every received byte, line status change and write completion as it happens.

A port is given either as a device path or as a port number:
  async-serial listen /dev/ttyUSB0
  async-serial listen 3            # /dev/ttyS3

Line settings come from flags, from ASYNC_SERIAL_* environment variables or
from $HOME/.async-serial.yaml, in that order of precedence.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(viper.GetBool("verbose"))
		if err != nil {
			return err
		}
		zap.ReplaceGlobals(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		zap.L().Sync()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.async-serial.yaml)")
	flags.IntP("baud", "b", 9600, "Baud rate")
	flags.Int("data-bits", 8, "Data bits: 5, 6, 7 or 8")
	flags.String("parity", "none", "Parity: none, odd, even, mark, space")
	flags.String("stop-bits", "1", "Stop bits: 1, 1.5 or 2")
	flags.StringSlice("events", []string{"rxchar"}, "Events to watch (rxchar,cts,dsr,dcd,ring,break,err,rxflag)")
	flags.String("event-char", "0x00", "Byte reported as rxflag: a character, an escape like \\n, or a number like 0x0a")
	flags.Int("buffer", 4096, "Outbound buffer capacity in bytes")
	flags.Duration("read-timeout", 0, "Total read timeout per byte (0 keeps the default)")
	flags.Duration("write-timeout", 0, "Total write timeout per cycle (0 keeps the default)")
	flags.Bool("no-flush", false, "Do not drain the output after single byte writes")
	flags.BoolP("verbose", "v", false, "Log engine activity to stderr")

	for _, name := range []string{"baud", "data-bits", "parity", "stop-bits", "events", "event-char", "buffer",
		"read-timeout", "write-timeout", "no-flush", "verbose"} {
		cobra.CheckErr(viper.BindPFlag(name, flags.Lookup(name)))
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".async-serial")
	}

	viper.SetEnvPrefix("async_serial")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
