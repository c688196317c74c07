package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dontbug-kt/ktdbg/internal/config"
	"github.com/dontbug-kt/ktdbg/internal/logx"
)

var cfgFile string

// RootCmd is the base command when ktdbg is called without a subcommand,
// following the teacher's RootCmd/Execute split (cmd/root.go).
var RootCmd = &cobra.Command{
	Use:   "ktdbg",
	Short: "ktdbg is a remote source-level debugger core for JVM targets.",
}

// Execute adds every subcommand and runs the selected one. Called once from
// main.main.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(-1)
	}
}

func init() {
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.ktdbg.yaml)")
	config.BindPersistentFlags(RootCmd)

	cobra.OnInitialize(func() {
		config.InitFile(cfgFile)
		logx.Verbose = viper.GetBool("verbose")
	})
}
