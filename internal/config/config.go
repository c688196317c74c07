// Package config is a typed view over viper settings shared by cmd and
// internal/session, the way the teacher's cmd package binds cobra flags into
// viper keys and every engine entry point reads them back with viper.GetX.
package config

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config is the snapshot taken once a command's flags have been parsed —
// never read live off viper past that point, so a session's settings can't
// shift under it mid-run.
type Config struct {
	Host    string
	Port    int
	Verbose bool

	MainClass      string
	Classpath      []string
	Args           []string
	LaunchCommand  string
	SuspendOnStart bool
	DialTimeout    time.Duration

	AdapterPort    int
	ConsoleEnabled bool

	ExceptionFilters []string
}

// BindPersistentFlags registers the flags every subcommand shares and binds
// them into viper, following the teacher's RootCmd.init()/initConfig split.
func BindPersistentFlags(root *cobra.Command) {
	root.PersistentFlags().BoolP("verbose", "v", false, "print diagnostic messages about what ktdbg is doing")
	root.PersistentFlags().String("host", "127.0.0.1", "target VM host")
	root.PersistentFlags().Int("port", 5005, "target VM debug port")
	root.PersistentFlags().Int("adapter-port", 0, "serve the DAP adapter on this port instead of the console (0 disables)")
	root.PersistentFlags().Duration("dial-timeout", 10*time.Second, "timeout waiting for the target VM to start listening")
	root.PersistentFlags().StringSlice("exception-filter", nil, "exception filter(s) to break on: caught, uncaught; may be repeated")

	_ = viper.BindPFlag("verbose", root.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("host", root.PersistentFlags().Lookup("host"))
	_ = viper.BindPFlag("port", root.PersistentFlags().Lookup("port"))
	_ = viper.BindPFlag("adapter-port", root.PersistentFlags().Lookup("adapter-port"))
	_ = viper.BindPFlag("dial-timeout", root.PersistentFlags().Lookup("dial-timeout"))
	_ = viper.BindPFlag("exception-filter", root.PersistentFlags().Lookup("exception-filter"))

	viper.RegisterAlias("dial_timeout", "dial-timeout")
	viper.RegisterAlias("adapter_port", "adapter-port")
	viper.RegisterAlias("exception_filters", "exception-filter")
}

// InitFile wires a YAML config file (default $HOME/.ktdbg.yaml) and
// environment-variable overrides, mirroring the teacher's initConfig.
func InitFile(cfgFile string) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".ktdbg")
		viper.AddConfigPath("$HOME")
		viper.SetConfigType("yaml")
	}
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		color.Yellow("ktdbg: using config file: %v", viper.ConfigFileUsed())
	}
}

// Snapshot reads every bound key back into a Config. mode names the
// subcommand ("attach" or "launch") and is not otherwise used; launchArgs is
// stored as Config.Args (the program arguments after the main class for
// `launch`, the positional arguments for `attach`).
func Snapshot(mode, mainClass string, classpath, launchArgs []string) *Config {
	return &Config{
		Host:    viper.GetString("host"),
		Port:    viper.GetInt("port"),
		Verbose: viper.GetBool("verbose"),

		MainClass:      mainClass,
		Classpath:      classpath,
		Args:           launchArgs,
		LaunchCommand:  "java",
		SuspendOnStart: viper.GetBool("suspend-on-start"),
		DialTimeout:    viper.GetDuration("dial-timeout"),

		AdapterPort:    viper.GetInt("adapter-port"),
		ConsoleEnabled: viper.GetInt("adapter-port") == 0,

		ExceptionFilters: viper.GetStringSlice("exception-filter"),
	}
}

// Addr formats the target VM's host:port for dialing/logging.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
