package cmd

import (
	"context"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/dontbug-kt/ktdbg/internal/config"
	"github.com/dontbug-kt/ktdbg/internal/proto"
)

var (
	launchClasspath      []string
	launchSuspendOnStart bool
	launchCommand        string
)

func init() {
	RootCmd.AddCommand(launchCmd)
	launchCmd.Flags().StringSliceVar(&launchClasspath, "classpath", nil, "classpath entries for the target VM")
	launchCmd.Flags().BoolVar(&launchSuspendOnStart, "suspend-on-start", true, "leave the target VM suspended until the first resume")
	launchCmd.Flags().StringVar(&launchCommand, "command", "java", "command used to spawn the target VM")
}

var launchCmd = &cobra.Command{
	Use:   "launch <main-class> [args...]",
	Short: "Launch a target VM under the debugger and attach to it",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) < 1 {
			log.Fatal("ktdbg: please provide the main class to launch. See ktdbg launch --help")
		}
		mainClass, programArgs := args[0], args[1:]

		cfg := config.Snapshot("launch", mainClass, launchClasspath, programArgs)
		cfg.SuspendOnStart = launchSuspendOnStart
		cfg.LaunchCommand = launchCommand

		ctx, cancel := context.WithTimeout(context.Background(), orDefault(cfg.DialTimeout))
		vm, err := proto.Launch(ctx, proto.LaunchConfig{
			MainClass:      mainClass,
			Classpath:      launchClasspath,
			Args:           programArgs,
			SuspendOnStart: launchSuspendOnStart,
			Command:        launchCommand,
			DialTimeout:    cfg.DialTimeout,
		})
		cancel()
		if err != nil {
			log.Fatalf("ktdbg: launching %s: %v", mainClass, err)
		}

		runSession(vm, cfg, launchSuspendOnStart)
	},
}

func orDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return 10 * time.Second
	}
	return d
}
