package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/dontbug-kt/ktdbg/internal/adapter"
	"github.com/dontbug-kt/ktdbg/internal/config"
	"github.com/dontbug-kt/ktdbg/internal/console"
	"github.com/dontbug-kt/ktdbg/internal/proto"
	"github.com/dontbug-kt/ktdbg/internal/session"
)

func init() {
	RootCmd.AddCommand(attachCmd)
}

var attachCmd = &cobra.Command{
	Use:   "attach",
	Short: "Attach to a target VM already listening for a debugger connection",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Snapshot("attach", "", nil, args)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
		vm, err := proto.Dial(ctx, cfg.Host, cfg.Port)
		cancel()
		if err != nil {
			log.Fatalf("ktdbg: attaching to %s: %v", cfg.Addr(), err)
		}

		runSession(vm, cfg, true)
	},
}

// runSession starts sess around vm and hands it to whichever front end cfg
// selects, blocking until that front end returns.
func runSession(vm proto.VM, cfg *config.Config, suspendOnStart bool) {
	sess := session.New(vm)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sess.Start(ctx, suspendOnStart); err != nil {
		log.Fatalf("ktdbg: starting session: %v", err)
	}
	defer sess.Stop()

	if len(cfg.ExceptionFilters) > 0 {
		if err := sess.SetExceptionBreakpoints(cfg.ExceptionFilters); err != nil {
			log.Fatalf("ktdbg: setting exception filters: %v", err)
		}
	}

	if cfg.ConsoleEnabled {
		c, err := console.New(sess)
		if err != nil {
			log.Fatalf("ktdbg: starting console: %v", err)
		}
		defer c.Close()
		c.Run()
		return
	}

	addr := fmt.Sprintf(":%d", cfg.AdapterPort)
	if err := adapter.New(sess).ListenAndServe(ctx, addr); err != nil {
		log.Fatalf("ktdbg: dap server: %v", err)
	}
}
