package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sandy1219/ypf/application"
	appconsts "github.com/sandy1219/ypf/application/consts"
	"github.com/sandy1219/ypf/internal/config"
	"github.com/sandy1219/ypf/internal/consts"
	_ "github.com/sandy1219/ypf/internal/registry_ext"
	"github.com/sandy1219/ypf/internal/worker"
)

var Version = "v0.1.0"

// 子命令到进程角色
var roles = map[string]string{
	consts.CMD_SERVE:  appconsts.ROLE_MASTER,
	consts.CMD_WORKER: appconsts.ROLE_WORKER,
	consts.CMD_CRON:   appconsts.ROLE_CRON,
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s <serve|worker|cron> [-config path] [-env env]\n", os.Args[0])
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	cmd := os.Args[1]
	role, ok := roles[cmd]
	if !ok {
		usage()
	}

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	cfgPath := fs.String("config", appconsts.DEFAULT_CONFIG_PATH, "config file path")
	env := fs.String("env", appconsts.ENV_DEVELOPMENT, "runtime environment")
	_ = fs.Parse(os.Args[2:])

	app := application.NewApp(*env, *cfgPath,
		application.WithRole(role),
		application.WithBizConfig(config.GetBizConfig()),
	)
	if err := app.Boot(); err != nil {
		log.Fatalf("%s %s boot failed: %v", cmd, Version, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// custom worker 的 action 返回后进程随之退出
	if comp, err := app.GetComponent(consts.COMP_CUSTOM_WORKER); err == nil {
		if runner, ok := comp.(*worker.CustomRunner); ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithCancel(ctx)
			defer cancel()
			go func() {
				select {
				case <-runner.Done():
					cancel()
				case <-ctx.Done():
				}
			}()
		}
	}

	if err := app.RunWithContext(ctx); err != nil {
		log.Fatalf("%s exited with error: %v", cmd, err)
	}
}
