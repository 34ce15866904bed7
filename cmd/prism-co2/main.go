package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/renjie/prism-co2/pkg/config"
	"github.com/renjie/prism-co2/pkg/logging"
)

const version = "0.3.0"

const usage = `usage: prism-co2 <command> [flags]

commands:
  run     process GO logs and ferrybox files into calibrated fCO2
  serve   serve stored runs over HTTP
  version print the version
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "run":
		err = runCommand(ctx, os.Args[2:])
	case "serve":
		err = serveCommand(ctx, os.Args[2:])
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			logrus.WithError(err).Error("prism-co2 failed")
		}
		stop()
		os.Exit(1)
	}
}

// setup 读取配置并创建日志器
func setup(path string) (config.Config, *logrus.Logger, func(), error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	logger, closer, err := logging.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	logrus.SetLevel(logger.GetLevel())
	logrus.SetOutput(logger.Out)
	return cfg, logger, func() { closer.Close() }, nil
}
