package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-logr/zapr"
	"github.com/livekit/protocol/logger"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/livekit/livekit-capture/pkg/config"
	"github.com/livekit/livekit-capture/version"
)

const loggerName = "livekit-capture"

func main() {
	// failures are reported by the capture itself; the exit code is always 0
	if err := newApp().Run(os.Args); err != nil {
		fmt.Println(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:        "livekit-capture",
		Usage:       "LiveKit camera capture",
		Description: "records the camera to output.mp4 using NVENC",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to LiveKit capture config file",
			},
			&cli.StringFlag{
				Name:    "config-body",
				Usage:   "LiveKit capture config in YAML, typically passed in as an env var in a container",
				EnvVars: []string{"LIVEKIT_CAPTURE_CONFIG"},
			},
		},
		Action:  runCapture,
		Version: version.Version,
	}
}

func getConfig(c *cli.Context) (*config.Config, error) {
	configFile := c.String("config")
	configBody := c.String("config-body")
	if configBody == "" && configFile != "" {
		content, err := os.ReadFile(configFile)
		if err != nil {
			return nil, err
		}
		configBody = string(content)
	}

	conf, err := config.NewConfig(configBody)
	if err != nil {
		return nil, errors.New("invalid config: " + err.Error())
	}
	return conf, nil
}

func initLogger(level string) {
	conf := zap.NewProductionConfig()
	if level != "" {
		lvl := zapcore.Level(0)
		if err := lvl.UnmarshalText([]byte(level)); err == nil {
			conf.Level = zap.NewAtomicLevelAt(lvl)
		}
	}

	l, _ := conf.Build()
	logger.SetLogger(zapr.NewLogger(l), loggerName)
}
