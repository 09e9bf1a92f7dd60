package main

import (
	"github.com/nvr-ai/go-facetrack/proxy"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func relayCommand() *cli.Command {
	return &cli.Command{
		Name:  "relay",
		Usage: "forward /servo requests to the actuator device",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: flagListen, Usage: "listen `ADDR`"},
			&cli.StringFlag{Name: flagTarget, Usage: "device base `URL`"},
			&cli.StringFlag{Name: flagCert, Usage: "TLS certificate `FILE`"},
			&cli.StringFlag{Name: flagKey, Usage: "TLS key `FILE`"},
		},
		Action: runRelay,
	}
}

func runRelay(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	srv, err := proxy.NewServer(cfg.Relay, logger)
	if err != nil {
		return err
	}
	logger.Info("relaying",
		zap.String("listen", cfg.Relay.Listen),
		zap.String("target", cfg.Relay.Target),
		zap.Bool("tls", cfg.Relay.CertFile != ""),
	)
	return srv.ListenAndServe(c.Context)
}
