package main

import (
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ownlingo/unibot/internal/app"
	"github.com/ownlingo/unibot/internal/config"
	"github.com/ownlingo/unibot/internal/logger"
	"github.com/ownlingo/unibot/internal/server"
)

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the /api HTTP endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				cfg.Server.Addr = addr
			}
			for _, line := range cfg.Summary() {
				logger.Infof("config: %s", line)
			}

			a, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			srv := server.New(server.Config{
				Addr:        cfg.Server.Addr,
				BodyLimit:   cfg.Server.BodyLimit,
				PingMessage: cfg.PingMessage,
			}, services(a))

			if cfgPath != "" {
				if err := config.Watch(cfgPath, a.ApplyLimits); err != nil {
					logger.Warnf("config watch disabled: %v", err)
				}
			}

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				logger.Infof("listening on %s", srv.Addr())
				return srv.Start(ctx)
			})
			g.Go(func() error {
				<-ctx.Done()
				logger.Infof("shutting down")
				return nil
			})
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	return cmd
}

func services(a *app.Assistant) server.Services {
	caps := a.Capabilities()
	names := make([]string, 0, len(caps))
	for _, c := range caps {
		names = append(names, string(c))
	}
	return server.Services{
		Chat:         a.Chat,
		Translate:    a.Translate,
		Detect:       a.Detect,
		Speech:       a.Speech,
		OCR:          a.OCR,
		Capabilities: names,
	}
}
