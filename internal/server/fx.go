package server

import (
	"context"

	"go.uber.org/fx"

	"github.com/mjacniacki/neonrain/discord-bot-client/internal/discord"
)

// Module provides the gateway HTTP server for fx dependency injection
var Module = fx.Module("server",
	fx.Provide(
		func(c *discord.Client) Upstream { return c },
		NewServer,
	),
	fx.Invoke(registerServer),
)

func registerServer(lc fx.Lifecycle, s *Server) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return s.Start()
		},
		OnStop: func(ctx context.Context) error {
			return s.Stop(ctx)
		},
	})
}
