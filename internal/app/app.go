// Package app contains the gateway bootstrap
package app

import (
	"go.uber.org/fx"

	"github.com/mjacniacki/neonrain/discord-bot-client/internal/config"
	"github.com/mjacniacki/neonrain/discord-bot-client/internal/discord"
	"github.com/mjacniacki/neonrain/discord-bot-client/internal/logger"
	"github.com/mjacniacki/neonrain/discord-bot-client/internal/server"
)

// CreateApp creates fx application with all gateway modules
func CreateApp() fx.Option {
	return fx.Options(
		// Configuration
		fx.Provide(config.Out),

		// Infrastructure
		logger.Module,

		// Upstream Discord REST client
		discord.Module,

		// HTTP routes
		server.Module,
	)
}
