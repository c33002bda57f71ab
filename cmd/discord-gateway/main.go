package main

import (
	"go.uber.org/fx"

	"github.com/mjacniacki/neonrain/discord-bot-client/internal/app"
)

func main() {
	fx.New(app.CreateApp()).Run()
}
