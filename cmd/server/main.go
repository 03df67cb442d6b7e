package main

import (
	"github.com/Septimus4/AgendaFlow/internal/server"
	"github.com/Septimus4/AgendaFlow/internal/util"
	"github.com/Septimus4/AgendaFlow/pkg/logger"
	"github.com/Septimus4/AgendaFlow/pkg/logger/console"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	server.Init()
}
