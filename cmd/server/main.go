package main

import (
	"github.com/weftlabs/weft/internal/server"
	"github.com/weftlabs/weft/internal/util"
	"github.com/weftlabs/weft/pkg/logger"
	"github.com/weftlabs/weft/pkg/logger/console"
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
