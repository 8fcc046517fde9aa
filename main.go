/*
This is an example of application that will use the
engine package to test things out
*/
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/vortex/engine"
	"github.com/spaghettifunk/vortex/engine/config"
	"github.com/spaghettifunk/vortex/engine/core"
	"github.com/spaghettifunk/vortex/testbed"
)

const configFile = "vortex.toml"

func main() {
	cfg, err := config.Load(configFile)
	if err != nil {
		panic(err)
	}

	tb, err := testbed.NewTestGame()
	if err != nil {
		panic(err)
	}

	engine, err := engine.New(tb.Game, cfg)
	if err != nil {
		panic(err)
	}

	if err := engine.Initialize(); err != nil {
		panic(err)
	}

	// reload the log level when the config file changes on disk
	watcher, err := config.NewWatcher(configFile)
	if err != nil {
		core.LogWarn("config watcher unavailable: %s", err)
	} else {
		defer watcher.Close()
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	// start shutdown goroutine
	go func() {
		// capture sigterm and other system call here
		<-sigCh
		_ = engine.Shutdown()
	}()

	// run engine
	if err := engine.Run(); err != nil {
		panic(err)
	}

	if err := engine.Shutdown(); err != nil {
		panic(err)
	}
}
