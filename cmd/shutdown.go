package cmd

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/flanksource/commons/logger"
)

var (
	shutdownMu    sync.Mutex
	shutdownHooks []func()
)

// Shutdown runs the registered hooks, most recent first, exactly once.
func Shutdown() {
	shutdownMu.Lock()
	hooks := shutdownHooks
	shutdownHooks = nil
	shutdownMu.Unlock()

	if len(hooks) == 0 {
		return
	}
	logger.Debugf("executing %d shutdown hooks", len(hooks))
	for i := len(hooks) - 1; i >= 0; i-- {
		hooks[i]()
	}
}

func ShutdownAndExit(code int, msg string) {
	Shutdown()

	if code == 0 {
		logger.StandardLogger().WithSkipReportLevel(1).Infof(msg)
	} else {
		logger.StandardLogger().WithSkipReportLevel(1).Errorf(msg)
	}

	os.Exit(code)
}

func AddShutdownHook(fn func()) {
	shutdownMu.Lock()
	defer shutdownMu.Unlock()
	shutdownHooks = append(shutdownHooks, fn)
}

// waitForSignal blocks until SIGINT or SIGTERM.
func waitForSignal() os.Signal {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)
	return <-quit
}
