package engine

import (
	"sync"

	"go.uber.org/zap"
)

var (
	log   *zap.Logger
	logMu sync.RWMutex
)

// SetLogger installs a logger for engine dispatch diagnostics.
// The default is a no-op logger.
func SetLogger(l *zap.Logger) {
	logMu.Lock()
	defer logMu.Unlock()
	log = l
}

// Logger returns the engine's logger instance.
func Logger() *zap.Logger {
	logMu.RLock()
	l := log
	logMu.RUnlock()
	if l == nil {
		return zap.NewNop()
	}
	return l
}
