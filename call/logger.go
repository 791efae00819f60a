package call

import (
	"sync"

	"go.uber.org/zap"
)

var (
	log   *zap.Logger
	logMu sync.RWMutex
)

// SetLogger installs a logger for call dispatch diagnostics.
// The default is a no-op logger; the layer itself never logs to stdout.
func SetLogger(l *zap.Logger) {
	logMu.Lock()
	defer logMu.Unlock()
	log = l
}

func logger() *zap.Logger {
	logMu.RLock()
	l := log
	logMu.RUnlock()
	if l == nil {
		return zap.NewNop()
	}
	return l
}
