package logging

import (
	"go.uber.org/zap"
)

// S is the shared sugared logger. It defaults to a development logger so
// packages and tests can log before Init runs; main replaces it based on the
// configured environment.
var S *zap.SugaredLogger

func init() {
	l, _ := zap.NewDevelopment()
	S = l.Sugar()
}

// Init builds the process logger. Production gets sampled JSON on stderr,
// everything else keeps the console encoder.
func Init(environment string) *zap.SugaredLogger {
	var (
		logger *zap.Logger
		err    error
	)
	if environment == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	S = logger.Sugar()
	return S
}

// Sync flushes buffered log entries. Called on shutdown.
func Sync() {
	if S != nil {
		_ = S.Sync()
	}
}
