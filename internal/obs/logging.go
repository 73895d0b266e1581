// Package obs contains observability utilities such as logging.
package obs

import "go.uber.org/zap"

// Logger is the global structured logger used by the service.
//
// Logger is exported to allow other packages to use it for logging.
var Logger *zap.Logger = zap.NewNop()

// InitLogger initializes the global Logger with a production JSON core.
//
// InitLogger is exported to allow other packages to initialize the Logger.
func InitLogger() {
	l, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	Logger = l
}
