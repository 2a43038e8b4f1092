// README: zap logger construction shared by the API and background workers.
package logger

import "go.uber.org/zap"

// New returns a production JSON logger, or a human-readable one in development.
func New(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
