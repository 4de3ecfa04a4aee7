// Package logging builds the zap logger shared by every upnqr binary.
package logging

import (
	"fmt"
	"os"

	_ "github.com/jsternberg/zap-logfmt"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/upnqr/internal/config"
)

// New returns a production zap logger writing to stdout with the configured
// level and encoding ("logfmt", "json" or "console"). Every entry carries
// the host name and the service name.
func New(cfg config.Logger, service string) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.Encoding = cfg.Encoding
	if zc.Encoding == "" {
		zc.Encoding = "logfmt"
	}
	if err := zc.Level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("logger level %q: %w", cfg.Level, err)
	}
	zc.InitialFields = make(map[string]any)
	zc.InitialFields["host"], _ = os.Hostname()
	zc.InitialFields["service"] = service
	zc.OutputPaths = []string{"stdout"}

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
