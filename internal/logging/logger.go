package logging

import (
	"os"

	"github.com/hashicorp/go-hclog"
)

var logger hclog.Logger

// GetLogger returns the process-wide logger, creating it on first use.
// The level comes from SNAPCDC_LOG_LEVEL and defaults to info.
func GetLogger() hclog.Logger {
	if logger == nil {
		logger = hclog.New(&hclog.LoggerOptions{
			Name:  "snapcdc",
			Level: hclog.LevelFromString(os.Getenv("SNAPCDC_LOG_LEVEL")),
		})
	}
	return logger
}

// SetLogger replaces the process-wide logger, for callers that need JSON
// output or a test sink.
func SetLogger(l hclog.Logger) {
	logger = l
}
