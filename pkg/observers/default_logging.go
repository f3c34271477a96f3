package observers

import (
	"github.com/go-logr/logr"

	logutil "github.com/anggasct/signalflow/pkg/logging"
)

// NewDefaultLoggingObserver creates a logging observer that logs phase changes at VERBOSE
func NewDefaultLoggingObserver(logger logr.Logger) *LoggingObserver {
	return NewLoggingObserver(logger.WithName("signals"), logutil.VERBOSE)
}
