package system

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ReqLoggerKey is the context key used to store the request-scoped logger in gin context.
const ReqLoggerKey = "reqLogger"

// SetupLogger builds the process-wide zap logger. Debug mode switches to the
// human-readable development encoder with debug-level output.
func SetupLogger(debug bool) (*zap.SugaredLogger, error) {
	var (
		zlog *zap.Logger
		err  error
	)
	if debug {
		zlog, err = zap.NewDevelopment()
	} else {
		zlog, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("setting up logger: %w", err)
	}
	return zlog.Sugar(), nil
}

// GetReqLogger returns the request-scoped sugared logger from gin.Context if present,
// otherwise the provided fallback.
func GetReqLogger(c *gin.Context, fallback *zap.SugaredLogger) *zap.SugaredLogger {
	if c == nil {
		return fallback
	}
	if v, ok := c.Get(ReqLoggerKey); ok {
		if l, ok2 := v.(*zap.SugaredLogger); ok2 {
			return l
		}
	}
	return fallback
}
