package testutil

import (
	"io"

	"github.com/schoolms/schoolms-server/internal/logger"
)

func MakeNoopLogger() *logger.Logger {
	return logger.NewWithWriter(io.Discard, 0, "text")
}
