package amqp

import (
	"io"

	"estate/internal/log"
)

func testLogger() *log.Logger {
	return log.New(log.Config{Output: io.Discard, Component: log.ComponentAMQP})
}
