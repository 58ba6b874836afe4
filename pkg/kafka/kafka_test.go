package kafka

import (
	"io"

	"github.com/mersinvald/rustyrobot/pkg/log"
)

func init() {
	log.Init(log.Config{
		Level:      log.ErrorLevel,
		JSONOutput: true,
		Output:     io.Discard,
	})
}
