package app

import (
	"fmt"
	"strings"

	"horizon/hal"
	"horizon/kernel"
)

func installPanicHandler(h hal.HAL) {
	kernel.SetPanicHandler(func(info kernel.PanicInfo) {
		l := h.Logger()
		if l == nil {
			return
		}
		l.WriteLineString(fmt.Sprintf("Horizon Panic: thread=%d panic=%v", info.ThreadID, info.Value))
		if len(info.Stack) == 0 {
			l.WriteLineString("stack: unavailable")
			return
		}
		for _, line := range strings.Split(string(info.Stack), "\n") {
			if line == "" {
				continue
			}
			l.WriteLineString(line)
		}
	})
}
