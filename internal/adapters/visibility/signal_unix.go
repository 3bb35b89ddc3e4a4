//go:build unix

package visibility

import (
	"os"
	"syscall"
)

func resumeSignals() []os.Signal {
	return []os.Signal{syscall.SIGCONT}
}
