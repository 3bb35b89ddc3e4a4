//go:build !unix

package visibility

import "os"

func resumeSignals() []os.Signal {
	return nil
}
