//go:build !windows && !js

package transport

import (
	"os/signal"
	"sync"
	"syscall"
)

var ignoreSIGPIPEOnce sync.Once

// ignoreSIGPIPE installs a process-wide ignore for SIGPIPE so a vanishing
// child's closed stdin pipe does not kill the host. Process-global, and
// installed at most once per process.
func ignoreSIGPIPE() {
	ignoreSIGPIPEOnce.Do(func() {
		signal.Ignore(syscall.SIGPIPE)
	})
}
