//go:build windows

package xmrig

import "os"

// Windows has no SIGTERM for console processes started this way.
func terminate(p *os.Process) error {
	return p.Kill()
}
