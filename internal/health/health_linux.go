//go:build linux

package health

import (
	"fmt"
	"log/slog"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"
)

// openSegment maps the named POSIX shared-memory segment. On Linux these
// live under /dev/shm; the leading slash of a POSIX shm name is not part
// of the filename.
func openSegment(name string, logger *slog.Logger) (*Channel, error) {
	path := "/dev/shm/" + strings.TrimPrefix(name, "/")

	fd, err := unix.Open(path, unix.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer unix.Close(fd)

	mem, err := unix.Mmap(fd, 0, recordSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}

	return &Channel{
		mem:    mem,
		rec:    (*record)(unsafe.Pointer(&mem[0])),
		logger: logger,
	}, nil
}

func closeSegment(mem []byte) {
	_ = unix.Munmap(mem)
}
