package device

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// MaxProgramBytes is the largest program a device accepts in a single
// submission. The kernel target reads the program out of one block.
const MaxProgramBytes = 4096

// ErrProgramTooLarge indicates a compiled program does not fit in a
// single submission.
var ErrProgramTooLarge = errors.New("program too large")

// Submit writes a compiled program to the device as one page-sized
// O_DIRECT write. The page is zero-filled beyond the program bytes and
// the interpreter stops at HALT, so the tail is harmless. Programs
// larger than MaxProgramBytes are rejected before the device is
// touched.
func Submit(dev Device, code []byte) error {
	if len(code) > MaxProgramBytes {
		return fmt.Errorf("device %s: %d byte program: %w", dev.Path(), len(code), ErrProgramTooLarge)
	}

	fd, err := unix.Open(dev.Path(), unix.O_DIRECT|unix.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("device %s: open: %w", dev.Path(), err)
	}
	defer unix.Close(fd)

	// O_DIRECT needs an aligned, block-sized buffer. A fresh anonymous
	// mapping is page-aligned and zero-filled.
	page, err := mapPage()
	if err != nil {
		return fmt.Errorf("device %s: %w", dev.Path(), err)
	}
	defer unix.Munmap(page)

	copy(page, code)

	n, err := unix.Write(fd, page)
	if err != nil {
		return fmt.Errorf("device %s: write: %w", dev.Path(), err)
	}
	if n != len(page) {
		return fmt.Errorf("device %s: short write: %d of %d bytes", dev.Path(), n, len(page))
	}
	return nil
}

// mapPage returns one page of fresh anonymous memory.
func mapPage() ([]byte, error) {
	page, err := unix.Mmap(-1, 0, os.Getpagesize(),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("map page: %w", err)
	}
	return page, nil
}
