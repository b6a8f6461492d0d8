// Package device submits compiled programs to a bufio test device.
//
// The device is a block device exposed by the kernel-side test target.
// Programs travel in a single page-sized unbuffered write; the target
// parses and runs them when the write lands.
package device

// Device is an activated bufio test device.
type Device interface {
	// Path returns the device node path, e.g. /dev/mapper/test-dev.
	Path() string
}

// Node is a Device backed by an existing device node. Creating and
// tearing down the node itself is the caller's business.
type Node struct {
	path string
}

// NewNode wraps an existing device node path.
func NewNode(path string) *Node {
	return &Node{path: path}
}

// Path returns the device node path.
func (n *Node) Path() string {
	return n.path
}

func (n *Node) String() string {
	return n.path
}
