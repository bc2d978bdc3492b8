package tree

import "github.com/thromel/pmemtree/pkg/pmem"

// newTreeErr wraps err in the shared pmem.Error taxonomy so callers can
// use pmem.IsUserError/IsLeafExists/etc regardless of which package
// raised the error.
func newTreeErr(op string, kind pmem.Kind, err error) error {
	return &pmem.Error{Op: op, Kind: kind, Err: err}
}
