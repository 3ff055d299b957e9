// Package snapshot takes deep copies of configuration values so that components
// keep their own immutable view of what they were built with.
package snapshot

import (
	"github.com/pkg/errors"
	"github.com/tiendc/go-deepcopy"
)

// Copy returns a deep copy of src: slices, maps and nested pointers are copied too.
// A nil src gives nil.
func Copy[T any](src *T) (*T, error) {
	if src == nil {
		return nil, nil
	}

	var dst T
	if err := deepcopy.Copy(&dst, src); err != nil {
		return nil, errors.Wrapf(err, "failed to deep copy type %T", src)
	}
	return &dst, nil
}

// MustCopy is Copy for constructors, where a copy failure is a programming error.
// It panics on failure.
func MustCopy[T any](src *T) *T {
	dst, err := Copy(src)
	if err != nil {
		panic("failed to create immutable snapshot: " + err.Error())
	}
	return dst
}
