package scan

import (
	"errors"
	"fmt"

	"github.com/Sumatoshi-tech/unimported/pkg/cache"
	"github.com/Sumatoshi-tech/unimported/pkg/specifier"
)

// FatalError aborts a run. Path names the file that caused it.
type FatalError struct {
	Entry string
	Path  string
	Err   error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("entry %s: %s: %v", e.Entry, e.Path, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

func newFatalError(entry, file string, err error) *FatalError {
	path := file

	var parseErr *specifier.ParseError

	var invalid *cache.InvalidCacheError

	switch {
	case errors.As(err, &parseErr):
		path = parseErr.Path
	case errors.As(err, &invalid):
		path = invalid.Missing
	}

	return &FatalError{Entry: entry, Path: path, Err: err}
}
