package persist

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const dirPerm = 0o755

// ErrNoState is returned by Load when no state file exists yet.
var ErrNoState = errors.New("no persisted state")

// Persister reads and writes one state type under a fixed basename.
type Persister[T any] struct {
	basename string
	codec    Codec
}

// NewPersister creates a persister with the given basename and codec.
func NewPersister[T any](basename string, codec Codec) *Persister[T] {
	return &Persister[T]{
		basename: basename,
		codec:    codec,
	}
}

// Path returns the state file location inside dir.
func (p *Persister[T]) Path(dir string) string {
	return filepath.Join(dir, p.basename+p.codec.Extension())
}

// Save writes state to dir. The file is replaced atomically, so a crash
// mid-write leaves the previous state intact.
func (p *Persister[T]) Save(dir string, state *T) error {
	err := os.MkdirAll(dir, dirPerm)
	if err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, p.basename+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}

	tmpName := tmp.Name()

	err = p.codec.Encode(tmp, state)
	if err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)

		return fmt.Errorf("encode state: %w", err)
	}

	err = tmp.Close()
	if err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("close temp state file: %w", err)
	}

	err = os.Rename(tmpName, p.Path(dir))
	if err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("replace state file: %w", err)
	}

	return nil
}

// Load reads state from dir. A missing file yields ErrNoState.
func (p *Persister[T]) Load(dir string) (*T, error) {
	file, err := os.Open(p.Path(dir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoState
		}

		return nil, fmt.Errorf("open state file: %w", err)
	}
	defer file.Close()

	var state T

	err = p.codec.Decode(file, &state)
	if err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}

	return &state, nil
}

// Remove deletes the state file from dir. A missing file is not an error.
func (p *Persister[T]) Remove(dir string) error {
	err := os.Remove(p.Path(dir))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove state file: %w", err)
	}

	return nil
}
