package cache

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

// Mode selects how file fingerprints are computed.
type Mode string

// Fingerprint modes.
const (
	// ModeStat uses size and modification time. Cheap, and the default.
	ModeStat Mode = "stat"
	// ModeContent uses size and a content hash, for filesystems whose
	// modification times are unreliable (some containers and network mounts).
	ModeContent Mode = "content"
)

// ErrUnknownMode is returned for a fingerprint mode other than stat or content.
var ErrUnknownMode = errors.New("unknown fingerprint mode")

// ParseMode validates a mode name. The empty string selects ModeStat.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeStat:
		return ModeStat, nil
	case ModeContent:
		return ModeContent, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Fingerprint identifies one version of a file's content.
type Fingerprint struct {
	Size    int64
	ModTime int64
	Sum     uint64
}

func fingerprint(path string, mode Mode) (Fingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("stat %s: %w", path, err)
	}

	if mode != ModeContent {
		return Fingerprint{Size: info.Size(), ModTime: info.ModTime().UnixNano()}, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	h := xxhash.New()

	_, err = io.Copy(h, file)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("hash %s: %w", path, err)
	}

	return Fingerprint{Size: info.Size(), Sum: h.Sum64()}, nil
}
