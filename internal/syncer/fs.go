package syncer

import (
	"os"

	"draftsync/internal/errs"
)

// FS is the filesystem collaborator the orchestrator reads conflicted content
// through and writes resolutions back through.
type FS interface {
	ReadText(path string) (string, error)
	WriteText(path, text string) error
}

type osFS struct{}

// OSFS returns the real filesystem.
func OSFS() FS {
	return osFS{}
}

func (osFS) ReadText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errs.IO("reading "+path, err)
	}
	return string(data), nil
}

func (osFS) WriteText(path, text string) error {
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return errs.IO("writing "+path, err)
	}
	return nil
}
