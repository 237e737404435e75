package upload

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"thirdcoast.systems/framegrab/pkg/utils/filename"
)

// StoredFile describes an upload after it has been written to disk.
type StoredFile struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
	Size         int64  `json:"size"`
	MimeType     string `json:"mimetype"`
	Path         string `json:"path"`
}

// store copies the multipart file into dir under a unique name. A partial
// file is removed on failure.
func store(dir string, fh *multipart.FileHeader, src io.Reader, mimeType string) (*StoredFile, error) {
	name := filename.StoredName(uuid.New(), fh.Filename)
	path := filepath.Join(dir, name)

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}

	n, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("write %s: %w", path, err)
	}

	return &StoredFile{
		Filename:     name,
		OriginalName: fh.Filename,
		Size:         n,
		MimeType:     mimeType,
		Path:         path,
	}, nil
}
