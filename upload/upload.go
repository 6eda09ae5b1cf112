// Package upload stores profile images submitted with the monster forms.
package upload

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/xid"
)

var (
	ErrUnsupportedType = errors.New("only png, jpeg, gif and webp images are allowed")
	ErrTooLarge        = errors.New("image is too large")
)

// extensions maps accepted sniffed content types to file extensions
var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Store keeps images in one flat directory under generated names
type Store struct {
	dir     string
	maxSize int64
}

// New creates the upload directory when missing
func New(dir string, maxSize int64) (*Store, error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("cannot create upload directory: %w", err)
	}
	return &Store{dir: dir, maxSize: maxSize}, nil
}

// Dir returns the directory images are written to
func (s *Store) Dir() string {
	return s.dir
}

// Check validates size and content type without storing the file.
// It returns the extension the stored file will get.
func (s *Store) Check(fh *multipart.FileHeader) (string, error) {
	if s.maxSize > 0 && fh.Size > s.maxSize {
		return "", ErrTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	ext, ok := extensions[http.DetectContentType(head[:n])]
	if !ok {
		return "", ErrUnsupportedType
	}
	return ext, nil
}

// Save writes the uploaded file and returns its stored name
func (s *Store) Save(fh *multipart.FileHeader) (string, error) {
	ext, err := s.Check(fh)
	if err != nil {
		return "", err
	}

	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	name := xid.New().String() + ext
	dst, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", err
	}
	if err := dst.Close(); err != nil {
		return "", err
	}
	return name, nil
}

// Remove deletes a stored image. Missing files are ignored.
func (s *Store) Remove(name string) error {
	if name == "" {
		return nil
	}
	// names are generated by Save, anything else is refused
	if name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("invalid image name %q", name)
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
