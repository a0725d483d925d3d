package file

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aliskhannn/image-optimizer/internal/model"
)

// ErrPayloadTooLarge is returned when an upload exceeds the configured size limit.
var ErrPayloadTooLarge = errors.New("payload too large")

const nameAttempts = 5

// Storage is the scratch area of the service: a single local directory
// where uploads and derived artifacts live for the duration of a request.
// Files get collision-free names, so concurrent requests share the
// directory without locking.
type Storage struct {
	basePath string
	maxSize  int64
}

// NewStorage creates the base directory if needed and returns a Storage
// that accepts uploads of at most maxSize bytes.
func NewStorage(basePath string, maxSize int64) (*Storage, error) {
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve directory %s: %w", basePath, err)
	}

	if err := os.MkdirAll(abs, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", abs, err)
	}

	return &Storage{basePath: abs, maxSize: maxSize}, nil
}

// Dir returns the absolute path of the scratch directory.
func (s *Storage) Dir() string {
	return s.basePath
}

// MaxSize returns the upload size limit in bytes. Uploads must be smaller.
func (s *Storage) MaxSize() int64 {
	return s.maxSize
}

// SaveUpload stores the uploaded file under a generated unique name that keeps
// the original extension. Reaching the size limit aborts the save,
// removes the partial file and returns ErrPayloadTooLarge.
func (s *Storage) SaveUpload(originalName string, src io.Reader) (model.Upload, error) {
	ext := extension(originalName)

	var (
		dst  *os.File
		name string
		err  error
	)
	for i := 0; i < nameAttempts; i++ {
		name = uniqueName(ext)
		dst, err = os.OpenFile(filepath.Join(s.basePath, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil || !errors.Is(err, os.ErrExist) {
			break
		}
	}
	if err != nil {
		return model.Upload{}, fmt.Errorf("failed to create upload file: %w", err)
	}

	dstPath := dst.Name()

	size, err := io.Copy(dst, io.LimitReader(src, s.maxSize))
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && size >= s.maxSize {
		err = ErrPayloadTooLarge
	}
	if err != nil {
		_ = os.Remove(dstPath)
		if errors.Is(err, ErrPayloadTooLarge) {
			return model.Upload{}, err
		}
		return model.Upload{}, fmt.Errorf("failed to save file %s: %w", dstPath, err)
	}

	return model.Upload{
		Filename:     name,
		OriginalName: originalName,
		Path:         dstPath,
		Size:         size,
	}, nil
}

// ArtifactPath returns the deterministic path of a file derived from the
// upload, e.g. "<stem>-optimized.jpg" for suffix "-optimized" and ext ".jpg".
func (s *Storage) ArtifactPath(upload model.Upload, suffix, ext string) string {
	stem := strings.TrimSuffix(upload.Filename, filepath.Ext(upload.Filename))

	return filepath.Join(s.basePath, stem+suffix+ext)
}

// Save writes src to path, replacing any existing file.
func (s *Storage) Save(path string, src io.Reader) error {
	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", path, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to save file %s: %w", path, err)
	}

	return dst.Close()
}

// Load opens the file and returns a reader.
func (s *Storage) Load(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

// ReadAll returns the whole content of the file.
func (s *Storage) ReadAll(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	return data, nil
}

// Delete removes the file from storage.
func (s *Storage) Delete(path string) error {
	return os.Remove(path)
}

// uniqueName builds "<unix millis>-<random>" plus the extension.
func uniqueName(ext string) string {
	return fmt.Sprintf("%d-%d%s", time.Now().UnixMilli(), rand.Intn(1_000_000_000), ext)
}

// extension returns the lowercased extension of name, or "" when it
// contains anything but letters and digits.
func extension(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) < 2 || len(ext) > 6 {
		return ""
	}

	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}

	return ext
}
