package upload

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
)

// Saver stores an uploaded file's content under key
type Saver interface {
	Save(ctx context.Context, key, contentType string, size int64, r io.Reader) error
}

// FileBean is an uploaded file as seen by an action bean
type FileBean struct {
	FieldName   string
	FileName    string
	ContentType string
	Size        int64

	header *multipart.FileHeader
	saved  bool
}

// NewFileBean wraps the file submitted under field
func NewFileBean(field string, header *multipart.FileHeader) *FileBean {
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &FileBean{
		FieldName:   field,
		FileName:    filepath.Base(header.Filename),
		ContentType: contentType,
		Size:        header.Size,
		header:      header,
	}
}

// Open returns a reader over the file's content
func (f *FileBean) Open() (multipart.File, error) {
	if f.header == nil {
		return nil, fmt.Errorf("file %s has no content", f.FileName)
	}
	return f.header.Open()
}

// SaveTo copies the file to path, creating parent directories
func (f *FileBean) SaveTo(path string) error {
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}
	f.saved = true
	return nil
}

// Save hands the file to saver under key
func (f *FileBean) Save(ctx context.Context, saver Saver, key string) error {
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	if err := saver.Save(ctx, key, f.ContentType, f.Size, src); err != nil {
		return fmt.Errorf("save %s: %w", f.FileName, err)
	}
	f.saved = true
	return nil
}

// Saved reports whether the file was stored successfully
func (f *FileBean) Saved() bool { return f.saved }

func (f *FileBean) String() string {
	return fmt.Sprintf("FileBean{field=%s, name=%s, type=%s, size=%d}", f.FieldName, f.FileName, f.ContentType, f.Size)
}
