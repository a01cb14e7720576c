// Package evidence validates proof images and persists them to the blob store.
package evidence

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/punchamoorthee/fundledger/internal/domain"
)

const (
	MaxImagesPerUpload = 5
	MaxFileSize        = 5 * 1024 * 1024
)

var allowedExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// File is one uploaded image. Size is the declared size; Data may be nil when
// the file was refused before being read.
type File struct {
	Name string
	Size int64
	Data []byte
}

// BlobStore persists bytes and returns a stable URL.
type BlobStore interface {
	UploadFile(ctx context.Context, data []byte, folder, filename string) (string, error)
}

type Gate struct {
	blobs BlobStore
}

func NewGate(blobs BlobStore) *Gate {
	return &Gate{blobs: blobs}
}

// Validate applies the upload rules without touching the blob store.
func (g *Gate) Validate(files []File) error {
	if len(files) == 0 {
		return fmt.Errorf("%w: no images supplied", domain.ErrMissingEvidence)
	}
	if len(files) > MaxImagesPerUpload {
		return fmt.Errorf("%w: at most %d per upload", domain.ErrTooManyImages, MaxImagesPerUpload)
	}
	for _, f := range files {
		ext := strings.ToLower(filepath.Ext(f.Name))
		if !allowedExt[ext] {
			return fmt.Errorf("%w: %q", domain.ErrInvalidFileType, f.Name)
		}
		size := f.Size
		if n := int64(len(f.Data)); n > size {
			size = n
		}
		if size > MaxFileSize {
			return fmt.Errorf("%w: %q is %d bytes", domain.ErrFileTooLarge, f.Name, size)
		}
		if size == 0 {
			return fmt.Errorf("%w: %q is empty", domain.ErrInvalidFileType, f.Name)
		}
	}
	return nil
}

// Store validates files and uploads them under folder, returning URLs in input order.
func (g *Gate) Store(ctx context.Context, folder string, files []File) ([]string, error) {
	if err := g.Validate(files); err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(files))
	for _, f := range files {
		name := uuid.NewString() + strings.ToLower(filepath.Ext(f.Name))
		url, err := g.blobs.UploadFile(ctx, f.Data, folder, name)
		if err != nil {
			return nil, fmt.Errorf("upload %q: %w", f.Name, err)
		}
		urls = append(urls, url)
	}
	return urls, nil
}

// Archive stores a non-image document such as a gateway receipt.
func (g *Gate) Archive(ctx context.Context, folder, filename string, data []byte) (string, error) {
	return g.blobs.UploadFile(ctx, data, folder, filename)
}
