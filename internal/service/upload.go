package service

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"cardsync/internal/domain"
	"cardsync/internal/export"
)

// ImageUpload is one uploaded image as received from a client.
type ImageUpload struct {
	Name string
	Size int64
	Body io.Reader
}

type validatedImage struct {
	name        string
	ext         string
	contentType string
	data        []byte
}

// validateUploads checks count, extension, size and magic bytes of every
// upload before anything is written to disk.
func (s *runService) validateUploads(uploads []ImageUpload) ([]validatedImage, error) {
	if len(uploads) == 0 {
		return nil, domain.ErrNoImages
	}
	if s.cfg.MaxFiles > 0 && len(uploads) > s.cfg.MaxFiles {
		return nil, fmt.Errorf("%w: %d files, at most %d allowed", domain.ErrTooManyFiles, len(uploads), s.cfg.MaxFiles)
	}

	out := make([]validatedImage, 0, len(uploads))
	for _, u := range uploads {
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(u.Name), "."))
		if _, ok := domain.AllowedExtensions[ext]; !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedFileType, u.Name)
		}
		if s.cfg.MaxFileSize > 0 && u.Size > s.cfg.MaxFileSize {
			return nil, fmt.Errorf("%w: %s", domain.ErrFileTooLarge, u.Name)
		}

		r := u.Body
		if s.cfg.MaxFileSize > 0 {
			r = io.LimitReader(u.Body, s.cfg.MaxFileSize+1)
		}
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", u.Name, err)
		}
		if s.cfg.MaxFileSize > 0 && int64(len(data)) > s.cfg.MaxFileSize {
			return nil, fmt.Errorf("%w: %s", domain.ErrFileTooLarge, u.Name)
		}

		// magic-byte content type detection
		detected := http.DetectContentType(data[:min(len(data), 512)])
		if _, ok := domain.AllowedContentTypes[detected]; !ok {
			return nil, fmt.Errorf("%w: %s (detected %s)", domain.ErrUnsupportedFileType, u.Name, detected)
		}

		out = append(out, validatedImage{name: u.Name, ext: ext, contentType: detected, data: data})
	}
	return out, nil
}

// writeImages stores validated images in dir, prefixed with their position.
func writeImages(dir string, images []validatedImage) ([]domain.Image, error) {
	out := make([]domain.Image, 0, len(images))
	for i, img := range images {
		stem := export.SanitizeFilename(strings.TrimSuffix(filepath.Base(img.name), filepath.Ext(img.name)))
		if stem == "" {
			stem = "image"
		}
		path := filepath.Join(dir, fmt.Sprintf("%03d-%s.%s", i, stem, img.ext))
		if err := os.WriteFile(path, img.data, 0o600); err != nil {
			return nil, fmt.Errorf("writing %s: %w", img.name, err)
		}
		out = append(out, domain.Image{
			Index:       i,
			Name:        img.name,
			Path:        path,
			ContentType: img.contentType,
			Size:        int64(len(img.data)),
		})
	}
	return out, nil
}

// OpenImageFiles opens local files as uploads. The returned closer closes
// every opened file.
func OpenImageFiles(paths []string) ([]ImageUpload, func(), error) {
	var files []*os.File
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}
	uploads := make([]ImageUpload, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("opening %s: %w", p, err)
		}
		files = append(files, f)
		info, err := f.Stat()
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("stat %s: %w", p, err)
		}
		uploads = append(uploads, ImageUpload{Name: filepath.Base(p), Size: info.Size(), Body: f})
	}
	return uploads, closeAll, nil
}
