package services

import (
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/image/draw"
)

// previewLimit is the maximum width and height of a staged preview image.
// Initially determined by testing with a 1920x1080 image.
const previewLimit = 800

const jpegQuality = 80

var allowedImageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".png":  true,
}

// StagedImage is an uploaded post image that has not been committed yet. It
// is only reachable through its temporary preview path until the owning post
// is submitted.
type StagedImage struct {
	Filename    string `json:"filename"`
	PreviewPath string `json:"preview_path"`
	diskDir     string
}

// ImageStore is the registry of staged post images for this serving process.
// It is handed to both the upload handler and the preview renderer; reads
// happen on every preview render while inserts are rare, so a single mutex
// around the map is enough.
type ImageStore struct {
	mu      sync.Mutex
	staged  map[string]StagedImage
	dir     string
	urlBase string
}

// NewImageStore returns a store writing previews below dir and serving them
// below urlBase.
func NewImageStore(dir, urlBase string) *ImageStore {
	return &ImageStore{
		staged:  make(map[string]StagedImage),
		dir:     dir,
		urlBase: urlBase,
	}
}

// Add decodes an uploaded image, scales it down to the preview limit and
// registers it under its original filename. Re-uploading a filename replaces
// the previous staging entry.
func (s *ImageStore) Add(header *multipart.FileHeader) (*StagedImage, error) {
	filename := filepath.Base(header.Filename)
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedImageExts[ext] {
		return nil, fmt.Errorf("%s is not an allowed image type", ext)
	}

	src, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	img, _, err := image.Decode(src)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	img = scaleToPreviewLimit(img)

	cacheKey := uuid.NewString()
	diskDir := filepath.Join(s.dir, cacheKey)
	if err := os.MkdirAll(diskDir, 0755); err != nil {
		return nil, err
	}

	previewName := "preview_" + filename
	dst, err := os.Create(filepath.Join(diskDir, previewName))
	if err != nil {
		return nil, err
	}
	defer dst.Close()

	switch ext {
	case ".png":
		err = png.Encode(dst, img)
	case ".gif":
		err = gif.Encode(dst, img, nil)
	default:
		err = jpeg.Encode(dst, img, &jpeg.Options{Quality: jpegQuality})
	}
	if err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}

	staged := StagedImage{
		Filename:    filename,
		PreviewPath: s.urlBase + "/" + cacheKey + "/" + previewName,
		diskDir:     diskDir,
	}

	s.mu.Lock()
	s.staged[filename] = staged
	s.mu.Unlock()

	return &staged, nil
}

// Lookup returns the preview path a filename is staged under.
func (s *ImageStore) Lookup(filename string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	staged, ok := s.staged[filename]
	return staged.PreviewPath, ok
}

// Staged returns a copy of the filename to preview path mapping for the
// normalizer to rewrite image links with.
func (s *ImageStore) Staged() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := make(map[string]string, len(s.staged))
	for name, staged := range s.staged {
		m[name] = staged.PreviewPath
	}
	return m
}

// ReleaseFor drops the staged images a submitted post references. Once the
// post is committed the previews have served their purpose; uploads the
// markdown never mentioned stay staged for the next attempt.
func (s *ImageStore) ReleaseFor(markdown string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, staged := range s.staged {
		if !MarkdownIncludesImage(name, markdown) {
			continue
		}
		if staged.diskDir != "" {
			os.RemoveAll(staged.diskDir)
		}
		delete(s.staged, name)
	}
}

// Clear drops every staged image and its preview files. Called once per list
// view render so abandoned uploads do not accumulate.
func (s *ImageStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, staged := range s.staged {
		if staged.diskDir != "" {
			os.RemoveAll(staged.diskDir)
		}
	}
	s.staged = make(map[string]StagedImage)
}

func scaleToPreviewLimit(img image.Image) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= previewLimit && h <= previewLimit {
		return img
	}

	scale := float64(previewLimit) / float64(w)
	if h > w {
		scale = float64(previewLimit) / float64(h)
	}
	dst := image.NewRGBA(image.Rect(0, 0, int(float64(w)*scale), int(float64(h)*scale)))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
