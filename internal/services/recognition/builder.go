package recognition

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"facewatch/internal/logger"

	"gocv.io/x/gocv"
)

// ImageLoader decodes a reference image from disk.
type ImageLoader func(path string) (image.Image, error)

// Builder scans the reference-image tree and produces a Catalog.
// Layout: one subdirectory per identity, image files inside.
type Builder struct {
	engine Engine
	load   ImageLoader
	logger *logger.Logger
}

// NewBuilder creates a Builder. A nil loader reads images with OpenCV.
func NewBuilder(engine Engine, load ImageLoader, logger *logger.Logger) *Builder {
	if load == nil {
		load = LoadImage
	}
	return &Builder{engine: engine, load: load, logger: logger}
}

// LoadImage reads a color image with OpenCV and converts it to RGBA.
func LoadImage(path string) (image.Image, error) {
	mat := gocv.IMRead(path, gocv.IMReadColor)
	defer mat.Close()

	if mat.Empty() {
		return nil, fmt.Errorf("unreadable image: %s", path)
	}
	return mat.ToImage()
}

func isReferenceImage(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

// Build walks root and extracts one signature per readable image.
// Images without a detectable face are skipped with a warning; unreadable
// images are skipped with an error log.
func (b *Builder) Build(root string) (*Catalog, error) {
	people, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read faces directory %s: %w", root, err)
	}
	sort.Slice(people, func(i, j int) bool { return people[i].Name() < people[j].Name() })

	b.logger.Info("Scanning %s...", root)

	var (
		signatures []Signature
		names      []string
	)
	for _, person := range people {
		if !person.IsDir() {
			continue
		}
		personDir := filepath.Join(root, person.Name())

		files, err := os.ReadDir(personDir)
		if err != nil {
			b.logger.Error("Error reading %s: %v", personDir, err)
			continue
		}
		for _, file := range files {
			if file.IsDir() || !isReferenceImage(file.Name()) {
				continue
			}

			path := filepath.Join(personDir, file.Name())
			sig, err := b.signatureFor(path)
			if err != nil {
				b.logger.Error("Error processing %s: %v", file.Name(), err)
				continue
			}
			if sig == nil {
				b.logger.Warning("No face found in %s, skipping", path)
				continue
			}

			signatures = append(signatures, sig)
			names = append(names, person.Name())
		}
	}

	return NewCatalog(signatures, names), nil
}

// signatureFor returns the signature of the first face in the image, or nil
// when no face is detected.
func (b *Builder) signatureFor(path string) (Signature, error) {
	img, err := b.load(path)
	if err != nil {
		return nil, err
	}

	boxes, err := b.engine.DetectFaces(img)
	if err != nil {
		return nil, err
	}
	if len(boxes) == 0 {
		return nil, nil
	}

	sigs, err := b.engine.EmbedFaces(img, boxes[:1])
	if err != nil {
		return nil, err
	}
	if len(sigs) == 0 {
		return nil, nil
	}
	return sigs[0], nil
}

// LoadOrBuild returns the cached catalog when it loads cleanly, otherwise
// rebuilds from root and persists the result. It never fails: a missing
// reference tree yields an empty catalog.
func (b *Builder) LoadOrBuild(cachePath, root string) *Catalog {
	catalog, err := LoadCache(cachePath)
	if err == nil {
		b.logger.Info("Loaded %d signatures from cache.", catalog.Len())
		return catalog
	}
	if !errors.Is(err, os.ErrNotExist) {
		b.logger.Warning("Cache corrupt (%v). Rebuilding...", err)
	}

	return b.Rebuild(cachePath, root)
}

// Rebuild scans root unconditionally and persists the catalog to cachePath.
func (b *Builder) Rebuild(cachePath, root string) *Catalog {
	catalog, err := b.Build(root)
	if err != nil {
		b.logger.Error("Faces directory '%s' not usable: %v", root, err)
		return NewCatalog(nil, nil)
	}

	if err := SaveCache(cachePath, catalog); err != nil {
		b.logger.Error("Failed to persist signature cache: %v", err)
		return catalog
	}

	b.logger.Info("Database cache successfully built with %d signatures.", catalog.Len())
	return catalog
}
