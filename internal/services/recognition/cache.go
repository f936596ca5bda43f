package recognition

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
)

// ErrCacheInvalid marks a cache file that exists but cannot be trusted.
var ErrCacheInvalid = errors.New("invalid signature cache")

// cacheFile is the on-disk layout: two index-aligned collections.
type cacheFile struct {
	Signatures [][]float32 `json:"signatures"`
	Names      []string    `json:"names"`
}

// LoadCache reads a catalog from path. A missing file returns an error
// satisfying os.IsNotExist; anything unreadable wraps ErrCacheInvalid.
func LoadCache(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cf cacheFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheInvalid, err)
	}
	if len(cf.Signatures) != len(cf.Names) {
		return nil, fmt.Errorf("%w: %d signatures for %d names", ErrCacheInvalid, len(cf.Signatures), len(cf.Names))
	}

	sigs := make([]Signature, len(cf.Signatures))
	for i, s := range cf.Signatures {
		if len(s) == 0 || (i > 0 && len(s) != len(cf.Signatures[0])) {
			return nil, fmt.Errorf("%w: signature %d has length %d", ErrCacheInvalid, i, len(s))
		}
		sigs[i] = s
	}

	return NewCatalog(sigs, cf.Names), nil
}

// SaveCache writes the catalog to path, replacing any previous file atomically.
func SaveCache(path string, c *Catalog) error {
	cf := cacheFile{
		Signatures: make([][]float32, c.Len()),
		Names:      make([]string, c.Len()),
	}
	for i := 0; i < c.Len(); i++ {
		sig, name := c.Entry(i)
		cf.Signatures[i] = sig
		cf.Names[i] = name
	}

	data, err := json.Marshal(cf)
	if err != nil {
		return fmt.Errorf("failed to encode signature cache: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write signature cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close signature cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace signature cache: %w", err)
	}
	return nil
}
