package embedding

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"os"
	"path/filepath"

	"github.com/Septimus4/AgendaFlow/pkg/logger"
)

// diskCache stores embedding vectors content-addressed by SHA-256 of the
// input text. Vectors are little-endian float32. Writes are idempotent:
// concurrent writers produce identical files.
type diskCache struct {
	dir string
}

func newDiskCache(dir string) (*diskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &diskCache{dir: dir}, nil
}

func (c *diskCache) path(text string) string {
	sum := sha256.Sum256([]byte(text))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+".vec")
}

func (c *diskCache) load(text string) ([]float32, bool) {
	data, err := os.ReadFile(c.path(text))
	if err != nil {
		return nil, false
	}
	if len(data)%4 != 0 {
		logger.Warn("Dropping corrupt embedding cache entry", "path", c.path(text))
		return nil, false
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, true
}

func (c *diskCache) store(text string, vec []float32) {
	data := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}
	if err := os.WriteFile(c.path(text), data, 0o644); err != nil {
		// Cache failures must not fail embedding.
		logger.Warn("Failed to write embedding cache entry", "err", err)
	}
}
