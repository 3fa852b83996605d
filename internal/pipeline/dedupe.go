package pipeline

import (
	"image"
	"sync"

	"github.com/corona10/goimagehash"

	"github.com/resultcap/platform/internal/classify"
)

// dedupe caches the classification of the last OCR'd frame keyed by its
// perceptual hash.
type dedupe struct {
	maxDistance int

	mu     sync.Mutex
	hash   *goimagehash.ImageHash
	result classify.Result
}

func newDedupe(maxDistance int) *dedupe {
	return &dedupe{maxDistance: maxDistance}
}

// match hashes img and returns the cached result when it is within
// maxDistance of the last classified frame. The hash is returned either way
// so a fresh classification can be remembered without rehashing.
func (d *dedupe) match(img image.Image) (*goimagehash.ImageHash, classify.Result, bool) {
	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return nil, classify.Result{}, false
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.hash == nil {
		return hash, classify.Result{}, false
	}
	dist, err := d.hash.Distance(hash)
	if err != nil || dist > d.maxDistance {
		return hash, classify.Result{}, false
	}
	return hash, d.result, true
}

func (d *dedupe) remember(hash *goimagehash.ImageHash, r classify.Result) {
	if hash == nil {
		return
	}
	d.mu.Lock()
	d.hash = hash
	d.result = r
	d.mu.Unlock()
}

func (d *dedupe) reset() {
	d.mu.Lock()
	d.hash = nil
	d.result = classify.Result{}
	d.mu.Unlock()
}
