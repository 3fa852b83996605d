// Package pipeline runs the per-game capture loop and turns detected result
// screens into uploads, saved images and notifications.
package pipeline

import "time"

const (
	// DefaultUploadTimeout bounds one upload including enrichment and save.
	DefaultUploadTimeout = 30 * time.Second

	// DefaultMaxHashDistance is the pHash Hamming distance under which two
	// frames are treated as the same screen.
	DefaultMaxHashDistance = 4

	// HistoryLimit is the default page size for history reads.
	HistoryLimit = 50
)
