package classify

import "time"

// Classification defaults
const (
	// DefaultRegionTimeout bounds a single OCR call
	DefaultRegionTimeout = 3 * time.Second

	// ContrastFactor stretches gray levels around mid-gray before OCR
	ContrastFactor = 1.6

	// UpscaleFactor enlarges crops so small HUD text survives OCR
	UpscaleFactor = 2
)
