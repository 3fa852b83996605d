package ocr

import "time"

// Client configuration defaults
const (
	DefaultKeepaliveTime    = 10 * time.Second
	DefaultKeepaliveTimeout = 3 * time.Second
	DefaultCallTimeout      = 5 * time.Second
	DefaultLanguage         = "eng"

	// ServiceName and the recognize method path of the OCR engine sidecar.
	ServiceName     = "ocr.v1.OCRService"
	RecognizeMethod = "/" + ServiceName + "/Recognize"

	// LanguageKey carries the recognition language in request metadata.
	LanguageKey = "x-ocr-language"
)
