package model

// Upload is the source file of a single request, stored in the scratch directory.
type Upload struct {
	Filename     string `json:"filename"`      // generated unique name
	OriginalName string `json:"original_name"` // name sent by the client
	Path         string `json:"path"`
	Size         int64  `json:"size"`
}

// Format is the encoding of a derived artifact.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatWebP Format = "webp"
)

// Artifact is a file derived from an Upload by a transform step.
type Artifact struct {
	Path   string `json:"path"`
	Format Format `json:"format"`
}

// Mode selects the transform pipeline of an endpoint.
type Mode int

const (
	ModeConvertToWebp Mode = iota
	ModeOptimizeImage
	ModeOptimizeAndConvert
)

// String returns the mode name used in logs.
func (m Mode) String() string {
	switch m {
	case ModeConvertToWebp:
		return "convert-to-webp"
	case ModeOptimizeImage:
		return "optimize-image"
	case ModeOptimizeAndConvert:
		return "optimize-and-convert"
	default:
		return "unknown"
	}
}

// ResponseField is the JSON field that carries the encoded result.
func (m Mode) ResponseField() string {
	switch m {
	case ModeConvertToWebp:
		return "webpImage"
	case ModeOptimizeImage:
		return "optimizedImage"
	case ModeOptimizeAndConvert:
		return "optimizedWebpImage"
	default:
		return "image"
	}
}

// FailureMessage is the generic message reported when the pipeline fails.
func (m Mode) FailureMessage() string {
	switch m {
	case ModeConvertToWebp:
		return "Failed to convert image to WebP"
	case ModeOptimizeImage:
		return "Failed to optimize image"
	case ModeOptimizeAndConvert:
		return "Failed to optimize and convert image"
	default:
		return "Failed to process image"
	}
}

// MaxDimension is the largest width or height a resize may produce.
const MaxDimension = 8192

// TransformRequest holds the caller supplied parameters of one request.
type TransformRequest struct {
	Mode      Mode
	Quality   int    // passed to the codec as is
	Width     int    // 0 keeps the aspect ratio, both 0 disables resizing
	Height    int
	Watermark string // optional text drawn in the bottom-right corner
}

// EncodeOptions are the parameters of a single transform step.
type EncodeOptions struct {
	Quality   int
	Effort    int // WebP method, 0 (fast) to 6 (slowest, smallest)
	Width     int
	Height    int
	Watermark string
}
