package image

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/image-optimizer/internal/cleanup"
	"github.com/aliskhannn/image-optimizer/internal/model"
)

// fileStorage defines the scratch storage used by the pipeline.
type fileStorage interface {
	SaveUpload(originalName string, src io.Reader) (model.Upload, error)
	ArtifactPath(upload model.Upload, suffix, ext string) string
	ReadAll(path string) ([]byte, error)
	Delete(path string) error
}

// processor defines the transform steps the pipeline is built from.
type processor interface {
	OptimizeJPEG(ctx context.Context, src, dst string, opts model.EncodeOptions) error
	ConvertWebP(ctx context.Context, src, dst string, opts model.EncodeOptions) error
}

// Efforts holds the WebP compression effort of each pipeline.
type Efforts struct {
	Convert int // plain WebP conversion
	Chain   int // WebP step after JPEG optimization
}

// Service runs the transform pipelines. Every file a pipeline creates is
// deleted before Process returns, whatever the outcome.
type Service struct {
	fileStorage fileStorage
	processor   processor
	efforts     Efforts
}

// NewService creates a new Service with the given storage, processor and efforts.
func NewService(fs fileStorage, p processor, e Efforts) *Service {
	return &Service{fileStorage: fs, processor: p, efforts: e}
}

// step is one transform of a pipeline.
type step struct {
	run    func(ctx context.Context, src, dst string, opts model.EncodeOptions) error
	format model.Format
	suffix string
	ext    string
	effort int
}

// Process stores the upload, runs the pipeline selected by req.Mode and
// returns the content of the final artifact.
func (s *Service) Process(ctx context.Context, src io.Reader, originalName string, req model.TransformRequest) ([]byte, error) {
	requestID := uuid.New().String()

	scope := cleanup.New(s.fileStorage, requestID)
	defer scope.Release()

	steps, err := s.pipeline(req.Mode)
	if err != nil {
		return nil, err
	}

	upload, err := s.fileStorage.SaveUpload(originalName, src)
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	scope.Track(upload.Path)

	zlog.Logger.Info().
		Str("request_id", requestID).
		Str("mode", req.Mode.String()).
		Str("original_name", originalName).
		Str("path", upload.Path).
		Int64("size", upload.Size).
		Int("quality", req.Quality).
		Msg("upload stored")

	current := model.Artifact{Path: upload.Path}
	for i, st := range steps {
		dst := s.fileStorage.ArtifactPath(upload, st.suffix, st.ext)
		if dst == current.Path {
			// A .webp upload converted to WebP would overwrite its own source.
			dst = s.fileStorage.ArtifactPath(upload, st.suffix+"-converted", st.ext)
		}
		scope.Track(dst)

		opts := model.EncodeOptions{
			Quality: req.Quality,
			Effort:  st.effort,
		}
		// Resize and watermark are applied once, by the first step.
		if i == 0 {
			opts.Width = req.Width
			opts.Height = req.Height
			opts.Watermark = req.Watermark
		}

		if err := st.run(ctx, current.Path, dst, opts); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}

		scope.Discard(current.Path)
		current = model.Artifact{Path: dst, Format: st.format}
	}

	data, err := s.fileStorage.ReadAll(current.Path)
	if err != nil {
		return nil, fmt.Errorf("read result: %w", err)
	}

	zlog.Logger.Info().
		Str("request_id", requestID).
		Str("mode", req.Mode.String()).
		Str("format", string(current.Format)).
		Int64("input_size", upload.Size).
		Int("output_size", len(data)).
		Msg("image processed")

	return data, nil
}

// pipeline returns the transform steps of a mode.
func (s *Service) pipeline(mode model.Mode) ([]step, error) {
	optimize := step{run: s.processor.OptimizeJPEG, format: model.FormatJPEG, suffix: "-optimized", ext: ".jpg"}

	switch mode {
	case model.ModeConvertToWebp:
		return []step{
			{run: s.processor.ConvertWebP, format: model.FormatWebP, ext: ".webp", effort: s.efforts.Convert},
		}, nil
	case model.ModeOptimizeImage:
		return []step{optimize}, nil
	case model.ModeOptimizeAndConvert:
		return []step{
			optimize,
			{run: s.processor.ConvertWebP, format: model.FormatWebP, suffix: "-optimized", ext: ".webp", effort: s.efforts.Chain},
		}, nil
	default:
		return nil, fmt.Errorf("unknown mode: %d", mode)
	}
}
