package image

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/image-optimizer/internal/api/respond"
	"github.com/aliskhannn/image-optimizer/internal/model"
	"github.com/aliskhannn/image-optimizer/internal/storage/file"
)

// ErrMissingFile is returned when the request carries no image file.
var ErrMissingFile = errors.New("no image file uploaded")

const (
	fieldImage     = "image"
	fieldQuality   = "quality"
	fieldWidth     = "width"
	fieldHeight    = "height"
	fieldWatermark = "watermark"

	// multipartOverhead is the room left for boundaries and text fields
	// on top of the file size limit.
	multipartOverhead = 1 << 20
)

// service defines the interface for the transform pipelines.
type service interface {
	Process(ctx context.Context, src io.Reader, originalName string, req model.TransformRequest) ([]byte, error)
}

// Handler provides HTTP handlers for the image endpoints.
// It depends on a service interface to perform the business logic.
type Handler struct {
	service        service
	maxSize        int64
	defaultQuality int
}

// NewHandler creates a new Handler. maxSize is the upload limit in bytes and
// defaultQuality is used when the request has no numeric quality.
func NewHandler(s service, maxSize int64, defaultQuality int) *Handler {
	return &Handler{service: s, maxSize: maxSize, defaultQuality: defaultQuality}
}

// ConvertToWebp handles POST /convert-to-webp.
func (h *Handler) ConvertToWebp(c *ginext.Context) {
	h.process(c, model.ModeConvertToWebp)
}

// OptimizeImage handles POST /optimize-image.
func (h *Handler) OptimizeImage(c *ginext.Context) {
	h.process(c, model.ModeOptimizeImage)
}

// OptimizeAndConvert handles POST /optimize-and-convert.
func (h *Handler) OptimizeAndConvert(c *ginext.Context) {
	h.process(c, model.ModeOptimizeAndConvert)
}

// Health reports that the service is up.
func (h *Handler) Health(c *ginext.Context) {
	respond.JSON(c, http.StatusOK, respond.Status{Status: "ok"})
}

// process reads the upload and the transform parameters, runs the pipeline
// and responds with the base64 encoded result.
func (h *Handler) process(c *ginext.Context, mode model.Mode) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxSize+multipartOverhead)

	f, header, err := h.formFile(c)
	if err != nil {
		h.fail(c, mode, err)
		return
	}
	defer f.Close()

	req := model.TransformRequest{
		Mode:      mode,
		Quality:   parseQuality(c.PostForm(fieldQuality), h.defaultQuality),
		Width:     parseDimension(c.PostForm(fieldWidth)),
		Height:    parseDimension(c.PostForm(fieldHeight)),
		Watermark: strings.TrimSpace(c.PostForm(fieldWatermark)),
	}

	data, err := h.service.Process(c.Request.Context(), f, header.Filename, req)
	if err != nil {
		h.fail(c, mode, err)
		return
	}

	respond.Encoded(c, mode.ResponseField(), data)
}

// formFile returns the uploaded image, mapping the multipart errors to
// ErrMissingFile and file.ErrPayloadTooLarge.
func (h *Handler) formFile(c *ginext.Context) (multipart.File, *multipart.FileHeader, error) {
	f, header, err := c.Request.FormFile(fieldImage)
	if err != nil {
		if isBodyTooLarge(err) {
			return nil, nil, file.ErrPayloadTooLarge
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrMissingFile, err)
	}

	if header.Size >= h.maxSize {
		_ = f.Close()
		return nil, nil, file.ErrPayloadTooLarge
	}

	return f, header, nil
}

// fail maps err to a status code and an error body.
func (h *Handler) fail(c *ginext.Context, mode model.Mode, err error) {
	switch {
	case errors.Is(err, ErrMissingFile):
		zlog.Logger.Warn().Err(err).Str("mode", mode.String()).Msg("no file uploaded")
		respond.Fail(c, http.StatusBadRequest, "No image file uploaded")
	case errors.Is(err, file.ErrPayloadTooLarge):
		zlog.Logger.Warn().Err(err).Str("mode", mode.String()).Int64("max", h.maxSize).Msg("file too large")
		respond.Fail(c, http.StatusBadRequest, fmt.Sprintf("File too large. Maximum size is %s.", sizeLabel(h.maxSize)))
	default:
		zlog.Logger.Error().Err(err).Str("mode", mode.String()).Msg(mode.FailureMessage())
		respond.Fail(c, http.StatusInternalServerError, fmt.Sprintf("%s: %v", mode.FailureMessage(), err))
	}
}

// parseQuality returns the numeric quality or def when v is empty or not a number.
// The value is not range checked.
func parseQuality(v string, def int) int {
	q, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}

	return q
}

// parseDimension returns a size in 1..model.MaxDimension or 0.
func parseDimension(v string) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 || n > model.MaxDimension {
		return 0
	}

	return n
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

func sizeLabel(n int64) string {
	const mb = 1 << 20
	if n >= mb && n%mb == 0 {
		return fmt.Sprintf("%dMB", n/mb)
	}

	return fmt.Sprintf("%d bytes", n)
}
