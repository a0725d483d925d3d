package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/ginext"

	"github.com/aliskhannn/image-optimizer/internal/model"
	"github.com/aliskhannn/image-optimizer/internal/processor"
	"github.com/aliskhannn/image-optimizer/internal/storage/file"
)

type fakeService struct {
	mu       sync.Mutex
	requests []model.TransformRequest
	names    []string
	inputs   []string
	result   []byte
	err      error
}

func (f *fakeService) Process(_ context.Context, src io.Reader, originalName string, req model.TransformRequest) ([]byte, error) {
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, req)
	f.names = append(f.names, originalName)
	f.inputs = append(f.inputs, string(data))

	return f.result, f.err
}

func newEngine(svc service, maxSize int64) *ginext.Engine {
	h := NewHandler(svc, maxSize, 80)

	r := ginext.New()
	r.GET("/health", h.Health)
	r.POST("/convert-to-webp", h.ConvertToWebp)
	r.POST("/optimize-image", h.OptimizeImage)
	r.POST("/optimize-and-convert", h.OptimizeAndConvert)

	return r
}

// multipartBody builds a form with an optional image file and text fields.
func multipartBody(t *testing.T, filename string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	body := new(bytes.Buffer)
	w := multipart.NewWriter(body)

	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}

	if filename != "" {
		part, err := w.CreateFormFile("image", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}

	require.NoError(t, w.Close())

	return body, w.FormDataContentType()
}

func do(t *testing.T, r http.Handler, path string, body io.Reader, contentType string) (*httptest.ResponseRecorder, map[string]string) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), "body: %s", rec.Body.String())

	return rec, resp
}

var endpoints = []struct {
	path  string
	mode  model.Mode
	field string
}{
	{path: "/convert-to-webp", mode: model.ModeConvertToWebp, field: "webpImage"},
	{path: "/optimize-image", mode: model.ModeOptimizeImage, field: "optimizedImage"},
	{path: "/optimize-and-convert", mode: model.ModeOptimizeAndConvert, field: "optimizedWebpImage"},
}

func TestHandler_Success(t *testing.T) {
	for _, ep := range endpoints {
		t.Run(ep.path, func(t *testing.T) {
			svc := &fakeService{result: []byte("encoded result")}
			r := newEngine(svc, 1024)

			body, ct := multipartBody(t, "cat.jpg", []byte("jpeg"), map[string]string{"quality": "65"})
			rec, resp := do(t, r, ep.path, body, ct)

			assert.Equal(t, http.StatusOK, rec.Code)
			require.Len(t, resp, 1)
			assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("encoded result")), resp[ep.field])

			require.Len(t, svc.requests, 1)
			assert.Equal(t, ep.mode, svc.requests[0].Mode)
			assert.Equal(t, 65, svc.requests[0].Quality)
			assert.Equal(t, "cat.jpg", svc.names[0])
			assert.Equal(t, "jpeg", svc.inputs[0])
		})
	}
}

func TestHandler_Quality(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
		want   int
	}{
		{name: "omitted", fields: nil, want: 80},
		{name: "empty", fields: map[string]string{"quality": ""}, want: 80},
		{name: "non numeric", fields: map[string]string{"quality": "high"}, want: 80},
		{name: "numeric", fields: map[string]string{"quality": "42"}, want: 42},
		{name: "out of range passes through", fields: map[string]string{"quality": "150"}, want: 150},
		{name: "negative passes through", fields: map[string]string{"quality": "-5"}, want: -5},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeService{result: []byte("x")}
			r := newEngine(svc, 1024)

			body, ct := multipartBody(t, "a.png", []byte("png"), tc.fields)
			rec, _ := do(t, r, "/convert-to-webp", body, ct)

			require.Equal(t, http.StatusOK, rec.Code)
			require.Len(t, svc.requests, 1)
			assert.Equal(t, tc.want, svc.requests[0].Quality)
		})
	}
}

func TestHandler_ResizeAndWatermarkFields(t *testing.T) {
	svc := &fakeService{result: []byte("x")}
	r := newEngine(svc, 1024)

	body, ct := multipartBody(t, "a.png", []byte("png"), map[string]string{
		"width":     "300",
		"height":    "2000000000",
		"watermark": "  hello  ",
	})
	rec, _ := do(t, r, "/optimize-image", body, ct)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, svc.requests, 1)
	assert.Equal(t, 300, svc.requests[0].Width)
	assert.Equal(t, 0, svc.requests[0].Height)
	assert.Equal(t, "hello", svc.requests[0].Watermark)
}

func TestParseDimension(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{in: "", want: 0},
		{in: "abc", want: 0},
		{in: "-1", want: 0},
		{in: " 300 ", want: 300},
		{in: "8192", want: model.MaxDimension},
		{in: "8193", want: 0},
		{in: "2000000000", want: 0},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, parseDimension(tc.in), "input %q", tc.in)
	}
}

func TestHandler_MissingFile(t *testing.T) {
	tests := []struct {
		name string
		body func(t *testing.T) (io.Reader, string)
	}{
		{
			name: "multipart without image field",
			body: func(t *testing.T) (io.Reader, string) {
				return multipartBody(t, "", nil, map[string]string{"quality": "80"})
			},
		},
		{
			name: "not multipart",
			body: func(t *testing.T) (io.Reader, string) {
				return strings.NewReader(`{"image":"x"}`), "application/json"
			},
		},
		{
			name: "empty body",
			body: func(t *testing.T) (io.Reader, string) {
				return http.NoBody, ""
			},
		},
	}

	for _, ep := range endpoints {
		for _, tc := range tests {
			t.Run(ep.path+"/"+tc.name, func(t *testing.T) {
				svc := &fakeService{}
				r := newEngine(svc, 1024)

				body, ct := tc.body(t)
				rec, resp := do(t, r, ep.path, body, ct)

				assert.Equal(t, http.StatusBadRequest, rec.Code)
				assert.Equal(t, "No image file uploaded", resp["error"])
				assert.Empty(t, svc.requests)
			})
		}
	}
}

func TestHandler_PayloadTooLarge(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{name: "just under the limit", size: 1023},
		{name: "exactly at the limit", size: 1024, wantErr: true},
		{name: "over the limit", size: 1025, wantErr: true},
		{name: "body over the read limit", size: 3 << 20, wantErr: true},
	}

	for _, ep := range endpoints {
		for _, tc := range tests {
			t.Run(ep.path+"/"+tc.name, func(t *testing.T) {
				svc := &fakeService{result: []byte("x")}
				r := newEngine(svc, 1024)

				body, ct := multipartBody(t, "big.jpg", bytes.Repeat([]byte{0xff}, tc.size), nil)
				rec, resp := do(t, r, ep.path, body, ct)

				if !tc.wantErr {
					assert.Equal(t, http.StatusOK, rec.Code)
					require.Len(t, svc.inputs, 1)
					assert.Len(t, svc.inputs[0], tc.size)
					return
				}

				assert.Equal(t, http.StatusBadRequest, rec.Code)
				assert.Equal(t, "File too large. Maximum size is 1024 bytes.", resp["error"])
				assert.Empty(t, svc.requests)
			})
		}
	}
}

func TestIsBodyTooLarge(t *testing.T) {
	assert.True(t, isBodyTooLarge(&http.MaxBytesError{Limit: 10}))
	assert.True(t, isBodyTooLarge(fmt.Errorf("multipart: NextPart: %w", &http.MaxBytesError{Limit: 10})))
	assert.False(t, isBodyTooLarge(errors.New("http: request body too large")))
	assert.False(t, isBodyTooLarge(io.ErrUnexpectedEOF))
}

func TestHandler_PayloadTooLarge_FromService(t *testing.T) {
	svc := &fakeService{err: fmt.Errorf("upload: %w", file.ErrPayloadTooLarge)}
	r := newEngine(svc, 50<<20)

	body, ct := multipartBody(t, "a.jpg", []byte("jpeg"), nil)
	rec, resp := do(t, r, "/optimize-image", body, ct)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "File too large. Maximum size is 50MB.", resp["error"])
}

func TestHandler_TransformFailure(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{path: "/convert-to-webp", want: "Failed to convert image to WebP: step 1: transform failed: bad data"},
		{path: "/optimize-image", want: "Failed to optimize image: step 1: transform failed: bad data"},
		{path: "/optimize-and-convert", want: "Failed to optimize and convert image: step 1: transform failed: bad data"},
	}

	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			svc := &fakeService{err: fmt.Errorf("step 1: %w", fmt.Errorf("%w: %w", processor.ErrTransform, errors.New("bad data")))}
			r := newEngine(svc, 1024)

			body, ct := multipartBody(t, "a.jpg", []byte("jpeg"), nil)
			rec, resp := do(t, r, tc.path, body, ct)

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.Equal(t, tc.want, resp["error"])
		})
	}
}

func TestHandler_Health(t *testing.T) {
	r := newEngine(&fakeService{}, 1024)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestSizeLabel(t *testing.T) {
	assert.Equal(t, "50MB", sizeLabel(50<<20))
	assert.Equal(t, "1MB", sizeLabel(1<<20))
	assert.Equal(t, "1500 bytes", sizeLabel(1500))
	assert.Equal(t, "1572864 bytes", sizeLabel(3<<19))
}
