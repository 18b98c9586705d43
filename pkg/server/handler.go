package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/user/vidsample/pkg/adapters/memsource"
	"github.com/user/vidsample/pkg/probe"
	"github.com/user/vidsample/pkg/sampler"
	"github.com/user/vidsample/pkg/sheet"
	"github.com/user/vidsample/pkg/vidsample"
)

// Response headers describing a raw frame buffer.
const (
	HeaderFrames       = "X-Vidsample-Frames"
	HeaderWidth        = "X-Vidsample-Width"
	HeaderHeight       = "X-Vidsample-Height"
	HeaderPixelFormat  = "X-Vidsample-Pixel-Format"
	HeaderSeekDistance = "X-Vidsample-Seek-Distance"
	HeaderSession      = "X-Vidsample-Session"
	// HeaderWarning is set when the video could not be opened and the
	// body is a blank buffer.
	HeaderWarning = "X-Vidsample-Warning"
)

const (
	outputRaw   = "raw"
	outputSheet = "sheet"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

type uniformQuery struct {
	Width      int     `form:"width"`
	Height     int     `form:"height"`
	Frames     int     `form:"frames"`
	FPSCap     float64 `form:"fps_cap"`
	RandomSeek bool    `form:"random_seek"`
	Output     string  `form:"output"`
}

type framesQuery struct {
	Width   int    `form:"width"`
	Height  int    `form:"height"`
	Indices string `form:"indices"`
	Seek    bool   `form:"seek"`
	Output  string `form:"output"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleUniform handles POST /v1/uniform. The body is the video file.
func (s *Server) handleUniform(c *gin.Context) {
	sc := s.cfg.Sampling
	q := uniformQuery{
		Width:      sc.Width,
		Height:     sc.Height,
		Frames:     sc.Frames,
		FPSCap:     sc.FPSCap,
		RandomSeek: sc.RandomSeek,
		Output:     outputRaw,
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		s.abort(c, http.StatusBadRequest, err)
		return
	}
	if err := checkOutput(q.Output); err != nil {
		s.abort(c, http.StatusBadRequest, err)
		return
	}
	if err := s.checkLimits(q.Frames, q.Width, q.Height); err != nil {
		s.abort(c, http.StatusBadRequest, err)
		return
	}
	video, ok := s.readVideo(c)
	if !ok {
		return
	}

	res, err := s.loader.LoadUniform(video, vidsample.UniformOptions{
		Width:      q.Width,
		Height:     q.Height,
		Frames:     q.Frames,
		FPSCap:     q.FPSCap,
		RandomSeek: q.RandomSeek,
	})
	if res == nil {
		s.abort(c, statusFor(err), err)
		return
	}
	c.Header(HeaderSeekDistance, strconv.FormatFloat(res.SeekDistance, 'f', -1, 64))
	s.respond(c, &res.Result, err, q.Output, nil)
}

// handleFrames handles POST /v1/frames?indices=0,10,20.
func (s *Server) handleFrames(c *gin.Context) {
	sc := s.cfg.Sampling
	q := framesQuery{
		Width:  sc.Width,
		Height: sc.Height,
		Seek:   sc.IndexSeek,
		Output: outputRaw,
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		s.abort(c, http.StatusBadRequest, err)
		return
	}
	if err := checkOutput(q.Output); err != nil {
		s.abort(c, http.StatusBadRequest, err)
		return
	}
	indices, err := ParseIndices(q.Indices)
	if err != nil {
		s.abort(c, http.StatusBadRequest, err)
		return
	}
	if err := s.checkLimits(len(indices), q.Width, q.Height); err != nil {
		s.abort(c, http.StatusBadRequest, err)
		return
	}
	video, ok := s.readVideo(c)
	if !ok {
		return
	}

	res, err := s.loader.LoadFrames(video, vidsample.IndexOptions{
		Width:   q.Width,
		Height:  q.Height,
		Indices: indices,
		Seek:    q.Seek,
	})
	if res == nil {
		s.abort(c, statusFor(err), err)
		return
	}

	labels := make([]string, len(indices))
	for i, idx := range indices {
		labels[i] = strconv.FormatInt(idx, 10)
	}
	s.respond(c, &res.Result, err, q.Output, labels)
}

// handleProbe handles POST /v1/probe and answers with a JSON report.
func (s *Server) handleProbe(c *gin.Context) {
	video, ok := s.readVideo(c)
	if !ok {
		return
	}
	report, err := probe.Probe(s.opener, memsource.New(video), sampler.WithLogger(s.base))
	if err != nil {
		s.abort(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// respond writes a sampled buffer. openErr is the stream open failure that
// produced a blank buffer, if any.
func (s *Server) respond(c *gin.Context, res *vidsample.Result, openErr error, output string, labels []string) {
	if openErr != nil {
		c.Header(HeaderWarning, openErr.Error())
	}
	c.Header(HeaderFrames, strconv.Itoa(res.Count))
	c.Header(HeaderWidth, strconv.Itoa(res.Width))
	c.Header(HeaderHeight, strconv.Itoa(res.Height))
	c.Header(HeaderPixelFormat, res.Format.String())
	if res.SessionID != "" {
		c.Header(HeaderSession, res.SessionID)
	}

	if output == outputRaw {
		c.Data(http.StatusOK, "application/octet-stream", res.Frames)
		return
	}

	img, err := sheet.Render(c.Request.Context(), s.renderer, sheet.Input{
		Data:    res.Frames,
		Frames:  res.Count,
		Width:   res.Width,
		Height:  res.Height,
		Format:  res.Format,
		Written: res.Stats.Written,
		Labels:  labels,
	}, s.cfg.SheetOptions(), s.base)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, sheet.ErrEmpty) {
			status = http.StatusUnprocessableEntity
		}
		s.abort(c, status, err)
		return
	}
	c.Data(http.StatusOK, "image/png", img)
}

// readVideo reads the request body, bounded by the configured limit.
func (s *Server) readVideo(c *gin.Context) ([]byte, bool) {
	body := c.Request.Body
	if limit := s.cfg.Server.MaxBodyMiB; limit > 0 {
		body = http.MaxBytesReader(c.Writer, body, int64(limit)<<20)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.abort(c, http.StatusRequestEntityTooLarge, err)
		} else {
			s.abort(c, http.StatusBadRequest, err)
		}
		return nil, false
	}
	if len(data) == 0 {
		s.abort(c, http.StatusBadRequest, errors.New("empty request body"))
		return nil, false
	}
	return data, true
}

func (s *Server) abort(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.log.Error("Request failed: %s", err.Error())
	} else {
		s.log.Debug("Request rejected: %s", err.Error())
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, sampler.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, sampler.ErrStreamOpen),
		errors.Is(err, sampler.ErrBackendDecode),
		errors.Is(err, sampler.ErrSeek):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// checkLimits rejects oversized requests before the body is read. Native
// sizes are checked by the loader once the stream is open.
func (s *Server) checkLimits(frames, width, height int) error {
	sc := s.cfg.Server
	if sc.MaxFrames > 0 && frames > sc.MaxFrames {
		return fmt.Errorf("%d frames requested, max_frames is %d", frames, sc.MaxFrames)
	}
	if width <= 0 || height <= 0 || sc.MaxPixels <= 0 {
		return nil
	}
	if width > sc.MaxPixels/height {
		return fmt.Errorf("%dx%d exceeds max_pixels %d", width, height, sc.MaxPixels)
	}
	return nil
}

func checkOutput(output string) error {
	switch output {
	case outputRaw, outputSheet:
		return nil
	}
	return fmt.Errorf("unknown output %q, want %q or %q", output, outputRaw, outputSheet)
}

// ParseIndices parses a comma separated list of frame indices. Ordering
// is checked by the sampler.
func ParseIndices(list string) ([]int64, error) {
	var out []int64
	for _, field := range strings.Split(list, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		n, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid frame index %q", field)
		}
		out = append(out, n)
	}
	return out, nil
}
