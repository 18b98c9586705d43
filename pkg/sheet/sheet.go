// Package sheet renders sampled frame buffers as contact sheet images.
package sheet

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"runtime"
	"strconv"
	"sync"

	"github.com/user/vidsample/pkg/adapters/logger"
	"github.com/user/vidsample/pkg/adapters/pixconv"
	"github.com/user/vidsample/pkg/ports"
)

// DefaultColumns is used when Options.Columns is not set.
const DefaultColumns = 8

// ErrEmpty is returned for an input without frames.
var ErrEmpty = errors.New("sheet: no frames")

var (
	labelColor  = color.RGBA{R: 0xe0, G: 0xe0, B: 0xe0, A: 0xff}
	paddedColor = color.RGBA{R: 0xf5, G: 0xa6, B: 0x23, A: 0xff}
)

// Options configures a contact sheet.
type Options struct {
	Columns    int
	Gap        int
	Background color.Color
	// TileWidth scales tiles down to this width. 0 keeps the frame size.
	TileWidth int

	// Labels draws the frame label under every tile.
	Labels   bool
	FontPath string
	FontSize float64

	Format  ports.ImageFormat
	Quality int

	// Workers bounds tile preparation concurrency. 0 uses every CPU.
	Workers int
}

func (o Options) fontSize() float64 {
	if o.FontSize > 0 {
		return o.FontSize
	}
	return 12
}

// Input is a packed frame buffer as produced by the sampler.
type Input struct {
	Data   []byte
	Frames int
	Width  int
	Height int
	Format ports.PixelFormat

	// Written is the number of decoded frames. Tiles from Written on are
	// padding and get outlined. A negative value marks none.
	Written int

	// Labels overrides the default "#i" tile labels.
	Labels []string
}

func (in Input) validate() error {
	if in.Frames <= 0 || len(in.Data) == 0 {
		return ErrEmpty
	}
	if want := in.Frames * in.Width * in.Height * ports.BytesPerPixel; len(in.Data) != want {
		return fmt.Errorf("%w: got %d bytes, want %d", pixconv.ErrBufferSize, len(in.Data), want)
	}
	return nil
}

// Render composes in onto one image and encodes it.
func Render(ctx context.Context, r ports.Renderer, in Input, opts Options, log ports.Logger) ([]byte, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNoop()
	}
	log = log.WithComponent("sheet")
	if opts.Background == nil {
		opts.Background = color.Black
	}

	layout := ComputeLayout(in.Frames, in.Width, in.Height, opts)
	log.Debug("Rendering %d tiles in %d columns, sheet %dx%d", in.Frames, layout.Columns, layout.Width, layout.Height)

	tiles, err := prepareTiles(ctx, r, in, layout, opts.Workers)
	if err != nil {
		return nil, err
	}

	canvas := r.CreateCanvas(layout.Width, layout.Height, opts.Background)
	style := ports.TextStyle{
		FontSize: opts.fontSize(),
		FontPath: opts.FontPath,
		Color:    labelColor,
		Align:    ports.AlignCenter,
	}
	for i, tile := range tiles {
		rect := layout.Tile(i)
		canvas.DrawImage(tile, rect.Min.X, rect.Min.Y)
		if in.Written >= 0 && i >= in.Written {
			canvas.DrawRectStroke(rect.Min.X, rect.Min.Y, rect.Dx(), rect.Dy(), paddedColor, 2)
		}
		if opts.Labels {
			canvas.DrawText(in.label(i), rect.Min.X+rect.Dx()/2, rect.Max.Y+layout.LabelHeight/2, style)
		}
	}

	return r.EncodeImage(canvas.ToImage(), opts.Format, opts.Quality)
}

func (in Input) label(i int) string {
	if i < len(in.Labels) {
		return in.Labels[i]
	}
	return "#" + strconv.Itoa(i)
}

// prepareTiles unpacks and scales every frame with a worker pool.
func prepareTiles(ctx context.Context, r ports.Renderer, in Input, layout Layout, workers int) ([]image.Image, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, in.Frames)

	tiles := make([]image.Image, in.Frames)
	jobs := make(chan int, in.Frames)
	errChan := make(chan error, workers)
	frameSize := in.Width * in.Height * ports.BytesPerPixel

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				select {
				case <-ctx.Done():
					errChan <- ctx.Err()
					return
				default:
				}

				img, err := pixconv.Unpack(in.Data[i*frameSize:(i+1)*frameSize], in.Width, in.Height, in.Format)
				if err != nil {
					errChan <- fmt.Errorf("unpack frame %d: %w", i, err)
					return
				}
				tiles[i] = r.ResizeImage(img, layout.TileWidth, layout.TileHeight)
			}
		}()
	}

	for i := 0; i < in.Frames; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	close(errChan)

	if err := <-errChan; err != nil {
		return nil, err
	}
	return tiles, nil
}
