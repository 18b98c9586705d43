//go:build libaom

package av1decoder

/*
#cgo !windows pkg-config: aom
#cgo windows CFLAGS: -IC:/vcpkg/installed/x64-windows-static/include
#cgo windows LDFLAGS: -LC:/vcpkg/installed/x64-windows-static/lib -laom -static -lpthread
#include <aom/aom_decoder.h>
#include <aom/aomdx.h>
#include <stdlib.h>
#include <string.h>

static aom_codec_iface_t* get_av1_decoder_interface() {
    return aom_codec_av1_dx();
}

static aom_codec_err_t init_decoder(aom_codec_ctx_t *ctx, aom_codec_iface_t *iface) {
    return aom_codec_dec_init(ctx, iface, NULL, 0);
}

static unsigned char* get_plane(aom_image_t *img, int plane) {
    return img->planes[plane];
}

static int get_stride(aom_image_t *img, int plane) {
    return img->stride[plane];
}

static unsigned int get_width(aom_image_t *img) {
    return img->d_w;
}

static unsigned int get_height(aom_image_t *img) {
    return img->d_h;
}

static int is_high_bitdepth(aom_image_t *img) {
    return (img->fmt & AOM_IMG_FMT_HIGHBITDEPTH) != 0;
}
*/
import "C"

import (
	"fmt"
	"image"
	"unsafe"

	"github.com/user/vidsample/pkg/ports"
)

// Available reports whether libaom support is compiled in.
const Available = true

// Decoder implements ports.FrameDecoder with libaom.
type Decoder struct {
	codec   *C.aom_codec_ctx_t
	queue   []decoded
	flushed bool
	closed  bool
}

// New creates and initializes an AV1 decoder.
func New() (*Decoder, error) {
	d := &Decoder{}
	if err := d.init(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Decoder) init() error {
	d.codec = (*C.aom_codec_ctx_t)(C.malloc(C.sizeof_aom_codec_ctx_t))
	if d.codec == nil {
		return fmt.Errorf("%w: allocate decoder context", ErrDecodeFailed)
	}
	C.memset(unsafe.Pointer(d.codec), 0, C.sizeof_aom_codec_ctx_t)

	iface := C.get_av1_decoder_interface()
	if res := C.init_decoder(d.codec, iface); res != C.AOM_CODEC_OK {
		C.free(unsafe.Pointer(d.codec))
		d.codec = nil
		return fmt.Errorf("%w: initialize decoder: %d", ErrDecodeFailed, res)
	}
	return nil
}

func (d *Decoder) destroy() {
	if d.codec != nil {
		C.aom_codec_destroy(d.codec)
		C.free(unsafe.Pointer(d.codec))
		d.codec = nil
	}
}

// SendPacket decodes one temporal unit. AV1 has no output reordering, so
// every frame shown by the unit carries the packet's timestamp.
func (d *Decoder) SendPacket(data []byte, pts int64, keyframe bool) error {
	if d.closed {
		return ErrClosed
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: empty temporal unit", ErrDecodeFailed)
	}

	res := C.aom_codec_decode(
		d.codec,
		(*C.uint8_t)(unsafe.Pointer(&data[0])),
		C.size_t(len(data)),
		nil,
	)
	if res != C.AOM_CODEC_OK {
		return fmt.Errorf("%w: pts %d: %d", ErrDecodeFailed, pts, res)
	}
	return d.collect(pts)
}

func (d *Decoder) collect(pts int64) error {
	var iter C.aom_codec_iter_t
	for {
		img := C.aom_codec_get_frame(d.codec, &iter)
		if img == nil {
			return nil
		}
		if C.is_high_bitdepth(img) != 0 {
			return fmt.Errorf("%w: high bit depth output", ErrDecodeFailed)
		}
		d.queue = append(d.queue, decoded{img: yuvToRGBA(img), pts: pts})
	}
}

// ReceiveFrame returns the oldest decoded frame.
func (d *Decoder) ReceiveFrame() (image.Image, int64, error) {
	if d.closed {
		return nil, 0, ErrClosed
	}
	if len(d.queue) == 0 {
		if d.flushed {
			return nil, 0, ports.ErrEndOfStream
		}
		return nil, 0, ports.ErrNeedMoreInput
	}
	f := d.queue[0]
	d.queue = d.queue[1:]
	return f.img, f.pts, nil
}

// Flush drains frames libaom still holds.
func (d *Decoder) Flush() error {
	if d.closed {
		return ErrClosed
	}
	if d.flushed {
		return nil
	}
	d.flushed = true
	if res := C.aom_codec_decode(d.codec, nil, 0, nil); res != C.AOM_CODEC_OK {
		return fmt.Errorf("%w: flush: %d", ErrDecodeFailed, res)
	}
	last := int64(0)
	if n := len(d.queue); n > 0 {
		last = d.queue[n-1].pts
	}
	return d.collect(last)
}

// Reset recreates the codec context.
func (d *Decoder) Reset() error {
	if d.closed {
		return ErrClosed
	}
	d.destroy()
	d.queue = nil
	d.flushed = false
	return d.init()
}

// Close releases decoder resources. It is safe to call more than once.
func (d *Decoder) Close() error {
	if d.closed {
		return nil
	}
	d.destroy()
	d.queue = nil
	d.closed = true
	return nil
}

// yuvToRGBA converts an 8-bit YUV420 image to RGBA.
func yuvToRGBA(img *C.aom_image_t) *image.RGBA {
	width := int(C.get_width(img))
	height := int(C.get_height(img))

	yStride := int(C.get_stride(img, 0))
	uStride := int(C.get_stride(img, 1))
	vStride := int(C.get_stride(img, 2))

	yPlane := unsafe.Slice((*byte)(unsafe.Pointer(C.get_plane(img, 0))), yStride*height)
	uPlane := unsafe.Slice((*byte)(unsafe.Pointer(C.get_plane(img, 1))), uStride*((height+1)/2))
	vPlane := unsafe.Slice((*byte)(unsafe.Pointer(C.get_plane(img, 2))), vStride*((height+1)/2))

	rgba := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b := yuvToRGB(
				yPlane[y*yStride+x],
				uPlane[(y/2)*uStride+x/2],
				vPlane[(y/2)*vStride+x/2],
			)
			idx := y*rgba.Stride + x*4
			rgba.Pix[idx] = r
			rgba.Pix[idx+1] = g
			rgba.Pix[idx+2] = b
			rgba.Pix[idx+3] = 255
		}
	}
	return rgba
}

var _ ports.FrameDecoder = (*Decoder)(nil)
