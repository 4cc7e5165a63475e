package flct

import "fmt"

// Image is a scalar field sampled on a regular (NX, NY) grid. Samples
// are stored flat in row-major order: sample (i, j) lives at
// Data[i*NY+j], with i indexing the x axis and j the y axis. The
// tracking engine treats images as read-only.
type Image struct {
	NX, NY int
	Data   []float64
}

// NewImage builds an Image from a flat row-major sample buffer. The
// buffer is copied, so the caller keeps ownership of data.
func NewImage(nx, ny int, data []float64) (*Image, error) {
	if nx < 1 || ny < 1 {
		return nil, &InvalidArgumentError{Param: "image", Reason: fmt.Sprintf("extents %dx%d must be positive", nx, ny)}
	}
	if len(data) != nx*ny {
		return nil, &InvalidArgumentError{Param: "image", Reason: fmt.Sprintf("%d samples for a %dx%d grid", len(data), nx, ny)}
	}
	d := make([]float64, len(data))
	copy(d, data)
	return &Image{NX: nx, NY: ny, Data: d}, nil
}

// At returns the sample at (i, j).
func (im *Image) At(i, j int) float64 { return im.Data[i*im.NY+j] }

// OrderSwap reinterprets each image's flat buffer as column-major and
// lays it back out row-major, keeping the (NX, NY) extents. Samples
// round through float32, the container's binary precision, so the swap
// is a real data transform and not a reshape: applying it twice does
// not restore a non-square image. The inputs are not modified.
func OrderSwap(images ...*Image) []*Image {
	out := make([]*Image, len(images))
	for k, im := range images {
		nx, ny := im.NX, im.NY
		data := make([]float64, len(im.Data))
		for i := 0; i < nx; i++ {
			for j := 0; j < ny; j++ {
				data[i*ny+j] = float64(float32(im.Data[j*nx+i]))
			}
		}
		out[k] = &Image{NX: nx, NY: ny, Data: data}
	}
	return out
}
