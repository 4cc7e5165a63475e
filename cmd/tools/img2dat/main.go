// Command img2dat converts two grayscale raster images (PNG or TIFF)
// into the binary pair container consumed by the flct command.
package main

import (
	"flag"
	"image"
	_ "image/png"
	"log"
	"os"

	_ "golang.org/x/image/tiff"

	"github.com/banshee-data/flct"
)

var (
	aPath   = flag.String("a", "", "First raster image (required)")
	bPath   = flag.String("b", "", "Second raster image (required)")
	outPath = flag.String("out", "", "Output container path (required)")
	order   = flag.String("order", "row", "Storage order to write: row or column")
)

func main() {
	flag.Parse()

	if *aPath == "" || *bPath == "" || *outPath == "" {
		log.Fatal("-a, -b and -out are required")
	}

	im1, err := loadGray(*aPath)
	if err != nil {
		log.Fatalf("load %s: %v", *aPath, err)
	}
	im2, err := loadGray(*bPath)
	if err != nil {
		log.Fatalf("load %s: %v", *bPath, err)
	}
	if im1.NX != im2.NX || im1.NY != im2.NY {
		log.Fatalf("image shapes differ: %dx%d vs %dx%d", im1.NX, im1.NY, im2.NX, im2.NY)
	}

	if err := flct.WritePair(*outPath, im1, im2, flct.Order(*order)); err != nil {
		log.Fatalf("write %s: %v", *outPath, err)
	}
	log.Printf("wrote %dx%d pair to %s", im1.NX, im1.NY, *outPath)
}

// loadGray decodes a raster file into a luminance image. The x axis
// runs along raster columns and y along raster rows.
func loadGray(path string) (*flct.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	bounds := src.Bounds()
	nx, ny := bounds.Dx(), bounds.Dy()
	data := make([]float64, nx*ny)
	for x := 0; x < nx; x++ {
		for y := 0; y < ny; y++ {
			r, g, b, _ := src.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			// Rec. 601 luma over the 16-bit channel range.
			data[x*ny+y] = (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 65535
		}
	}
	return flct.NewImage(nx, ny, data)
}
