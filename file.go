package flct

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
)

// The image container is a fixed big-endian layout: a header of three
// 32-bit words (array count 2 or 3, x extent, y extent) followed by
// each array's float32 samples flattened row-major. Pairs carry input
// images; triples carry a velocity field (vx, vy, vm).

// maxPixels bounds the per-array allocation taken from a container
// header.
const maxPixels = 1 << 28

// ReadPair reads two same-shaped images from a container file.
func ReadPair(path string, order Order) (*Image, *Image, error) {
	imgs, err := readContainer(path, 2, order)
	if err != nil {
		return nil, nil, err
	}
	return imgs[0], imgs[1], nil
}

// ReadTriple reads three same-shaped arrays from a container file,
// typically a stored velocity field.
func ReadTriple(path string, order Order) (*Image, *Image, *Image, error) {
	imgs, err := readContainer(path, 3, order)
	if err != nil {
		return nil, nil, nil, err
	}
	return imgs[0], imgs[1], imgs[2], nil
}

// WritePair writes two same-shaped images to a container file.
func WritePair(path string, a, b *Image, order Order) error {
	return writeContainer(path, []*Image{a, b}, order)
}

// WriteTriple writes three same-shaped arrays to a container file.
func WriteTriple(path string, a, b, c *Image, order Order) error {
	return writeContainer(path, []*Image{a, b, c}, order)
}

func readContainer(path string, want int, order Order) ([]*Image, error) {
	if order != OrderRowMajor && order != OrderColumnMajor {
		return nil, &InvalidArgumentError{
			Param:  "order",
			Reason: fmt.Sprintf("%q is not a storage order; use %q or %q", string(order), OrderRowMajor, OrderColumnMajor),
		}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open container: %w", err)
	}
	defer f.Close()
	r := bufio.NewReader(f)

	var hdr [3]int32
	if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
		return nil, &FormatError{Path: path, Reason: "short header"}
	}
	count, nx, ny := int(hdr[0]), int(hdr[1]), int(hdr[2])
	if count != 2 && count != 3 {
		return nil, &FormatError{Path: path, Reason: fmt.Sprintf("array count %d, want 2 or 3", count)}
	}
	if count != want {
		return nil, &FormatError{Path: path, Reason: fmt.Sprintf("container holds %d arrays, want %d", count, want)}
	}
	if nx < 1 || ny < 1 || nx > maxPixels/ny {
		return nil, &FormatError{Path: path, Reason: fmt.Sprintf("bad extents %dx%d", nx, ny)}
	}

	imgs := make([]*Image, count)
	buf := make([]float32, nx*ny)
	for k := range imgs {
		if err := binary.Read(r, binary.BigEndian, buf); err != nil {
			return nil, &FormatError{Path: path, Reason: fmt.Sprintf("truncated array %d of %d", k+1, count)}
		}
		data := make([]float64, len(buf))
		for i, v := range buf {
			data[i] = float64(v)
		}
		imgs[k] = &Image{NX: nx, NY: ny, Data: data}
	}
	if order == OrderColumnMajor {
		imgs = OrderSwap(imgs...)
	}
	return imgs, nil
}

func writeContainer(path string, imgs []*Image, order Order) error {
	if order != OrderRowMajor && order != OrderColumnMajor {
		return &InvalidArgumentError{
			Param:  "order",
			Reason: fmt.Sprintf("%q is not a storage order; use %q or %q", string(order), OrderRowMajor, OrderColumnMajor),
		}
	}
	for _, im := range imgs {
		if im == nil {
			return &FormatError{Path: path, Reason: fmt.Sprintf("%d arrays are required", len(imgs))}
		}
	}
	first := imgs[0]
	for _, im := range imgs[1:] {
		if im.NX != first.NX || im.NY != first.NY {
			return &FormatError{
				Path:   path,
				Reason: fmt.Sprintf("shape mismatch between arrays: %dx%d vs %dx%d", first.NX, first.NY, im.NX, im.NY),
			}
		}
	}
	if order == OrderColumnMajor {
		imgs = OrderSwap(imgs...)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create container: %w", err)
	}
	w := bufio.NewWriter(f)

	hdr := [3]int32{int32(len(imgs)), int32(first.NX), int32(first.NY)}
	if err := binary.Write(w, binary.BigEndian, hdr); err != nil {
		f.Close()
		return fmt.Errorf("write header: %w", err)
	}
	buf := make([]float32, first.NX*first.NY)
	for _, im := range imgs {
		for i, v := range im.Data {
			buf[i] = float32(v)
		}
		if err := binary.Write(w, binary.BigEndian, buf); err != nil {
			f.Close()
			return fmt.Errorf("write samples: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush container: %w", err)
	}
	return f.Close()
}
