package download

import (
	"bufio"
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/gen2brain/avif"
	"golang.org/x/image/bmp"
	_ "golang.org/x/image/ccitt"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

type imageEncoder func(w io.Writer, img image.Image) error

func encodeJPEG(w io.Writer, img image.Image) error {
	return jpeg.Encode(w, img, nil)
}

var imageEncoders = map[string]imageEncoder{
	"avif": func(w io.Writer, img image.Image) error { return avif.Encode(w, img) },
	"bmp":  bmp.Encode,
	"jpeg": encodeJPEG,
	"jpg":  encodeJPEG,
	"png":  png.Encode,
	"tiff": func(w io.Writer, img image.Image) error { return tiff.Encode(w, img, nil) },
}

// ImageFormats returns names of formats downloaded images can be converted to.
func ImageFormats() []string {
	formats := make([]string, 0, len(imageEncoders))
	for format := range imageEncoders {
		formats = append(formats, format)
	}
	slices.Sort(formats)

	return formats
}

// CheckImageFormat reports an error if images can not be converted to given
// format. Empty format means no conversion and is always valid.
func CheckImageFormat(format string) error {
	if format == "" {
		return nil
	}

	if _, ok := imageEncoders[strings.ToLower(format)]; !ok {
		return fmt.Errorf("unsupported image format %q, expecting one of: %s", format, strings.Join(ImageFormats(), ", "))
	}

	return nil
}

// convertImage decodes downloaded image data and writes it to `outputName`
// encoded in given format.
func convertImage(data []byte, outputName string, format string) error {
	encode, ok := imageEncoders[strings.ToLower(format)]
	if !ok {
		return fmt.Errorf("unsupported image format: %s", format)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("image decoding failed: %s", err)
	}

	file, err := os.Create(outputName)
	if err != nil {
		return fmt.Errorf("failed to create output image file %s: %s", outputName, err)
	}
	defer file.Close()

	bufWriter := bufio.NewWriter(file)
	if err := encode(bufWriter, img); err != nil {
		return fmt.Errorf("failed to encode %s as %s: %s", outputName, format, err)
	}

	return bufWriter.Flush()
}
