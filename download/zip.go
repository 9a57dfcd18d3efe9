package download

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/zip"
)

// BundleZip packs regular files directly under `dir` into a zip archive at
// `outputName`, returns number of files packed.
func BundleZip(dir string, outputName string) (int, error) {
	entryList, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read directory %s: %s", dir, err)
	}

	file, err := os.Create(outputName)
	if err != nil {
		return 0, fmt.Errorf("failed to create output file: %s", err)
	}
	defer file.Close()

	bufWriter := bufio.NewWriter(file)
	zipWriter := zip.NewWriter(bufWriter)

	cnt := 0
	for _, entry := range entryList {
		if !entry.Type().IsRegular() {
			continue
		}

		if err = addZipEntry(zipWriter, filepath.Join(dir, entry.Name())); err != nil {
			log.Warnf("%s", err)
			continue
		}
		cnt++
	}

	if err = zipWriter.Close(); err != nil {
		return cnt, fmt.Errorf("failed to finish archive %s: %s", outputName, err)
	}
	if err = bufWriter.Flush(); err != nil {
		return cnt, fmt.Errorf("failed to write archive %s: %s", outputName, err)
	}

	return cnt, nil
}

func addZipEntry(zipWriter *zip.Writer, filePath string) error {
	src, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %s", filePath, err)
	}
	defer src.Close()

	stat, err := src.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file %s: %s", filePath, err)
	}

	header, err := zip.FileInfoHeader(stat)
	if err != nil {
		return fmt.Errorf("failed to make archive entry for %s: %s", filePath, err)
	}
	header.Method = zip.Deflate

	writer, err := zipWriter.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to create archive entry with name %s: %s", header.Name, err)
	}

	if _, err = io.Copy(writer, src); err != nil {
		return fmt.Errorf("failed to archive %s: %s", filePath, err)
	}

	return nil
}
