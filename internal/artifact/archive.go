package artifact

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

// storedExtensions are payloads that gain nothing from recompression.
var storedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".zip":  true,
	".zst":  true,
}

// BuildArchive writes a zip archive at dst containing each source file under
// its base name. Used when a generation job produces more than one output;
// the caller then stores the archive as the task's single artifact.
func BuildArchive(dst string, sources []string) error {
	if len(sources) == 0 {
		return fmt.Errorf("no files to archive")
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating archive: %w", err)
	}
	zw := zip.NewWriter(out)

	for _, src := range sources {
		if err := addArchiveEntry(zw, src); err != nil {
			_ = zw.Close()
			_ = out.Close()
			_ = os.Remove(dst)
			return fmt.Errorf("archiving %s: %w", filepath.Base(src), err)
		}
	}

	if err := zw.Close(); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("finalizing archive: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("closing archive: %w", err)
	}
	return nil
}

func addArchiveEntry(zw *zip.Writer, src string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = filepath.Base(src)
	hdr.Method = zip.Deflate
	if storedExtensions[strings.ToLower(filepath.Ext(src))] {
		hdr.Method = zip.Store
	}

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	_, err = io.Copy(w, f)
	return err
}
