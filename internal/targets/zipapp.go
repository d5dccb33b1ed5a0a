package targets

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

const zipAppShebang = "#!/usr/bin/env python3\n"

// writeZipApp writes an executable Python zip application to dst. It
// holds the files of src whose first path element starts with prefix,
// and a __main__.py calling module.fn.
func writeZipApp(dst, src, prefix, module, fn string) (err error) {
	f, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o755)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	bw := bufio.NewWriter(f)
	if _, err := bw.WriteString(zipAppShebang); err != nil {
		return err
	}
	zw := zip.NewWriter(bw)
	zw.SetOffset(int64(len(zipAppShebang)))

	mainPy, err := zw.CreateHeader(&zip.FileHeader{Name: "__main__.py", Method: zip.Deflate})
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(mainPy, "# -*- coding: utf-8 -*-\nimport %s\n%s.%s()\n", module, module, fn); err != nil {
		return err
	}

	err = filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil || rel == "." {
			return err
		}
		rel = filepath.ToSlash(rel)
		first, _, _ := strings.Cut(rel, "/")
		if !strings.HasPrefix(first, prefix) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return addZipFile(zw, path, rel)
	})
	if err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return bw.Flush()
}

func addZipFile(zw *zip.Writer, path, name string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(fi)
	if err != nil {
		return err
	}
	hdr.Name = name
	hdr.Method = zip.Deflate
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()
	_, err = io.Copy(w, in)
	return err
}
