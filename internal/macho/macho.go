// Package macho classifies files that lipo and install_name_tool can
// operate on.
package macho

import (
	"bytes"
	"debug/macho"
	"encoding/binary"
	"errors"
	"io"
	"os"
)

// Kind is the binary kind of a file.
type Kind int

const (
	None Kind = iota
	Object
	Archive
)

// ArchiveMagic starts every static library.
const ArchiveMagic = "!<arch>\n"

// IsObject reports whether header starts with a little-endian Mach-O magic.
func IsObject(header []byte) bool {
	if len(header) < 4 {
		return false
	}
	switch binary.LittleEndian.Uint32(header) {
	case macho.Magic64, macho.Magic32:
		return true
	}
	return false
}

// IsArchive reports whether header starts a static library.
func IsArchive(header []byte) bool {
	return bytes.HasPrefix(header, []byte(ArchiveMagic))
}

// Sniff reads the first bytes of path and classifies it.
func Sniff(path string) (Kind, error) {
	f, err := os.Open(path)
	if err != nil {
		return None, err
	}
	defer f.Close()

	header := make([]byte, len(ArchiveMagic))
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return None, err
	}
	header = header[:n]
	switch {
	case IsObject(header):
		return Object, nil
	case IsArchive(header):
		return Archive, nil
	}
	return None, nil
}
