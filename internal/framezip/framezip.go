// Package framezip packs ordered frame buffers into zip archives for
// transfer between the dispatcher and remote chunk workers. Entry names are
// zero-padded frame indices so unpacking restores the original order.
package framezip

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Pack writes frames as numbered entries ("00000.jpg", "00001.jpg", ...).
func Pack(frames [][]byte, ext string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for i, frame := range frames {
		w, err := zw.Create(fmt.Sprintf("%05d%s", i, ext))
		if err != nil {
			return nil, fmt.Errorf("create archive entry %d: %w", i, err)
		}
		if _, err := w.Write(frame); err != nil {
			return nil, fmt.Errorf("write archive entry %d: %w", i, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return buf.Bytes(), nil
}

// Unpack restores frames in entry-number order.
func Unpack(archive []byte) ([][]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	files := make([]*zip.File, len(zr.File))
	copy(files, zr.File)
	sort.Slice(files, func(i, j int) bool {
		return entryNumber(files[i].Name) < entryNumber(files[j].Name)
	})

	frames := make([][]byte, 0, len(files))
	for _, f := range files {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open archive entry %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read archive entry %s: %w", f.Name, err)
		}
		frames = append(frames, data)
	}
	return frames, nil
}

func entryNumber(name string) int {
	stem := name
	if dot := strings.LastIndexByte(name, '.'); dot >= 0 {
		stem = name[:dot]
	}
	n, err := strconv.Atoi(stem)
	if err != nil {
		return -1
	}
	return n
}
