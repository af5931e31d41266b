package varc

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/seiflotfy/varc/codec"
)

// ErrSameFile indicates an output path that would overwrite its input.
var ErrSameFile = errors.New("output would overwrite input")

// ErrOutsideDirectory indicates an output path that is not in the same
// directory as its input.
var ErrOutsideDirectory = errors.New("output is outside the input directory")

// Operation names the direction of a file conversion.
type Operation string

const (
	OpEncode Operation = "encode"
	OpDecode Operation = "decode"
)

// Report summarizes one EncodeFile or DecodeFile call.
type Report struct {
	Operation Operation
	Algorithm codec.Algorithm
	Source    string // path that was read
	Target    string // path that was written
	// SourceSize and TargetSize are file sizes in bytes.
	SourceSize int64
	TargetSize int64
	Elapsed    time.Duration
}

// Ratio returns SourceSize/TargetSize for an encode and 0 for a decode or an
// empty target.
func (r Report) Ratio() float64 {
	if r.Operation != OpEncode || r.TargetSize == 0 {
		return 0
	}
	return float64(r.SourceSize) / float64(r.TargetSize)
}

// splitPath splits path into its directory, base name without extension, and
// extension including the dot.
func splitPath(path string) (dir, name, ext string) {
	dir = filepath.Dir(path)
	base := filepath.Base(path)
	ext = filepath.Ext(base)
	name = strings.TrimSuffix(base, ext)
	return dir, name, ext
}

// EncodeFile compresses the file at path with alg and writes the archive next
// to it as <newName>.<alg>, or <name>.<alg> when newName is empty.
func EncodeFile(path string, alg codec.Algorithm, newName string, opts ...Option) (Report, error) {
	c, err := New(alg, opts...)
	if err != nil {
		return Report{}, err
	}
	dir, name, ext := splitPath(path)
	if newName != "" {
		name = newName
	}
	target := filepath.Join(dir, name+alg.Ext())
	if filepath.Clean(target) == filepath.Clean(path) {
		return Report{}, fmt.Errorf("encode %s: %w", path, ErrSameFile)
	}

	start := time.Now()
	data, err := os.ReadFile(path)
	if err != nil {
		return Report{}, err
	}
	res, err := c.Encode(data)
	if err != nil {
		return Report{}, fmt.Errorf("encode %s: %w", path, err)
	}
	archive := Archive{Metadata: res.Metadata, Payload: res.Payload, Extension: ext}
	size, err := writeArchive(target, &archive)
	if err != nil {
		return Report{}, err
	}
	elapsed := time.Since(start)

	log.Debugf("encoded %s (%d bytes) to %s (%d bytes) with %s in %s", path, len(data), target, size, alg, elapsed)
	return Report{
		Operation:  OpEncode,
		Algorithm:  alg,
		Source:     path,
		Target:     target,
		SourceSize: int64(len(data)),
		TargetSize: size,
		Elapsed:    elapsed,
	}, nil
}

// DecodeFile restores the file archived at path. The codec is chosen by the
// file extension and must agree with the archived metadata. The output is
// written next to the archive as <newName><original extension>, or
// <name><original extension> when newName is empty.
func DecodeFile(path string, newName string, opts ...Option) (Report, error) {
	dir, name, ext := splitPath(path)
	c, err := ForExtension(ext, opts...)
	if err != nil {
		return Report{}, fmt.Errorf("decode %s: %w", path, err)
	}
	if newName != "" {
		name = newName
	}

	start := time.Now()
	archive, size, err := readArchive(path)
	if err != nil {
		return Report{}, err
	}
	if got := archive.Algorithm(); got != c.Algorithm() {
		return Report{}, fmt.Errorf("decode %s: %w: file extension %s, archive holds %s", path, codec.ErrInvalidMetadata, ext, got)
	}
	target := filepath.Join(dir, name+archive.Extension)
	if filepath.Dir(target) != filepath.Clean(dir) {
		return Report{}, fmt.Errorf("decode %s: %w: %s", path, ErrOutsideDirectory, target)
	}
	if filepath.Clean(target) == filepath.Clean(path) {
		return Report{}, fmt.Errorf("decode %s: %w", path, ErrSameFile)
	}

	data, err := archive.Decode(c)
	if err != nil {
		return Report{}, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return Report{}, err
	}
	elapsed := time.Since(start)

	log.Debugf("decoded %s (%d bytes) to %s (%d bytes) in %s", path, size, target, len(data), elapsed)
	return Report{
		Operation:  OpDecode,
		Algorithm:  c.Algorithm(),
		Source:     path,
		Target:     target,
		SourceSize: size,
		TargetSize: int64(len(data)),
		Elapsed:    elapsed,
	}, nil
}

func writeArchive(path string, a *Archive) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	w := bufio.NewWriter(f)
	n, err := a.WriteTo(w)
	if err == nil {
		err = w.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return n, fmt.Errorf("write archive %s: %w", path, err)
	}
	return n, nil
}

func readArchive(path string) (*Archive, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	var a Archive
	n, err := a.ReadFrom(bufio.NewReader(f))
	if err != nil {
		return nil, n, fmt.Errorf("read archive %s: %w", path, err)
	}
	return &a, n, nil
}
