package varc

import (
	"encoding"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/seiflotfy/varc/codec"
	"github.com/seiflotfy/varc/huffman"
	"github.com/seiflotfy/varc/lzw"
)

const (
	archiveMagic   = "VARC"
	archiveVersion = uint16(1)

	stageMetadata  = "metadata"
	stagePayload   = "payload"
	stageExtension = "extension"
	stageDigest    = "digest"

	stageMetadataParamLZW     = uint8(1)
	stageMetadataParamHuffman = uint8(2)

	maxArchiveStages     = 64
	maxStagePayloadBytes = 1 << 30 // 1 GiB
	maxExtensionBytes    = 255
	digestBytes          = 8
)

// ErrDigestMismatch indicates an archive whose payload does not hash to the
// stored digest. It wraps codec.ErrCorruptStream.
var ErrDigestMismatch = fmt.Errorf("%w: payload digest mismatch", codec.ErrCorruptStream)

// ErrInvalidExtension indicates a stored extension that is not a bare
// ".name" suffix, such as one holding a path separator.
var ErrInvalidExtension = errors.New("invalid file extension")

// Wire format (version 1):
//
//	magic[4] = "VARC"
//	version  = uint16 little-endian
//	stageCnt = uint16 little-endian
//	repeat stageCnt times:
//	  nameLen  = uint8
//	  paramLen = uint16 little-endian
//	  dataLen  = uint32 little-endian
//	  name     = nameLen bytes
//	  params   = paramLen bytes
//	  payload  = dataLen bytes
//
// Required stage names, written in this order:
//
//	metadata (params: algorithm id), payload, extension
//
// The optional digest stage holds the xxhash64 of the payload stage,
// little-endian. Unknown stages are skipped via dataLen framing.
type wireStageHeader struct {
	name     string
	paramLen uint16
	dataLen  uint32
}

func writeBytes(w io.Writer, b []byte) (int64, error) {
	n, err := w.Write(b)
	if err != nil {
		return int64(n), err
	}
	if n != len(b) {
		return int64(n), io.ErrShortWrite
	}
	return int64(n), nil
}

func writeStage(w io.Writer, name string, params []byte, payload []byte) (int64, error) {
	if len(name) == 0 || len(name) > 255 {
		return 0, fmt.Errorf("invalid stage name length: %d", len(name))
	}
	if len(params) > int(^uint16(0)) {
		return 0, fmt.Errorf("stage params too large for %q: %d", name, len(params))
	}
	if len(payload) > maxStagePayloadBytes {
		return 0, fmt.Errorf("stage payload too large for %q: %d", name, len(payload))
	}

	var header [7]byte
	header[0] = uint8(len(name))
	binary.LittleEndian.PutUint16(header[1:3], uint16(len(params)))
	binary.LittleEndian.PutUint32(header[3:7], uint32(len(payload)))

	var total int64
	for _, b := range [][]byte{header[:], []byte(name), params, payload} {
		n, err := writeBytes(w, b)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func readStageHeader(r io.Reader) (wireStageHeader, int64, error) {
	var header [7]byte
	n, err := io.ReadFull(r, header[:])
	total := int64(n)
	if err != nil {
		return wireStageHeader{}, total, err
	}
	nameLen := header[0]
	if nameLen == 0 {
		return wireStageHeader{}, total, fmt.Errorf("stage name length must be > 0")
	}
	paramLen := binary.LittleEndian.Uint16(header[1:3])
	dataLen := binary.LittleEndian.Uint32(header[3:7])
	if dataLen > uint32(maxStagePayloadBytes) {
		return wireStageHeader{}, total, fmt.Errorf("stage payload too large: %d", dataLen)
	}

	nameBytes := make([]byte, int(nameLen))
	n, err = io.ReadFull(r, nameBytes)
	total += int64(n)
	if err != nil {
		return wireStageHeader{}, total, err
	}

	return wireStageHeader{
		name:     string(nameBytes),
		paramLen: paramLen,
		dataLen:  dataLen,
	}, total, nil
}

// Archive is the persisted form of one encoded file: the codec metadata,
// the payload and the extension of the original file (with its dot, or
// empty).
type Archive struct {
	Metadata  codec.Metadata
	Payload   []byte
	Extension string
}

// Algorithm reports the algorithm of the archived metadata.
func (a *Archive) Algorithm() codec.Algorithm {
	if a.Metadata == nil {
		return ""
	}
	return a.Metadata.Algorithm()
}

func metadataParam(alg codec.Algorithm) (uint8, error) {
	switch alg {
	case codec.LZW:
		return stageMetadataParamLZW, nil
	case codec.Huffman:
		return stageMetadataParamHuffman, nil
	default:
		return 0, fmt.Errorf("%w: %q", codec.ErrUnknownAlgorithm, string(alg))
	}
}

func decodeMetadataStage(params []byte, payload []byte) (codec.Metadata, error) {
	if len(params) != 1 {
		return nil, fmt.Errorf("%w: metadata params length %d", codec.ErrInvalidMetadata, len(params))
	}
	switch params[0] {
	case stageMetadataParamLZW:
		var m lzw.Metadata
		if err := m.UnmarshalBinary(payload); err != nil {
			return nil, err
		}
		return m, nil
	case stageMetadataParamHuffman:
		var cb huffman.Codebook
		if err := cb.UnmarshalBinary(payload); err != nil {
			return nil, err
		}
		return cb, nil
	default:
		return nil, fmt.Errorf("%w: algorithm id %d", codec.ErrUnknownAlgorithm, params[0])
	}
}

func validateArchive(a *Archive) error {
	if a.Metadata == nil {
		return fmt.Errorf("%w: missing metadata", codec.ErrInvalidMetadata)
	}
	if len(a.Extension) > maxExtensionBytes {
		return fmt.Errorf("extension too long: %d bytes", len(a.Extension))
	}
	return validateExtension(a.Extension)
}

// validateExtension accepts "" or a dot followed by a name that holds no
// further dot, path separator or NUL.
func validateExtension(ext string) error {
	if ext == "" {
		return nil
	}
	if len(ext) < 2 || ext[0] != '.' || strings.ContainsAny(ext[1:], "./\\\x00") {
		return fmt.Errorf("%w: %q", ErrInvalidExtension, ext)
	}
	return nil
}

// WriteTo serializes the Archive to an io.Writer.
func (a *Archive) WriteTo(w io.Writer) (int64, error) {
	if err := validateArchive(a); err != nil {
		return 0, fmt.Errorf("invalid archive: %w", err)
	}
	param, err := metadataParam(a.Metadata.Algorithm())
	if err != nil {
		return 0, err
	}
	marshaler, ok := a.Metadata.(encoding.BinaryMarshaler)
	if !ok {
		return 0, fmt.Errorf("%w: %T cannot be serialized", codec.ErrInvalidMetadata, a.Metadata)
	}
	metadataPayload, err := marshaler.MarshalBinary()
	if err != nil {
		return 0, fmt.Errorf("encode stage %q: %w", stageMetadata, err)
	}
	var digest [digestBytes]byte
	binary.LittleEndian.PutUint64(digest[:], xxhash.Sum64(a.Payload))

	stages := []struct {
		name    string
		params  []byte
		payload []byte
	}{
		{name: stageMetadata, params: []byte{param}, payload: metadataPayload},
		{name: stagePayload, payload: a.Payload},
		{name: stageExtension, payload: []byte(a.Extension)},
		{name: stageDigest, payload: digest[:]},
	}

	var header [8]byte
	copy(header[:4], archiveMagic)
	binary.LittleEndian.PutUint16(header[4:6], archiveVersion)
	binary.LittleEndian.PutUint16(header[6:8], uint16(len(stages)))
	total, err := writeBytes(w, header[:])
	if err != nil {
		return total, err
	}

	for _, stage := range stages {
		n, err := writeStage(w, stage.name, stage.params, stage.payload)
		total += n
		if err != nil {
			return total, err
		}
	}
	log.Debugf("wrote %s archive: %d payload bytes, %d bytes total", a.Metadata.Algorithm(), len(a.Payload), total)
	return total, nil
}

// ReadFrom deserializes an Archive from an io.Reader. A digest stage, when
// present, is checked against the payload; a mismatch returns an error
// wrapping ErrDigestMismatch.
func (a *Archive) ReadFrom(r io.Reader) (int64, error) {
	var total int64
	var magic [4]byte
	magicOffset := total
	n, err := io.ReadFull(r, magic[:])
	total += int64(n)
	if err != nil {
		return total, fmt.Errorf("read archive magic at offset %d: %w", magicOffset, err)
	}
	if string(magic[:]) != archiveMagic {
		return total, fmt.Errorf("invalid archive magic at offset %d: %q", magicOffset, string(magic[:]))
	}

	var version uint16
	versionOffset := total
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return total, fmt.Errorf("read archive version at offset %d: %w", versionOffset, err)
	}
	total += 2
	if version != archiveVersion {
		return total, fmt.Errorf("unsupported archive version at offset %d: %d", versionOffset, version)
	}

	var stageCount uint16
	stageCountOffset := total
	if err := binary.Read(r, binary.LittleEndian, &stageCount); err != nil {
		return total, fmt.Errorf("read stage count at offset %d: %w", stageCountOffset, err)
	}
	total += 2
	if stageCount == 0 || stageCount > maxArchiveStages {
		return total, fmt.Errorf("invalid stage count at offset %d: %d", stageCountOffset, stageCount)
	}

	var tmp Archive
	var digest []byte
	seenStages := make(map[string]bool, stageCount)

	for i := 0; i < int(stageCount); i++ {
		headerOffset := total
		header, n, err := readStageHeader(r)
		total += n
		if err != nil {
			return total, fmt.Errorf("read stage header at offset %d (stage index %d): %w", headerOffset, i, err)
		}
		if seenStages[header.name] {
			return total, fmt.Errorf("duplicate stage %q at stage index %d", header.name, i)
		}

		params := make([]byte, int(header.paramLen))
		paramsOffset := total
		nParams, err := io.ReadFull(r, params)
		total += int64(nParams)
		if err != nil {
			return total, fmt.Errorf("read stage %q params at offset %d (stage index %d): %w", header.name, paramsOffset, i, err)
		}

		switch header.name {
		case stageMetadata, stagePayload, stageExtension, stageDigest:
			payload := make([]byte, int(header.dataLen))
			payloadOffset := total
			nPayload, err := io.ReadFull(r, payload)
			total += int64(nPayload)
			if err != nil {
				return total, fmt.Errorf("read stage %q payload at offset %d (stage index %d): %w", header.name, payloadOffset, i, err)
			}

			switch header.name {
			case stageMetadata:
				meta, err := decodeMetadataStage(params, payload)
				if err != nil {
					return total, fmt.Errorf("decode stage %q at offset %d (stage index %d): %w", header.name, payloadOffset, i, err)
				}
				tmp.Metadata = meta
			case stagePayload:
				tmp.Payload = payload
			case stageExtension:
				tmp.Extension = string(payload)
			case stageDigest:
				if len(payload) != digestBytes {
					return total, fmt.Errorf("decode stage %q at offset %d (stage index %d): digest length %d", header.name, payloadOffset, i, len(payload))
				}
				digest = payload
			}
			seenStages[header.name] = true

		default:
			skipOffset := total
			skipped, err := io.CopyN(io.Discard, r, int64(header.dataLen))
			total += skipped
			if err != nil {
				return total, fmt.Errorf("skip unknown stage %q at offset %d (stage index %d): %w", header.name, skipOffset, i, err)
			}
			log.Debugf("skipped unknown archive stage %q (%d bytes)", header.name, header.dataLen)
		}
	}

	requiredStages := []string{
		stageMetadata,
		stagePayload,
		stageExtension,
	}
	for _, stageName := range requiredStages {
		if !seenStages[stageName] {
			return total, fmt.Errorf("missing required stage %q", stageName)
		}
	}
	if digest != nil {
		if want, got := binary.LittleEndian.Uint64(digest), xxhash.Sum64(tmp.Payload); want != got {
			return total, fmt.Errorf("%w: stored %016x, computed %016x", ErrDigestMismatch, want, got)
		}
	}
	if err := validateArchive(&tmp); err != nil {
		return total, fmt.Errorf("invalid archive structure: %w", err)
	}

	*a = tmp
	return total, nil
}

// Decode decodes the archived payload with codec c, which must match the
// archive's algorithm.
func (a *Archive) Decode(c codec.Codec) ([]byte, error) {
	if a.Metadata == nil {
		return nil, fmt.Errorf("%w: missing metadata", codec.ErrInvalidMetadata)
	}
	if got, want := a.Metadata.Algorithm(), c.Algorithm(); got != want {
		return nil, fmt.Errorf("%w: archive holds %s metadata, codec is %s", codec.ErrInvalidMetadata, got, want)
	}
	return c.Decode(a.Metadata, a.Payload)
}
