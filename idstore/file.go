package idstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/graphd/internal/hash"
	"github.com/hupe1980/graphd/internal/mmap"
	"github.com/hupe1980/graphd/model"
)

const (
	MagicNumber = 0x47524148 // "GRAH"
	Version     = 1

	fileSuffix = ".gmap"
)

var (
	ErrInvalidMagic   = errors.New("invalid magic number")
	ErrInvalidVersion = errors.New("unsupported version")
	ErrChecksum       = errors.New("payload checksum mismatch")
)

// Compression selects the payload encoding of a source file.
type Compression uint8

const (
	// CompressionNone stores the raw ID array; such files are served
	// memory-mapped without a load step.
	CompressionNone Compression = 0
	// CompressionLZ4 trades a load-time decompression for smaller files.
	CompressionLZ4 Compression = 1
	// CompressionZSTD compresses harder; for cold sources.
	CompressionZSTD Compression = 2
)

// FileHeader describes the layout of a source file. It is stored at the
// beginning of the file; the payload follows immediately.
type FileHeader struct {
	Magic       uint32
	Version     uint32
	Linkage     uint8
	Compression uint8
	_           [2]byte // Padding
	GUIDHi      uint64
	GUIDLo      uint64
	Count       uint64
	PayloadSize uint64 // Bytes on disk, after compression
	Checksum    uint32 // CRC32C of the payload as stored
	_           [4]byte // Reserved
}

// HeaderSize is the size of the encoded header in bytes.
const HeaderSize = 4 + 4 + 1 + 1 + 2 + 8 + 8 + 8 + 8 + 4 + 4

func (h *FileHeader) encode() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:], h.Version)
	buf[8] = h.Linkage
	buf[9] = h.Compression
	// Padding [10:12]
	binary.LittleEndian.PutUint64(buf[12:], h.GUIDHi)
	binary.LittleEndian.PutUint64(buf[20:], h.GUIDLo)
	binary.LittleEndian.PutUint64(buf[28:], h.Count)
	binary.LittleEndian.PutUint64(buf[36:], h.PayloadSize)
	binary.LittleEndian.PutUint32(buf[44:], h.Checksum)
	return buf
}

func decodeHeader(buf []byte) (*FileHeader, error) {
	if len(buf) < HeaderSize {
		return nil, errors.New("buffer too small for header")
	}
	h := &FileHeader{}
	h.Magic = binary.LittleEndian.Uint32(buf[0:])
	if h.Magic != MagicNumber {
		return nil, ErrInvalidMagic
	}
	h.Version = binary.LittleEndian.Uint32(buf[4:])
	if h.Version != Version {
		return nil, ErrInvalidVersion
	}
	h.Linkage = buf[8]
	h.Compression = buf[9]
	h.GUIDHi = binary.LittleEndian.Uint64(buf[12:])
	h.GUIDLo = binary.LittleEndian.Uint64(buf[20:])
	h.Count = binary.LittleEndian.Uint64(buf[28:])
	h.PayloadSize = binary.LittleEndian.Uint64(buf[36:])
	h.Checksum = binary.LittleEndian.Uint32(buf[44:])
	return h, nil
}

// fileName returns the source's file name within a store directory.
func fileName(src Source) string {
	return src.String() + fileSuffix
}

// WriteSource persists one source to dir, writing to a temporary file and
// renaming into place so readers never see a partial file.
func (s *Store) WriteSource(dir string, src Source, comp Compression) error {
	arr, n, ok := s.snapshot(src)
	if !ok {
		return fmt.Errorf("idstore: unknown source %s", src)
	}

	payload := encodeIDs(arr)
	switch comp {
	case CompressionNone:
	case CompressionLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(payload)))
		m, err := lz4.CompressBlock(payload, dst, nil)
		if err != nil {
			return fmt.Errorf("idstore: lz4 compress %s: %w", src, err)
		}
		if m == 0 || m >= len(payload) {
			comp = CompressionNone // Incompressible
		} else {
			payload = dst[:m]
		}
	case CompressionZSTD:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return err
		}
		payload = enc.EncodeAll(payload, nil)
		enc.Close()
	default:
		return fmt.Errorf("idstore: unknown compression %d", comp)
	}

	h := FileHeader{
		Magic:       MagicNumber,
		Version:     Version,
		Linkage:     uint8(src.Linkage),
		Compression: uint8(comp),
		GUIDHi:      src.GUID.Hi,
		GUIDLo:      src.GUID.Lo,
		Count:       n,
		PayloadSize: uint64(len(payload)),
		Checksum:    hash.CRC32C(payload),
	}

	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp := filepath.Join(dir, fileName(src)+".tmp")
	f, err := s.fs.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(h.encode()); err != nil {
		f.Close()
		s.fs.Remove(tmp)
		return err
	}
	if _, err := f.Write(payload); err != nil {
		f.Close()
		s.fs.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		s.fs.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		s.fs.Remove(tmp)
		return err
	}
	if err := s.fs.Rename(tmp, filepath.Join(dir, fileName(src))); err != nil {
		s.fs.Remove(tmp)
		return err
	}
	s.logger.Debug("wrote source file", "source", src.String(), "count", n, "bytes", len(payload))
	return nil
}

// WriteAll persists every source to dir.
func (s *Store) WriteAll(dir string, comp Compression) error {
	for _, src := range s.Sources() {
		if err := s.WriteSource(dir, src, comp); err != nil {
			return err
		}
	}
	return nil
}

// LoadDir attaches every source file found in dir. Uncompressed files are
// memory-mapped; compressed ones are expanded into memory. Loaded sources
// are frozen: further Adds to them fail.
func (s *Store) LoadDir(dir string) error {
	entries, err := s.fs.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileSuffix) {
			continue
		}
		if err := s.loadFile(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("idstore: load %s: %w", e.Name(), err)
		}
	}
	return nil
}

func (s *Store) loadFile(path string) error {
	m, err := mmap.Open(path)
	if err != nil {
		return err
	}
	data := m.Bytes()
	h, err := decodeHeader(data)
	if err != nil {
		m.Close()
		return err
	}
	if model.Linkage(h.Linkage) >= model.LinkageCount {
		m.Close()
		return fmt.Errorf("bad linkage %d", h.Linkage)
	}
	src := Source{
		Linkage: model.Linkage(h.Linkage),
		GUID:    model.GUID{Hi: h.GUIDHi, Lo: h.GUIDLo},
	}
	if uint64(len(data)) < HeaderSize+h.PayloadSize {
		m.Close()
		return fmt.Errorf("truncated payload: have %d bytes, header claims %d", len(data)-HeaderSize, h.PayloadSize)
	}
	payload := data[HeaderSize : HeaderSize+h.PayloadSize]
	if hash.CRC32C(payload) != h.Checksum {
		m.Close()
		return ErrChecksum
	}

	switch Compression(h.Compression) {
	case CompressionNone:
		arr, err := newFileArray(payload)
		if err != nil {
			m.Close()
			return err
		}
		if arr.len() != h.Count {
			m.Close()
			return fmt.Errorf("count mismatch: header %d, payload %d", h.Count, arr.len())
		}
		// Lookups binary-search the mapping; tell the kernel not to
		// read ahead.
		_ = m.Advise(mmap.AccessRandom)
		s.attach(src, arr)
		s.trackMapping(src, m)
	case CompressionLZ4:
		raw := make([]byte, h.Count*idWidth)
		n, err := lz4.UncompressBlock(payload, raw)
		m.Close()
		if err != nil {
			return err
		}
		if uint64(n) != h.Count*idWidth {
			return fmt.Errorf("decompressed size mismatch: %d != %d", n, h.Count*idWidth)
		}
		arr, err := newFileArray(raw)
		if err != nil {
			return err
		}
		s.attach(src, arr)
	case CompressionZSTD:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			m.Close()
			return err
		}
		raw, err := dec.DecodeAll(payload, nil)
		dec.Close()
		m.Close()
		if err != nil {
			return err
		}
		if uint64(len(raw)) != h.Count*idWidth {
			return fmt.Errorf("decompressed size mismatch: %d != %d", len(raw), h.Count*idWidth)
		}
		arr, err := newFileArray(raw)
		if err != nil {
			return err
		}
		s.attach(src, arr)
	default:
		m.Close()
		return fmt.Errorf("unknown compression %d", h.Compression)
	}
	s.logger.Debug("loaded source file", "source", src.String(), "count", h.Count)
	return nil
}

// Close unmaps every file-backed source. Iterators over mapped sources
// must be closed first.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for src, m := range s.mappings {
		if err := m.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.mappings, src)
	}
	return firstErr
}
