// Package chunkfile implements the on-disk chunk format: a "CHNK"
// magic, three little-endian int32 dimensions, a one-byte cell type tag,
// then the dense cell payload in row-major order (x outer, y middle,
// z inner). Absent cells are stored as the sentinel value -1.
package chunkfile

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
)

const Magic = "CHNK"

// Sentinel is the reserved cell value meaning "absent / never observed".
// It is excluded from the legal observed-value domain so the encoding
// stays unambiguous.
const Sentinel int32 = -1

// CellType tags the per-cell numeric encoding used in a chunk file.
type CellType byte

const (
	CellInt8    CellType = 'b'
	CellInt16   CellType = 'h'
	CellInt32   CellType = 'i'
	CellFloat64 CellType = 'd'
)

func (t CellType) Valid() bool {
	switch t {
	case CellInt8, CellInt16, CellInt32, CellFloat64:
		return true
	}
	return false
}

// Size returns the encoded width of one cell in bytes.
func (t CellType) Size() int {
	switch t {
	case CellInt8:
		return 1
	case CellInt16:
		return 2
	case CellInt32:
		return 4
	case CellFloat64:
		return 8
	}
	return 0
}

// MaxCell returns the largest observed value the type can persist.
// Narrower encodings must not truncate: an out-of-range value would
// alias another value, or worse, the sentinel.
func (t CellType) MaxCell() int32 {
	switch t {
	case CellInt8:
		return math.MaxInt8
	case CellInt16:
		return math.MaxInt16
	}
	return math.MaxInt32
}

func (t CellType) String() string {
	if t.Valid() {
		return string(rune(t))
	}
	return fmt.Sprintf("0x%02x", byte(t))
}

// ParseCellType maps a one-letter config tag to its CellType.
func ParseCellType(s string) (CellType, error) {
	if len(s) == 1 {
		if t := CellType(s[0]); t.Valid() {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrBadType, s)
}

var (
	ErrBadMagic = errors.New("chunkfile: bad magic")
	ErrBadType  = errors.New("chunkfile: unknown cell type tag")
)

type Header struct {
	SizeX, SizeY, SizeZ int
	Type                CellType
}

func (h Header) cellCount() int {
	return h.SizeX * h.SizeY * h.SizeZ
}

// Filename returns the deterministic file name for a chunk key.
func Filename(cx, cy, cz int) string {
	return fmt.Sprintf("chunk_%d_%d_%d.bin", cx, cy, cz)
}

// Write serializes one whole chunk, present and absent cells alike, to
// path. The parent directory is created if missing.
func Write(path string, sizeX, sizeY, sizeZ int, typ CellType, cells []int32) error {
	if !typ.Valid() {
		return fmt.Errorf("%w: %s", ErrBadType, typ)
	}
	if want := sizeX * sizeY * sizeZ; len(cells) != want {
		return fmt.Errorf("chunkfile: cell count %d does not match dims %dx%dx%d", len(cells), sizeX, sizeY, sizeZ)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	bw := bufio.NewWriterSize(f, 64*1024)
	if _, err := bw.WriteString(Magic); err != nil {
		return err
	}
	var hdr [12]byte
	binary.LittleEndian.PutUint32(hdr[0:], uint32(int32(sizeX)))
	binary.LittleEndian.PutUint32(hdr[4:], uint32(int32(sizeY)))
	binary.LittleEndian.PutUint32(hdr[8:], uint32(int32(sizeZ)))
	if _, err := bw.Write(hdr[:]); err != nil {
		return err
	}
	if err := bw.WriteByte(byte(typ)); err != nil {
		return err
	}
	var buf [8]byte
	for _, v := range cells {
		if err := writeCell(bw, buf[:], typ, v); err != nil {
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return f.Sync()
}

func writeCell(w *bufio.Writer, buf []byte, typ CellType, v int32) error {
	if v != Sentinel && (v < 0 || v > typ.MaxCell()) {
		return fmt.Errorf("chunkfile: value %d outside %s range [0, %d]", v, typ, typ.MaxCell())
	}
	switch typ {
	case CellInt8:
		return w.WriteByte(byte(int8(v)))
	case CellInt16:
		binary.LittleEndian.PutUint16(buf[:2], uint16(int16(v)))
		_, err := w.Write(buf[:2])
		return err
	case CellInt32:
		binary.LittleEndian.PutUint32(buf[:4], uint32(v))
		_, err := w.Write(buf[:4])
		return err
	case CellFloat64:
		binary.LittleEndian.PutUint64(buf[:8], math.Float64bits(float64(v)))
		_, err := w.Write(buf[:8])
		return err
	}
	return fmt.Errorf("%w: %s", ErrBadType, typ)
}

// ReadHeader decodes and validates the fixed-size header.
func ReadHeader(r io.Reader) (Header, error) {
	var h Header
	var raw [17]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return h, fmt.Errorf("chunkfile: header: %w", err)
	}
	if string(raw[:4]) != Magic {
		return h, fmt.Errorf("%w: %q", ErrBadMagic, raw[:4])
	}
	h.SizeX = int(int32(binary.LittleEndian.Uint32(raw[4:])))
	h.SizeY = int(int32(binary.LittleEndian.Uint32(raw[8:])))
	h.SizeZ = int(int32(binary.LittleEndian.Uint32(raw[12:])))
	h.Type = CellType(raw[16])
	if h.SizeX <= 0 || h.SizeY <= 0 || h.SizeZ <= 0 {
		return h, fmt.Errorf("chunkfile: non-positive dims %dx%dx%d", h.SizeX, h.SizeY, h.SizeZ)
	}
	if !h.Type.Valid() {
		return h, fmt.Errorf("%w: %s", ErrBadType, h.Type)
	}
	return h, nil
}

// Read loads a whole chunk file. Truncated or malformed payloads fail;
// a chunk is never partially returned.
func Read(path string) (Header, []int32, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, nil, err
	}
	defer f.Close()

	br := bufio.NewReaderSize(f, 64*1024)
	h, err := ReadHeader(br)
	if err != nil {
		return Header{}, nil, err
	}
	cells := make([]int32, h.cellCount())
	var buf [8]byte
	for i := range cells {
		v, err := readCell(br, buf[:], h.Type)
		if err != nil {
			return Header{}, nil, fmt.Errorf("chunkfile: cell %d: %w", i, err)
		}
		cells[i] = v
	}
	return h, cells, nil
}

func readCell(r io.Reader, buf []byte, typ CellType) (int32, error) {
	n := typ.Size()
	if _, err := io.ReadFull(r, buf[:n]); err != nil {
		return 0, err
	}
	switch typ {
	case CellInt8:
		return int32(int8(buf[0])), nil
	case CellInt16:
		return int32(int16(binary.LittleEndian.Uint16(buf[:2]))), nil
	case CellInt32:
		return int32(binary.LittleEndian.Uint32(buf[:4])), nil
	case CellFloat64:
		return int32(math.Float64frombits(binary.LittleEndian.Uint64(buf[:8]))), nil
	}
	return 0, fmt.Errorf("%w: %s", ErrBadType, typ)
}
