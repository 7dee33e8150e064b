package embedding

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/petrorag/petrorag/internal/domain"
)

const (
	magic         = "PRAGEMB1"
	formatVersion = uint32(1)

	// Guards against absurd allocations when reading a damaged header.
	maxIDLen     = 1 << 16
	maxDimension = 1 << 16
)

// Marshal encodes the store as a single little-endian blob:
//
//	magic[8] version:u32 dim:u32 count:u32
//	count * ( idLen:u32 id[idLen] dim*float32 )
//
// Entries are written in insertion order and float bits are preserved exactly.
func Marshal(s *Store) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(magic)

	header := []uint32{formatVersion, uint32(s.dim), uint32(len(s.ids))}
	if err := binary.Write(&buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write store header: %w", err)
	}

	word := make([]byte, 4)
	for _, id := range s.ids {
		binary.LittleEndian.PutUint32(word, uint32(len(id)))
		buf.Write(word)
		buf.WriteString(id)

		for _, f := range s.vectors[id] {
			binary.LittleEndian.PutUint32(word, math.Float32bits(f))
			buf.Write(word)
		}
	}

	return buf.Bytes(), nil
}

// Unmarshal decodes a blob produced by Marshal. Any structural problem is
// reported as a StoreCorrupt domain error.
func Unmarshal(data []byte) (*Store, error) {
	s, err := unmarshal(bytes.NewReader(data))
	if err != nil {
		return nil, domain.StoreCorruptError(err)
	}
	return s, nil
}

func unmarshal(r *bytes.Reader) (*Store, error) {
	head := make([]byte, len(magic))
	if _, err := io.ReadFull(r, head); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if string(head) != magic {
		return nil, errors.New("bad magic")
	}

	var header [3]uint32
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	version, dim, count := header[0], header[1], header[2]
	if version != formatVersion {
		return nil, fmt.Errorf("unsupported version %d", version)
	}
	if dim > maxDimension {
		return nil, fmt.Errorf("dimension %d out of range", dim)
	}
	if count > 0 && dim == 0 {
		return nil, errors.New("zero dimension with entries")
	}
	// Each entry needs at least its length prefix and vector.
	if uint64(count)*uint64(4+4*dim) > uint64(r.Len()) {
		return nil, fmt.Errorf("count %d exceeds blob size", count)
	}

	s := NewStore(int(dim))
	word := make([]byte, 4)
	for i := uint32(0); i < count; i++ {
		if _, err := io.ReadFull(r, word); err != nil {
			return nil, fmt.Errorf("entry %d: read id length: %w", i, err)
		}
		idLen := binary.LittleEndian.Uint32(word)
		if idLen > maxIDLen || int(idLen) > r.Len() {
			return nil, fmt.Errorf("entry %d: id length %d out of range", i, idLen)
		}

		id := make([]byte, idLen)
		if _, err := io.ReadFull(r, id); err != nil {
			return nil, fmt.Errorf("entry %d: read id: %w", i, err)
		}

		vec := make([]float32, dim)
		for j := range vec {
			if _, err := io.ReadFull(r, word); err != nil {
				return nil, fmt.Errorf("entry %d: read vector: %w", i, err)
			}
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(word))
		}

		if _, dup := s.vectors[string(id)]; dup {
			return nil, fmt.Errorf("entry %d: duplicate id %q", i, id)
		}
		if err := s.Add(string(id), vec); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}

	if r.Len() != 0 {
		return nil, fmt.Errorf("%d trailing bytes", r.Len())
	}
	return s, nil
}
