package vecindex

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"os"
)

// Binary index format (v1), little-endian throughout:
//
//	[4B magic "MIDX"] [4B version]
//	[4B dim] [8B count]
//	[count × dim × 4B float32 rows]
//	[8B FNV-1a checksum of the row payload]
var indexMagic = [4]byte{'M', 'I', 'D', 'X'}

const indexVersion uint32 = 1

// Save serializes the index to w.
func (ix *Index) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	le := binary.LittleEndian

	if _, err := bw.Write(indexMagic[:]); err != nil {
		return fmt.Errorf("vecindex: save magic: %w", err)
	}
	if err := binary.Write(bw, le, indexVersion); err != nil {
		return fmt.Errorf("vecindex: save version: %w", err)
	}
	if err := binary.Write(bw, le, uint32(ix.dim)); err != nil {
		return fmt.Errorf("vecindex: save dim: %w", err)
	}
	if err := binary.Write(bw, le, uint64(len(ix.rows))); err != nil {
		return fmt.Errorf("vecindex: save count: %w", err)
	}

	sum := fnv.New64a()
	buf := make([]byte, 4)
	for _, row := range ix.rows {
		for _, v := range row {
			le.PutUint32(buf, math.Float32bits(v))
			if _, err := bw.Write(buf); err != nil {
				return fmt.Errorf("vecindex: save row: %w", err)
			}
			sum.Write(buf)
		}
	}

	if err := binary.Write(bw, le, sum.Sum64()); err != nil {
		return fmt.Errorf("vecindex: save checksum: %w", err)
	}
	return bw.Flush()
}

// Load deserializes an index from r, validating magic, version, and payload
// checksum. Any disagreement is reported as ErrCorrupt.
func Load(r io.Reader) (*Index, error) {
	br := bufio.NewReader(r)
	le := binary.LittleEndian

	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return nil, fmt.Errorf("%w: read magic: %v", ErrCorrupt, err)
	}
	if magic != indexMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorrupt, magic[:])
	}

	var version uint32
	if err := binary.Read(br, le, &version); err != nil {
		return nil, fmt.Errorf("%w: read version: %v", ErrCorrupt, err)
	}
	if version != indexVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, version)
	}

	var dim uint32
	var count uint64
	if err := binary.Read(br, le, &dim); err != nil {
		return nil, fmt.Errorf("%w: read dim: %v", ErrCorrupt, err)
	}
	if err := binary.Read(br, le, &count); err != nil {
		return nil, fmt.Errorf("%w: read count: %v", ErrCorrupt, err)
	}
	if count > 0 && dim == 0 {
		return nil, fmt.Errorf("%w: %d rows with dim 0", ErrCorrupt, count)
	}

	ix := &Index{dim: int(dim)}
	sum := fnv.New64a()
	buf := make([]byte, 4)
	for i := uint64(0); i < count; i++ {
		row := make([]float32, dim)
		for j := range row {
			if _, err := io.ReadFull(br, buf); err != nil {
				return nil, fmt.Errorf("%w: truncated at row %d: %v", ErrCorrupt, i, err)
			}
			sum.Write(buf)
			row[j] = math.Float32frombits(le.Uint32(buf))
		}
		ix.rows = append(ix.rows, row)
	}

	var stored uint64
	if err := binary.Read(br, le, &stored); err != nil {
		return nil, fmt.Errorf("%w: read checksum: %v", ErrCorrupt, err)
	}
	if stored != sum.Sum64() {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	return ix, nil
}

// SaveFile writes the index to path via Save.
func (ix *Index) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := ix.Save(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadFile reads an index from path via Load. A missing file surfaces as an
// fs.ErrNotExist wrapped error, not ErrCorrupt.
func LoadFile(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}
