package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"meetindex/internal/store"
	"meetindex/internal/vecindex"
)

// Artifact filenames inside the index directory.
const (
	vectorsFile  = "vectors.midx"
	metadataFile = "meta.db"
	manifestFile = "manifest.json"
)

// Manifest ties the two persisted artifacts together. It is written last
// during persist, so a manifest that parses and matches both files is proof
// the pair belongs together; anything else reads as corrupt rather than as
// a silent count mismatch.
type Manifest struct {
	BuildID      string    `json:"build_id"`
	CreatedAt    time.Time `json:"created_at"`
	Model        string    `json:"model"`
	Count        int       `json:"count"`
	Dimension    int       `json:"dimension"`
	ChunkSize    int       `json:"chunk_size"`
	ChunkOverlap int       `json:"chunk_overlap"`
	VectorsSum   string    `json:"vectors_checksum"`
	MetadataSum  string    `json:"metadata_checksum"`
}

// Loaded is a validated, ready-to-search index/metadata pair.
type Loaded struct {
	Index    *vecindex.Index
	Store    *store.SQLiteStore
	Manifest Manifest
}

// Close releases the metadata store.
func (l *Loaded) Close() error {
	if l.Store != nil {
		return l.Store.Close()
	}
	return nil
}

// Persist writes the vector blob and the metadata database to temporary
// names, then renames them into place and writes the manifest last. The
// pair becomes visible to Load only once the manifest lands; a crash at
// any earlier point leaves the previous generation (or a detectable
// mismatch), never a half-updated pair that loads cleanly.
func Persist(built *Built, model string, cfg Config, dir string) error {
	cfg.applyDefaults()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	vecPath := filepath.Join(dir, vectorsFile)
	metaPath := filepath.Join(dir, metadataFile)
	buildID := uuid.NewString()

	// Vectors blob.
	vecTmp := vecPath + ".tmp"
	if err := built.Index.SaveFile(vecTmp); err != nil {
		return fmt.Errorf("write vectors: %w", err)
	}
	vecSum, err := fileChecksum(vecTmp)
	if err != nil {
		return err
	}

	// Metadata database.
	metaTmp := metaPath + ".tmp"
	os.Remove(metaTmp)
	st, err := store.Open(metaTmp)
	if err != nil {
		return fmt.Errorf("create metadata db: %w", err)
	}
	if err := st.InsertRecords(built.Records); err != nil {
		st.Close()
		return fmt.Errorf("write metadata: %w", err)
	}
	if err := st.SetMeta("embedding_model", model); err != nil {
		st.Close()
		return fmt.Errorf("write metadata: %w", err)
	}
	if err := st.SetMeta("dimension", strconv.Itoa(built.Stats.Dimension)); err != nil {
		st.Close()
		return fmt.Errorf("write metadata: %w", err)
	}
	if err := st.SetMeta("build_id", buildID); err != nil {
		st.Close()
		return fmt.Errorf("write metadata: %w", err)
	}
	if err := st.Close(); err != nil {
		return fmt.Errorf("close metadata db: %w", err)
	}
	metaSum, err := fileChecksum(metaTmp)
	if err != nil {
		return err
	}

	if err := os.Rename(vecTmp, vecPath); err != nil {
		return err
	}
	if err := os.Rename(metaTmp, metaPath); err != nil {
		return err
	}

	manifest := Manifest{
		BuildID:      buildID,
		CreatedAt:    time.Now().UTC(),
		Model:        model,
		Count:        built.Index.Count(),
		Dimension:    built.Index.Dimension(),
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		VectorsSum:   vecSum,
		MetadataSum:  metaSum,
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}
	maniPath := filepath.Join(dir, manifestFile)
	maniTmp := maniPath + ".tmp"
	if err := os.WriteFile(maniTmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(maniTmp, maniPath)
}

// Load reads and validates the persisted pair from dir.
//
// A missing manifest or artifact is ErrNotFound. A manifest that does not
// parse, a checksum disagreement, or a count/dimension disagreement between
// the artifacts is ErrCorrupt. The returned Loaded owns an open metadata
// store handle; the caller closes it.
func Load(dir string) (*Loaded, error) {
	maniPath := filepath.Join(dir, manifestFile)
	data, err := os.ReadFile(maniPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, maniPath)
	}
	if err != nil {
		return nil, err
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("%w: manifest does not parse: %v", ErrCorrupt, err)
	}

	vecPath := filepath.Join(dir, vectorsFile)
	metaPath := filepath.Join(dir, metadataFile)
	for _, p := range []string{vecPath, metaPath} {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
		} else if err != nil {
			return nil, err
		}
	}

	vecSum, err := fileChecksum(vecPath)
	if err != nil {
		return nil, err
	}
	if vecSum != manifest.VectorsSum {
		return nil, fmt.Errorf("%w: vectors checksum mismatch", ErrCorrupt)
	}
	metaSum, err := fileChecksum(metaPath)
	if err != nil {
		return nil, err
	}
	if metaSum != manifest.MetadataSum {
		return nil, fmt.Errorf("%w: metadata checksum mismatch", ErrCorrupt)
	}

	ix, err := vecindex.LoadFile(vecPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, vecPath)
		}
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if ix.Count() != manifest.Count {
		return nil, fmt.Errorf("%w: vectors hold %d rows, manifest says %d", ErrCorrupt, ix.Count(), manifest.Count)
	}
	if ix.Count() > 0 && ix.Dimension() != manifest.Dimension {
		return nil, fmt.Errorf("%w: vectors have dim %d, manifest says %d", ErrCorrupt, ix.Dimension(), manifest.Dimension)
	}

	st, err := store.Open(metaPath)
	if err != nil {
		return nil, err
	}
	n, err := st.Count()
	if err != nil {
		st.Close()
		return nil, err
	}
	if n != ix.Count() {
		st.Close()
		return nil, fmt.Errorf("%w: %d vectors vs %d metadata records", ErrCorrupt, ix.Count(), n)
	}

	return &Loaded{Index: ix, Store: st, Manifest: manifest}, nil
}

func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := fnv.New64a()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return strconv.FormatUint(h.Sum64(), 16), nil
}
