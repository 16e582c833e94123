package vectorstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	_ "modernc.org/sqlite" // SQLite driver

	"contractrag/internal/domain"
	"contractrag/internal/embedding/hashing"
)

// FileName is the index database file inside a workspace directory.
const FileName = "index.db"

const schemaVersion = "1"

const schema = `
CREATE TABLE IF NOT EXISTS meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS chunks (
	position INTEGER PRIMARY KEY,
	id TEXT NOT NULL,
	document TEXT NOT NULL,
	page INTEGER NOT NULL,
	content TEXT NOT NULL,
	vector BLOB NOT NULL
);
`

// Save writes the snapshot to dir/index.db. The file is written beside the
// target and renamed into place so readers never see a partial index.
func (x *Index) Save(ctx context.Context, dir string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}
	path := filepath.Join(dir, FileName)
	tmp := path + ".tmp"
	_ = os.Remove(tmp)

	db, err := sql.Open("sqlite", tmp+"?mode=rwc")
	if err != nil {
		return fmt.Errorf("opening index database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := x.write(ctx, db); err != nil {
		_ = db.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := db.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("closing index database: %w", err)
	}
	return os.Rename(tmp, path)
}

func (x *Index) write(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating tables: %w", err)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	meta := map[string]string{
		"version":   schemaVersion,
		"embedder":  x.EmbedderName(),
		"dimension": strconv.Itoa(x.dim),
		"count":     strconv.Itoa(len(x.chunks)),
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("writing meta %s: %w", k, err)
		}
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (position, id, document, page, content, vector) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, c := range x.chunks {
		var vec []float32
		if i < len(x.vectors) {
			vec = x.vectors[i]
		}
		if _, err := stmt.ExecContext(ctx, i, c.ID, c.DocumentName, c.Page, c.Content, encodeVector(vec)); err != nil {
			return fmt.Errorf("writing chunk %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// Load reads dir/index.db. Every failure, including a missing file or an
// index built by a different embedder, wraps domain.ErrIndexLoad.
func Load(ctx context.Context, dir string, embedder domain.Embedder) (*Index, error) {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexLoad, err)
	}
	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexLoad, err)
	}
	defer db.Close()

	idx, err := read(ctx, db, embedder)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrIndexLoad, path, err)
	}
	return idx, nil
}

func read(ctx context.Context, db *sql.DB, embedder domain.Embedder) (*Index, error) {
	meta := map[string]string{}
	rows, err := db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			rows.Close()
			return nil, err
		}
		meta[k] = v
	}
	rows.Close()
	if meta["version"] != schemaVersion {
		return nil, fmt.Errorf("unsupported index version %q", meta["version"])
	}
	dim, err := strconv.Atoi(meta["dimension"])
	if err != nil {
		return nil, fmt.Errorf("bad dimension: %w", err)
	}

	idx := &Index{dim: dim, embedder: embedder}
	switch name := meta["embedder"]; {
	case name == "hashing":
		idx.embedder = hashing.New(dim)
	case name != embedder.Name():
		return nil, fmt.Errorf("index built with %q, configured embedder is %q", name, embedder.Name())
	}

	rows, err = db.QueryContext(ctx, `SELECT id, document, page, content, vector FROM chunks ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var c domain.Chunk
		var blob []byte
		if err := rows.Scan(&c.ID, &c.DocumentName, &c.Page, &c.Content, &blob); err != nil {
			return nil, err
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", c.ID, err)
		}
		if len(vec) != dim {
			return nil, fmt.Errorf("chunk %s: vector has %d dims, want %d", c.ID, len(vec), dim)
		}
		idx.chunks = append(idx.chunks, c)
		idx.vectors = append(idx.vectors, vec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if want, _ := strconv.Atoi(meta["count"]); want != len(idx.chunks) {
		return nil, fmt.Errorf("index holds %d chunks, meta says %d", len(idx.chunks), want)
	}

	if f, ok := idx.embedder.(corpusFitted); ok {
		idx.embedder = f.Fork()
		if len(idx.chunks) > 0 {
			texts := make([]string, len(idx.chunks))
			for i, c := range idx.chunks {
				texts[i] = c.Content
			}
			if _, err := idx.embedder.EmbedDocuments(ctx, texts); err != nil {
				return nil, fmt.Errorf("refitting %s: %w", idx.embedder.Name(), err)
			}
		}
	}
	return idx, nil
}

// encodeVector writes a little-endian uint32 length followed by float32 values.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4+len(vec)*4)
	binary.LittleEndian.PutUint32(buf[:4], uint32(len(vec)))
	off := 4
	for _, v := range vec {
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
		off += 4
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data) < 4 {
		return nil, errors.New("vector blob too small")
	}
	length := int(binary.LittleEndian.Uint32(data[:4]))
	data = data[4:]
	if len(data) != length*4 {
		return nil, errors.New("vector length mismatch")
	}
	vec := make([]float32, length)
	for i := 0; i < length; i++ {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4 : (i+1)*4]))
	}
	return vec, nil
}
