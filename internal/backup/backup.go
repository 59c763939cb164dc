// Package backup writes compressed snapshots of the identity store to local
// disk, S3 or MinIO and restores them.
package backup

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/kozaktomas/face-id/internal/database"
)

// Extension is the file suffix of a snapshot.
const Extension = ".snap.zst"

// ErrNotFound is returned when a named backup does not exist.
var ErrNotFound = errors.New("backup not found")

// Sink stores backup blobs by name.
type Sink interface {
	Put(ctx context.Context, name string, data []byte) error
	Get(ctx context.Context, name string) ([]byte, error)
	// List returns backup names, oldest first.
	List(ctx context.Context) ([]string, error)
}

// Store is the part of database.Store a backup needs.
type Store interface {
	Snapshot() database.Snapshot
	Restore(ctx context.Context, snap database.Snapshot) error
}

// Name returns the backup name for a snapshot taken at t. Names sort by time.
func Name(t time.Time) string {
	return "identities-" + t.UTC().Format("20060102T150405Z") + Extension
}

// Encode serialises a snapshot with gob and compresses it with zstd.
func Encode(snap database.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	if err := gob.NewEncoder(enc).Encode(snap); err != nil {
		enc.Close()
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("compressing snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode reverses Encode.
func Decode(data []byte) (database.Snapshot, error) {
	dec, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return database.Snapshot{}, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	defer dec.Close()

	var snap database.Snapshot
	if err := gob.NewDecoder(dec).Decode(&snap); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return database.Snapshot{}, errors.New("decoding snapshot: truncated backup")
		}
		return database.Snapshot{}, fmt.Errorf("decoding snapshot: %w", err)
	}
	return snap, nil
}

// Create snapshots store and writes it to sink. It returns the backup name
// and the number of identities saved.
func Create(ctx context.Context, store Store, sink Sink, now time.Time) (string, int, error) {
	snap := store.Snapshot()
	data, err := Encode(snap)
	if err != nil {
		return "", 0, err
	}
	name := Name(now)
	if err := sink.Put(ctx, name, data); err != nil {
		return "", 0, fmt.Errorf("writing backup %s: %w", name, err)
	}
	return name, len(snap.Records), nil
}

// Restore loads the named backup into an empty store. An empty name picks
// the latest backup.
func Restore(ctx context.Context, store Store, sink Sink, name string) (string, int, error) {
	if name == "" {
		latest, err := Latest(ctx, sink)
		if err != nil {
			return "", 0, err
		}
		name = latest
	}

	data, err := sink.Get(ctx, name)
	if err != nil {
		return "", 0, fmt.Errorf("reading backup %s: %w", name, err)
	}
	snap, err := Decode(data)
	if err != nil {
		return "", 0, fmt.Errorf("backup %s: %w", name, err)
	}
	if err := store.Restore(ctx, snap); err != nil {
		return "", 0, err
	}
	return name, len(snap.Records), nil
}

// Latest returns the newest backup name in sink.
func Latest(ctx context.Context, sink Sink) (string, error) {
	names, err := sink.List(ctx)
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", ErrNotFound
	}
	return names[len(names)-1], nil
}

// filterNames keeps snapshot names and sorts them.
func filterNames(names []string) []string {
	out := names[:0]
	for _, n := range names {
		if strings.HasSuffix(n, Extension) {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}
