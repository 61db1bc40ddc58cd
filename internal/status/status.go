package status

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Magic identifies an omgd status file: the ASCII bytes "OMGS" read as a
// big-endian-looking constant but stored little-endian on disk per §3.
const Magic uint32 = 0x4F4D4753

// SchemaVersion is the current on-disk schema version.
const SchemaVersion uint32 = 1

// Size is the fixed on-disk record size in bytes.
const Size = 32

// ErrBadMagic is returned by Read when the file's magic number does not
// match Magic.
var ErrBadMagic = errors.New("status: bad magic number")

// ErrUnsupportedSchema is returned by Read when the file's schema version
// is not recognized by this build.
var ErrUnsupportedSchema = errors.New("status: unsupported schema version")

// ErrTruncated is returned by Read when the file is not exactly Size bytes.
var ErrTruncated = errors.New("status: truncated status file")

// Snapshot is the on-disk status record.
type Snapshot struct {
	TotalPackages    uint32
	ExplicitPackages uint32
	OrphanPackages   uint32
	UpdatesAvailable uint32
}

// Encode renders snap as the fixed 32-byte on-disk layout.
func Encode(snap Snapshot) [Size]byte {
	var buf [Size]byte
	binary.LittleEndian.PutUint32(buf[0:4], Magic)
	binary.LittleEndian.PutUint32(buf[4:8], SchemaVersion)
	binary.LittleEndian.PutUint32(buf[8:12], snap.TotalPackages)
	binary.LittleEndian.PutUint32(buf[12:16], snap.ExplicitPackages)
	binary.LittleEndian.PutUint32(buf[16:20], snap.OrphanPackages)
	binary.LittleEndian.PutUint32(buf[20:24], snap.UpdatesAvailable)
	// bytes 24:32 are reserved and left zeroed.
	return buf
}

// Decode parses a 32-byte on-disk record, validating magic and schema.
func Decode(buf [Size]byte) (Snapshot, error) {
	magic := binary.LittleEndian.Uint32(buf[0:4])
	if magic != Magic {
		return Snapshot{}, fmt.Errorf("%w: got 0x%08X", ErrBadMagic, magic)
	}
	schema := binary.LittleEndian.Uint32(buf[4:8])
	if schema != SchemaVersion {
		return Snapshot{}, fmt.Errorf("%w: got %d, want %d", ErrUnsupportedSchema, schema, SchemaVersion)
	}
	return Snapshot{
		TotalPackages:    binary.LittleEndian.Uint32(buf[8:12]),
		ExplicitPackages: binary.LittleEndian.Uint32(buf[12:16]),
		OrphanPackages:   binary.LittleEndian.Uint32(buf[16:20]),
		UpdatesAvailable: binary.LittleEndian.Uint32(buf[20:24]),
	}, nil
}

// Write atomically publishes snap to path: write-to-temp-then-rename within
// the same directory, so concurrent readers never observe a torn file.
func Write(path string, snap Snapshot) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".omgs-tmp-*")
	if err != nil {
		return fmt.Errorf("status: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	buf := Encode(snap)
	if _, err := tmp.Write(buf[:]); err != nil {
		tmp.Close()
		return fmt.Errorf("status: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("status: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("status: close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("status: chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("status: rename into place: %w", err)
	}
	return nil
}

// Read loads and validates the 32-byte status file at path.
func Read(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, err
	}
	if len(data) != Size {
		return Snapshot{}, fmt.Errorf("%w: got %d bytes", ErrTruncated, len(data))
	}
	var buf [Size]byte
	copy(buf[:], data)
	return Decode(buf)
}
