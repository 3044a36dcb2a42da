package region

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ViaSnake/mcaselector/internal/model"
	"github.com/ViaSnake/mcaselector/internal/nbt"
	"github.com/ViaSnake/mcaselector/internal/util"
)

// writeBlockSize is the unit handed to the throttle while writing
const writeBlockSize = 64 << 10

// EncodeOptions controls how a container is serialized
type EncodeOptions struct {
	// Compression forces every chunk to this type. Zero keeps each chunk's own.
	Compression model.CompressionType
	// Now stamps edited chunks
	Now time.Time
}

// Image is a serialized container ready to be saved
type Image struct {
	Data []byte
	// External maps .mcc file names to the payloads too large for the region file
	External map[string][]byte
	// Stale lists .mcc files whose chunk now fits inline
	Stale []string
}

// Size returns the total number of bytes Save will write
func (img *Image) Size() int {
	n := len(img.Data)
	for _, b := range img.External {
		n += len(b)
	}
	return n
}

// Encode serializes a container. Clean chunks reuse their stored payload
// unless their compression changes.
func Encode(c *model.Container, opts EncodeOptions) (*Image, error) {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	img := &Image{Data: make([]byte, HeaderSize), External: make(map[string][]byte)}
	next := HeaderSize / SectorSize

	for i, ch := range c.Chunks {
		if ch == nil {
			continue
		}

		ct := ch.Compression
		if opts.Compression != 0 {
			ct = opts.Compression
		}
		if ct == 0 {
			ct = model.CompressionZlib
		}

		payload := ch.Payload
		if ch.Dirty() || ct != ch.Compression || payload == nil {
			raw, err := nbt.Encode(ch.RootName, ch.Data)
			if err != nil {
				return nil, fmt.Errorf("chunk %d,%d: %w", ch.Coord.X, ch.Coord.Z, err)
			}
			if payload, err = Compress(ct, raw); err != nil {
				return nil, fmt.Errorf("chunk %d,%d: %w", ch.Coord.X, ch.Coord.Z, err)
			}
		}

		timestamp := ch.Timestamp
		if ch.Dirty() {
			timestamp = uint32(opts.Now.Unix())
		}

		extName := ExternalName(c.RegionX*model.ChunksPerAxis+ch.Coord.X, c.RegionZ*model.ChunksPerAxis+ch.Coord.Z)
		sectors := sectorCount(len(payload) + 5)
		if sectors > MaxInlineSectors {
			if _, _, ok := ParseName(c.Path); !ok {
				return nil, fmt.Errorf("chunk %d,%d: too large for %q, whose name carries no region coordinates",
					ch.Coord.X, ch.Coord.Z, filepath.Base(c.Path))
			}
			img.External[extName] = payload
			img.Data = appendPayload(img.Data, ct|model.CompressionExternal, nil)
			sectors = 1
		} else {
			if ch.External {
				img.Stale = append(img.Stale, extName)
			}
			img.Data = appendPayload(img.Data, ct, payload)
		}

		binary.BigEndian.PutUint32(img.Data[i*4:], uint32(next)<<8|uint32(sectors))
		binary.BigEndian.PutUint32(img.Data[SectorSize+i*4:], timestamp)
		next += sectors
	}
	return img, nil
}

func sectorCount(n int) int {
	return (n + SectorSize - 1) / SectorSize
}

// appendPayload writes one sector-aligned chunk entry
func appendPayload(b []byte, ct model.CompressionType, payload []byte) []byte {
	b = binary.BigEndian.AppendUint32(b, uint32(len(payload)+1))
	b = append(b, byte(ct))
	b = append(b, payload...)
	if pad := len(b) % SectorSize; pad != 0 {
		b = append(b, make([]byte, SectorSize-pad)...)
	}
	return b
}

// SaveOptions controls how an image reaches the disk
type SaveOptions struct {
	// Throttle is called before each block written with the block's size
	Throttle func(n int) error
}

// Save writes an image next to path. Every file is staged and verified
// first. External payloads are committed before the region file, and a
// failed commit restores the .mcc files it already replaced, so a failed
// save leaves the previous container on disk.
func Save(path string, img *Image, opts SaveOptions) (err error) {
	dir := filepath.Dir(path)

	names := make([]string, 0, len(img.External))
	for name := range img.External {
		names = append(names, name)
	}
	sort.Strings(names)

	var staged []*pendingFile
	defer func() {
		if err != nil {
			for _, f := range staged {
				f.discard()
			}
		}
	}()

	for _, name := range names {
		f, stageErr := stageFile(filepath.Join(dir, name), img.External[name], opts)
		if stageErr != nil {
			return stageErr
		}
		staged = append(staged, f)
	}
	regionFile, err := stageFile(path, img.Data, opts)
	if err != nil {
		return err
	}
	staged = append(staged, regionFile)

	externals := staged[:len(staged)-1]
	for i, f := range externals {
		if err = f.commit(true); err != nil {
			return errors.Join(err, rollback(externals[:i]))
		}
	}
	if err = regionFile.commit(false); err != nil {
		return errors.Join(err, rollback(externals))
	}
	for _, f := range externals {
		f.dropBackup()
	}
	if err = syncDir(dir); err != nil {
		return err
	}

	for _, name := range img.Stale {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove stale external chunk: %w", err)
		}
	}
	return nil
}

// WriteAtomic replaces path with data. The bytes go to a temp file in the
// same directory, are synced and re-read against their checksum, and only
// then renamed over path.
func WriteAtomic(path string, data []byte, opts SaveOptions) error {
	f, err := stageFile(path, data, opts)
	if err != nil {
		return err
	}
	if err := f.commit(false); err != nil {
		f.discard()
		return err
	}
	return syncDir(filepath.Dir(path))
}

// pendingFile is a verified temp file waiting to be renamed over its target
type pendingFile struct {
	tmp       string
	target    string
	backup    string
	committed bool
	existed   bool
}

// stageFile writes data to a synced and verified temp file next to path
func stageFile(path string, data []byte, opts SaveOptions) (_ *pendingFile, err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	perm := os.FileMode(0o644)
	if info, statErr := os.Stat(path); statErr == nil {
		perm = info.Mode().Perm()
	}
	if err = tmp.Chmod(perm); err != nil {
		return nil, fmt.Errorf("failed to set file mode: %w", err)
	}

	for off := 0; off < len(data); off += writeBlockSize {
		block := data[off:min(off+writeBlockSize, len(data))]
		if opts.Throttle != nil {
			if err = opts.Throttle(len(block)); err != nil {
				return nil, err
			}
		}
		if _, err = tmp.Write(block); err != nil {
			return nil, fmt.Errorf("failed to write temp file: %w", err)
		}
	}
	if err = tmp.Sync(); err != nil {
		return nil, fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to close temp file: %w", err)
	}
	if err = verifyFile(tmpPath, data); err != nil {
		return nil, err
	}
	return &pendingFile{tmp: tmpPath, target: path}, nil
}

// commit renames the temp file over its target. With keep set, an existing
// target is first hard-linked aside so rollback can restore it.
func (f *pendingFile) commit(keep bool) error {
	if keep {
		if _, err := os.Lstat(f.target); err == nil {
			f.existed = true
			f.backup = f.tmp + ".old"
			if err := os.Link(f.target, f.backup); err != nil {
				if err := copyFile(f.target, f.backup); err != nil {
					f.backup = ""
					return fmt.Errorf("failed to keep previous file: %w", err)
				}
			}
		}
	}
	if err := os.Rename(f.tmp, f.target); err != nil {
		f.dropBackup()
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	f.committed = true
	return nil
}

// restore undoes a commit
func (f *pendingFile) restore() error {
	if !f.committed {
		return nil
	}
	if f.existed {
		if err := os.Rename(f.backup, f.target); err != nil {
			return fmt.Errorf("failed to restore %s: %w", filepath.Base(f.target), err)
		}
		f.backup = ""
	} else if err := os.Remove(f.target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", filepath.Base(f.target), err)
	}
	f.committed = false
	return nil
}

func (f *pendingFile) dropBackup() {
	if f.backup != "" {
		os.Remove(f.backup)
		f.backup = ""
	}
}

// discard removes an uncommitted temp file. A committed file that could
// not be restored keeps its backup on disk.
func (f *pendingFile) discard() {
	if f.committed {
		return
	}
	os.Remove(f.tmp)
	f.dropBackup()
}

// copyFile is the fallback for filesystems without hard links
func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dst, data, info.Mode().Perm()); err != nil {
		os.Remove(dst)
		return err
	}
	return nil
}

// rollback restores committed files in reverse order
func rollback(files []*pendingFile) error {
	var errs []error
	for i := len(files) - 1; i >= 0; i-- {
		if err := files[i].restore(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func verifyFile(path string, want []byte) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to reopen temp file: %w", err)
	}
	defer f.Close()

	sum, n, err := util.ChecksumReader(f)
	if err != nil {
		return fmt.Errorf("failed to read back temp file: %w", err)
	}
	if n != int64(len(want)) || sum != util.ComputeChecksum(want) {
		return fmt.Errorf("checksum mismatch after write: got %d bytes", n)
	}
	return nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("failed to open directory: %w", err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("failed to sync directory: %w", err)
	}
	return nil
}
