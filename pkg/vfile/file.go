package vfile

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"sync"
)

const (
	markerNode   byte = 0x4e // 'N'
	markerHeader byte = 0x48 // 'H'

	currentMagic = "vt1\x00"
	legacyMagic  = "rck\x00"
	magicLen     = 4

	recordHeaderLen = 1 + 4 + 4 // marker + size + crc32
)

// ErrNoHeader is returned by ReadHeader when the file has never had a
// header committed to it.
var ErrNoHeader = fmt.Errorf("vfile: no header present")

// ErrCorruptTerm is returned when a term's CRC32 does not match its data.
var ErrCorruptTerm = fmt.Errorf("vfile: corrupt term")

// File is an append-only term store with a single mutable header slot
// tracked in memory and recoverable by a sequential scan.
type File struct {
	mu           sync.Mutex
	f            *os.File
	bw           *bufio.Writer
	offset       int64
	headerOffset int64 // -1 if no header committed yet
	legacy       bool  // opened file carried the legacy magic prefix
}

// Open opens or creates the term file at path.
func Open(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, err
	}

	vf := &File{f: f, headerOffset: -1}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	if stat.Size() == 0 {
		if _, err := f.WriteString(currentMagic); err != nil {
			f.Close()
			return nil, err
		}
		vf.offset = magicLen
	} else {
		magic := make([]byte, magicLen)
		if _, err := io.ReadFull(f, magic); err != nil {
			f.Close()
			return nil, fmt.Errorf("vfile: reading magic: %w", err)
		}
		switch string(magic) {
		case currentMagic:
		case legacyMagic:
			vf.legacy = true
		default:
			f.Close()
			return nil, fmt.Errorf("vfile: unrecognized file magic %q", magic)
		}
		if err := vf.scan(stat.Size()); err != nil {
			f.Close()
			return nil, err
		}
	}

	vf.bw = bufio.NewWriterSize(f, 64*1024)
	if _, err := f.Seek(vf.offset, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}

	return vf, nil
}

// scan walks every term from the magic prefix to the end of the file,
// validating framing and remembering the last header's offset. It is the
// recovery path exercised on every open of an existing file.
func (vf *File) scan(size int64) error {
	off := int64(magicLen)
	for off < size {
		marker, data, next, err := readTermAt(vf.f, off)
		if err != nil {
			// A torn trailing write is expected after a crash; stop scanning
			// and let the caller operate on the file as truncated here.
			break
		}
		_ = data
		if marker == markerHeader {
			vf.headerOffset = off
		}
		off = next
	}
	vf.offset = off
	return nil
}

// Legacy reports whether the opened file carried the legacy magic prefix.
func (vf *File) Legacy() bool {
	vf.mu.Lock()
	defer vf.mu.Unlock()
	return vf.legacy
}

// Append writes data as a node term and returns its offset. The write is
// fsynced before returning.
func (vf *File) Append(data []byte) (int64, error) {
	vf.mu.Lock()
	defer vf.mu.Unlock()
	return vf.append(markerNode, data)
}

// WriteHeader writes data as the file's header term, replacing the
// previously committed header. The previous header record remains in the
// file (append-only) but is no longer the one ReadHeader resolves to.
func (vf *File) WriteHeader(data []byte) error {
	vf.mu.Lock()
	defer vf.mu.Unlock()

	off, err := vf.append(markerHeader, data)
	if err != nil {
		return err
	}
	vf.headerOffset = off
	if vf.legacy {
		if _, err := vf.f.WriteAt([]byte(currentMagic), 0); err != nil {
			return err
		}
		if err := vf.f.Sync(); err != nil {
			return err
		}
	}
	vf.legacy = false
	return nil
}

func (vf *File) append(marker byte, data []byte) (int64, error) {
	off := vf.offset

	hdr := make([]byte, recordHeaderLen)
	hdr[0] = marker
	binary.LittleEndian.PutUint32(hdr[1:5], uint32(len(data)))
	binary.LittleEndian.PutUint32(hdr[5:9], termCRC(marker, data))

	if _, err := vf.bw.Write(hdr); err != nil {
		return 0, err
	}
	if _, err := vf.bw.Write(data); err != nil {
		return 0, err
	}
	if err := vf.bw.Flush(); err != nil {
		return 0, err
	}
	if err := vf.f.Sync(); err != nil {
		return 0, err
	}

	vf.offset += int64(recordHeaderLen) + int64(len(data))
	return off, nil
}

// ReadAt reads the term at offset.
func (vf *File) ReadAt(offset int64) ([]byte, error) {
	vf.mu.Lock()
	defer vf.mu.Unlock()

	_, data, _, err := readTermAt(vf.f, offset)
	return data, err
}

// ReadHeader returns the most recently committed header, or ErrNoHeader if
// none has ever been written.
func (vf *File) ReadHeader() ([]byte, error) {
	vf.mu.Lock()
	defer vf.mu.Unlock()

	if vf.headerOffset < 0 {
		return nil, ErrNoHeader
	}
	_, data, _, err := readTermAt(vf.f, vf.headerOffset)
	return data, err
}

// Reset discards every term in the file, leaving only the magic prefix.
// This is the signature-mismatch recovery path: once an index
// definition changes the prior header and every node reachable from it
// are useless, so the group starts over from an empty, freshly-reset
// file rather than accumulating a second, unrelated tree alongside the
// orphaned one.
func (vf *File) Reset() error {
	return vf.Truncate(magicLen)
}

// Truncate discards every term from offset onward. Reset uses it for the
// signature-mismatch path; Open does not call it, it only positions the
// next append after the last valid term.
func (vf *File) Truncate(offset int64) error {
	vf.mu.Lock()
	defer vf.mu.Unlock()

	if err := vf.f.Truncate(offset); err != nil {
		return err
	}
	vf.offset = offset
	if vf.headerOffset >= offset {
		vf.headerOffset = -1
	}
	vf.bw = bufio.NewWriterSize(vf.f, 64*1024)
	_, err := vf.f.Seek(vf.offset, io.SeekStart)
	return err
}

// Size returns the current append offset (end of file).
func (vf *File) Size() int64 {
	vf.mu.Lock()
	defer vf.mu.Unlock()
	return vf.offset
}

// Close flushes and closes the underlying file.
func (vf *File) Close() error {
	vf.mu.Lock()
	defer vf.mu.Unlock()
	if err := vf.bw.Flush(); err != nil {
		vf.f.Close()
		return err
	}
	return vf.f.Close()
}

func termCRC(marker byte, data []byte) uint32 {
	crc := crc32.NewIEEE()
	crc.Write([]byte{marker})
	var sz [4]byte
	binary.LittleEndian.PutUint32(sz[:], uint32(len(data)))
	crc.Write(sz[:])
	crc.Write(data)
	return crc.Sum32()
}

// readTermAt reads one framed term at offset via pread, returning its
// marker, data, and the offset immediately following it.
func readTermAt(f *os.File, offset int64) (byte, []byte, int64, error) {
	hdr := make([]byte, recordHeaderLen)
	if _, err := f.ReadAt(hdr, offset); err != nil {
		return 0, nil, 0, err
	}

	marker := hdr[0]
	size := binary.LittleEndian.Uint32(hdr[1:5])
	wantCRC := binary.LittleEndian.Uint32(hdr[5:9])

	data := make([]byte, size)
	if size > 0 {
		if _, err := f.ReadAt(data, offset+recordHeaderLen); err != nil {
			return 0, nil, 0, err
		}
	}

	if termCRC(marker, data) != wantCRC {
		return 0, nil, 0, ErrCorruptTerm
	}

	return marker, data, offset + recordHeaderLen + int64(size), nil
}
