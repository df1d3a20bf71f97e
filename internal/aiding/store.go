// Package aiding implements the AssistNow Offline (ALP) almanac file
// store, its ALPSRV read/write-at-offset protocol, and the time-degrading
// location hint used to seed a cold start. The store's offset/length
// access pattern is ported from the teacher's backend/mem.go Memory
// backend: there, ReadAt/WriteAt serve disk-shaped I/O out of a sharded
// byte slice guarded by per-shard locks; here they serve the same shape
// of request out of a single *os.File guarded by one mutex, standing in
// for the GPS driver's original g_aid_mutex cross-thread guard.
package aiding

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"sync"

	"github.com/ublox-gps/ubgps/internal/logging"
)

// alpMagic is the 4-byte header every valid ALP file starts with,
// followed by a little-endian uint32 declared payload length.
var alpMagic = []byte{'A', 'L', 'P', 0x00}

const alpHeaderLen = 8

// ErrInvalidFile is returned by Validate/Reload when the file is missing
// the ALP magic header or its declared length disagrees with the file's
// actual size.
var ErrInvalidFile = errors.New("aiding: invalid or corrupt ALP file")

// ErrStaleFileID is returned by HandleAlpsrv when a request carries a
// file id older than the store's current one — the receiver is still
// talking about an almanac that Reload has since replaced.
var ErrStaleFileID = errors.New("aiding: stale ALPSRV file id")

// Store owns one ALP almanac file and serves the receiver's ALPSRV
// offset-addressed reads and writes against it.
type Store struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	size   int64
	fileID uint16
	logger *logging.Logger
}

// NewStore returns a Store for the ALP file at path. The file is not
// opened until Validate or Reload succeeds.
func NewStore(path string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{path: path, logger: logger}
}

// FileID returns the store's current almanac file id, as sent in AID-INI
// and compared against every ALPSRV request.
func (s *Store) FileID() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fileID
}

// Validate inspects the ALP file's header without changing the store's
// active file id. It is intended as a cheap pre-flight check before
// Reload commits to a new file. On any validation failure the file is
// deleted, matching the source behavior of never aiding from a file that
// failed its own header check.
func (s *Store) Validate() error {
	f, err := os.Open(s.path)
	if err != nil {
		return err
	}
	defer f.Close()

	header := make([]byte, alpHeaderLen)
	if _, err := f.Read(header); err != nil {
		os.Remove(s.path)
		return ErrInvalidFile
	}
	if !bytes.Equal(header[:4], alpMagic) {
		os.Remove(s.path)
		return ErrInvalidFile
	}
	declaredLen := binary.LittleEndian.Uint32(header[4:8])

	info, err := os.Stat(s.path)
	if err != nil {
		return err
	}
	if int64(declaredLen)+alpHeaderLen != info.Size() {
		os.Remove(s.path)
		return ErrInvalidFile
	}
	return nil
}

// Reload validates and (re)opens the ALP file, replacing whatever file
// was previously active. On success it allocates a new 16-bit file id by
// incrementing the old one (wrapping past zero, which is reserved the
// same way timer.NoTimer is: it never denotes a live id), which
// invalidates any ALPSRV exchange still referencing the previous id.
func (s *Store) Reload() error {
	if err := s.Validate(); err != nil {
		return err
	}

	f, err := os.OpenFile(s.path, os.O_RDWR, 0o644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil {
		s.file.Close()
	}
	s.file = f
	s.size = info.Size()
	s.fileID++
	if s.fileID == 0 {
		s.fileID = 1
	}
	s.logger.Info("ALP file reloaded", "path", s.path, "size", s.size, "fileID", s.fileID)
	return nil
}

// Close releases the underlying file handle, if any.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// AlpsrvOp distinguishes the two ALPSRV exchange shapes: the receiver
// asking the host for a chunk of almanac data, and the receiver handing
// the host a chunk to persist back (used for the receiver's own update
// bookkeeping fields within the file).
type AlpsrvOp byte

const (
	AlpsrvRead  AlpsrvOp = 0
	AlpsrvWrite AlpsrvOp = 1
)

// AlpsrvRequest is one ALPSRV exchange as framed in an AID-ALPSRV message.
type AlpsrvRequest struct {
	Op       AlpsrvOp
	FileID   uint16
	Offset   uint32
	DataSize uint16 // requested length for Op==AlpsrvRead
	Payload  []byte // data to persist for Op==AlpsrvWrite
}

// AlpsrvResponse is the host's answer to one AlpsrvRequest.
type AlpsrvResponse struct {
	FileID  uint16
	Payload []byte
	Reject  bool
}

// HandleAlpsrv serves one ALPSRV exchange. A request whose FileID does
// not match the store's current id is rejected rather than served from
// (now-replaced) data — the same "reject on id mismatch" discipline the
// teacher's queue runner uses to guard against a stale tag being
// double-submitted against state that has already moved on.
func (s *Store) HandleAlpsrv(req AlpsrvRequest) (AlpsrvResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.FileID != s.fileID {
		return AlpsrvResponse{FileID: s.fileID, Reject: true}, ErrStaleFileID
	}
	if s.file == nil {
		return AlpsrvResponse{FileID: s.fileID, Reject: true}, ErrInvalidFile
	}

	switch req.Op {
	case AlpsrvRead:
		buf := make([]byte, req.DataSize)
		n, err := s.file.ReadAt(buf, int64(req.Offset))
		if err != nil && n == 0 {
			return AlpsrvResponse{FileID: s.fileID, Reject: true}, err
		}
		return AlpsrvResponse{FileID: s.fileID, Payload: buf[:n]}, nil
	case AlpsrvWrite:
		if _, err := s.file.WriteAt(req.Payload, int64(req.Offset)); err != nil {
			return AlpsrvResponse{FileID: s.fileID, Reject: true}, err
		}
		return AlpsrvResponse{FileID: s.fileID}, nil
	default:
		return AlpsrvResponse{FileID: s.fileID, Reject: true}, errors.New("aiding: unknown ALPSRV op")
	}
}
