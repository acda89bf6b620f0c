package boltdb

import (
	"encoding/binary"
	"time"

	"emperror.dev/errors"
	"github.com/aviator-co/refdb/internal/refdb"
	"github.com/go-git/go-git/v5/plumbing"
)

// ErrInvalidSize is returned for reflog entries that are too short.
var ErrInvalidSize = errors.Sentinel("invalid size of encoded reflog entry")

// A reflog entry is encoded as
//
//	old oid | new oid | unix nanoseconds (8 bytes) | uvarint len(tx) | tx | message
const entryHeaderSize = 2*oidSize + 8

const oidSize = len(plumbing.ZeroHash)

func encodeEntry(e refdb.ReflogEntry) []byte {
	b := make([]byte, entryHeaderSize, entryHeaderSize+binary.MaxVarintLen64+len(e.TxID)+len(e.Message))
	copy(b, e.Old[:])
	copy(b[oidSize:], e.New[:])
	binary.BigEndian.PutUint64(b[2*oidSize:], uint64(e.Time.UnixNano()))
	b = binary.AppendUvarint(b, uint64(len(e.TxID)))
	b = append(b, e.TxID...)
	return append(b, e.Message...)
}

func decodeEntry(b []byte) (refdb.ReflogEntry, error) {
	var e refdb.ReflogEntry
	if len(b) < entryHeaderSize {
		return e, ErrInvalidSize
	}
	copy(e.Old[:], b)
	copy(e.New[:], b[oidSize:])
	e.Time = time.Unix(0, int64(binary.BigEndian.Uint64(b[2*oidSize:]))).UTC()

	rest := b[entryHeaderSize:]
	n, size := binary.Uvarint(rest)
	if size <= 0 || uint64(len(rest)-size) < n {
		return e, ErrInvalidSize
	}
	rest = rest[size:]
	e.TxID = string(rest[:n])
	e.Message = string(rest[n:])
	return e, nil
}
