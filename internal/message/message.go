package message

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/cs3238-tsuzu/movesync-online/internal/movement"
)

const (
	// BatchSize is the number of movement codes sent per write.
	BatchSize = 8
	// RecordSize is the encoded size of one remote position: big-endian
	// float32 x followed by big-endian float32 y.
	RecordSize = 8
)

var ErrInvalidCode = errors.New("invalid movement code")

// ValidateBatch reports the first byte that is not a movement code.
func ValidateBatch(codes []byte) error {
	for i, c := range codes {
		if _, ok := movement.Decode(c); !ok {
			return fmt.Errorf("byte %d (0x%02x): %w", i, c, ErrInvalidCode)
		}
	}

	return nil
}

func AppendRecord(dst []byte, p movement.Position) []byte {
	dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(p.X))
	dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(p.Y))

	return dst
}

func EncodeRecords(ps []movement.Position) []byte {
	buf := make([]byte, 0, len(ps)*RecordSize)
	for i := range ps {
		buf = AppendRecord(buf, ps[i])
	}

	return buf
}

// DecodeRecords decodes every whole record in buf and returns how many bytes
// it consumed. A trailing partial record is left for the caller to keep.
func DecodeRecords(buf []byte) (ps []movement.Position, consumed int) {
	n := len(buf) / RecordSize
	if n == 0 {
		return nil, 0
	}

	ps = make([]movement.Position, n)
	for i := range ps {
		rec := buf[i*RecordSize:]
		ps[i] = movement.Position{
			X: math.Float32frombits(binary.BigEndian.Uint32(rec[0:4])),
			Y: math.Float32frombits(binary.BigEndian.Uint32(rec[4:8])),
		}
	}

	return ps, n * RecordSize
}
