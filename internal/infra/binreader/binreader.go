// Package binreader provides the little-endian byte-cursor primitives
// every binary loader (C5/C6) is built on: length-prefixed chunk
// extraction, fixed-width integer reads, UTF-16LE decoding and
// FILETIME conversion. The u32/u64 cursor is a thin wrapper over
// gotd/td's bin.Buffer, the same little-endian MTProto wire-format
// cursor this codebase already depends on; u16 and UTF-16 have no
// native support there and are implemented directly against
// encoding/binary and unicode/utf16.
package binreader

import (
	"encoding/binary"
	"unicode/utf16"

	"github.com/gotd/td/bin"

	"historyloader/internal/errs"
)

// FiletimeEpochOffsetTicks is the number of 100-ns ticks between the
// Windows FILETIME epoch (1601-01-01) and the Unix epoch (1970-01-01).
const FiletimeEpochOffsetTicks = 116444736000000000

// NextSizedChunk reads a u32 length prefix from bs, then returns the
// following that-many bytes as chunk and whatever follows as rest.
// Fails with Truncated if bs is shorter than 4+length bytes.
func NextSizedChunk(bs []byte) (chunk, rest []byte, err error) {
	n, tail, err := NextU32Size(bs)
	if err != nil {
		return nil, nil, err
	}
	if len(tail) < n {
		return nil, nil, errs.New(errs.Truncated, "sized chunk: need %d bytes, have %d", n, len(tail))
	}
	return tail[:n], tail[n:], nil
}

// NextU32 reads a little-endian u32 from the front of bs.
func NextU32(bs []byte) (uint32, []byte, error) {
	if len(bs) < 4 {
		return 0, nil, errs.New(errs.Truncated, "u32: need 4 bytes, have %d", len(bs))
	}
	buf := bin.Buffer{Buf: bs[:4]}
	v, err := buf.Uint32()
	if err != nil {
		return 0, nil, errs.Wrap(errs.Truncated, err, "u32")
	}
	return v, bs[4:], nil
}

// NextU32Size is NextU32 with the value widened to int, for use as a
// length/count.
func NextU32Size(bs []byte) (int, []byte, error) {
	v, rest, err := NextU32(bs)
	if err != nil {
		return 0, nil, err
	}
	return int(v), rest, nil
}

// NextU64 reads a little-endian u64 from the front of bs.
func NextU64(bs []byte) (uint64, []byte, error) {
	if len(bs) < 8 {
		return 0, nil, errs.New(errs.Truncated, "u64: need 8 bytes, have %d", len(bs))
	}
	buf := bin.Buffer{Buf: bs[:8]}
	v, err := buf.Uint64()
	if err != nil {
		return 0, nil, errs.Wrap(errs.Truncated, err, "u64")
	}
	return v, bs[8:], nil
}

// NextU16 reads a little-endian u16 from the front of bs. bin.Buffer has
// no u16 primitive (MTProto has no wire use for one), so this one is
// plain encoding/binary.
func NextU16(bs []byte) (uint16, []byte, error) {
	if len(bs) < 2 {
		return 0, nil, errs.New(errs.Truncated, "u16: need 2 bytes, have %d", len(bs))
	}
	return binary.LittleEndian.Uint16(bs[:2]), bs[2:], nil
}

// UTF16LEToString decodes an even-length little-endian UTF-16 byte slice.
// Surrogates are validated explicitly rather than trusting utf16.Decode's
// silent substitution, since an unpaired surrogate must fail with
// Encoding rather than turn into U+FFFD.
func UTF16LEToString(bs []byte) (string, error) {
	if len(bs)%2 != 0 {
		return "", errs.New(errs.Encoding, "utf16le: odd byte length %d", len(bs))
	}
	units := make([]uint16, len(bs)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(bs[2*i : 2*i+2])
	}
	for i := 0; i < len(units); i++ {
		u := units[i]
		switch {
		case u >= 0xD800 && u <= 0xDBFF: // high surrogate, must be followed by a low one
			if i+1 >= len(units) || units[i+1] < 0xDC00 || units[i+1] > 0xDFFF {
				return "", errs.New(errs.Encoding, "utf16le: unpaired high surrogate at unit %d", i)
			}
			i++
		case u >= 0xDC00 && u <= 0xDFFF: // lone low surrogate
			return "", errs.New(errs.Encoding, "utf16le: unpaired low surrogate at unit %d", i)
		}
	}
	return string(utf16.Decode(units)), nil
}

// GetNullTerminatedUTF16LESlice returns the byte slice up to (not
// including) the first zero u16 unit, and the remaining bytes after that
// terminator.
func GetNullTerminatedUTF16LESlice(bs []byte) (slice, rest []byte, err error) {
	for i := 0; i+1 < len(bs); i += 2 {
		if bs[i] == 0 && bs[i+1] == 0 {
			return bs[:i], bs[i+2:], nil
		}
	}
	return nil, nil, errs.New(errs.Truncated, "utf16le: no null terminator found")
}

// FiletimeToUnix converts a Windows FILETIME (100-ns ticks since
// 1601-01-01) to unix seconds.
func FiletimeToUnix(ft uint64) int64 {
	return int64((ft - FiletimeEpochOffsetTicks) / 10_000_000)
}
