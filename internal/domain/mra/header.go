package mra

import (
	"historyloader/internal/errs"
	"historyloader/internal/infra/binreader"
)

// decodeHeader reads a DbMessageHeader from the front of bs. bs must be
// at least DbMessageHeaderSize bytes. Magic and padding fields are
// validated here; callers never see a header with them wrong.
func decodeHeader(bs []byte) (DbMessageHeader, []byte, error) {
	if len(bs) < DbMessageHeaderSize {
		return DbMessageHeader{}, nil, errs.New(errs.Truncated, "message header: need %d bytes, have %d", DbMessageHeaderSize, len(bs))
	}

	h := DbMessageHeader{}
	h.MagicValueOne = bs[0]
	if h.MagicValueOne != 0x01 {
		return DbMessageHeader{}, nil, errs.New(errs.BadMagic, "message header: magic_value_one = 0x%02x, want 0x01", h.MagicValueOne)
	}
	h.Type = MraMessageType(bs[1])
	h.Flags = bs[2]
	if bs[3] != 0 || bs[4] != 0 {
		return DbMessageHeader{}, nil, errs.New(errs.BadMagic, "message header: padding1 non-zero")
	}

	fullLen, rest, err := binreader.NextU32(bs[5:9])
	if err != nil {
		return DbMessageHeader{}, nil, err
	}
	h.FullLength = fullLen
	_ = rest

	nextAddr, _, err := binreader.NextU32(bs[9:13])
	if err != nil {
		return DbMessageHeader{}, nil, err
	}
	h.NextMessageAddr = nextAddr

	ft, _, err := binreader.NextU64(bs[13:21])
	if err != nil {
		return DbMessageHeader{}, nil, err
	}
	h.Filetime = ft

	unk, _, err := binreader.NextU32(bs[21:25])
	if err != nil {
		return DbMessageHeader{}, nil, err
	}
	h.Unknown = unk

	ts, _, err := binreader.NextU32(bs[25:29])
	if err != nil {
		return DbMessageHeader{}, nil, err
	}
	h.SomeTimestampOrZero = int32(ts)

	for _, b := range bs[29:45] {
		if b != 0 {
			return DbMessageHeader{}, nil, errs.New(errs.BadMagic, "message header: padding2 non-zero")
		}
	}

	return h, bs[DbMessageHeaderSize:], nil
}
