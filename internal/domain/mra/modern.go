package mra

import (
	"sort"

	"historyloader/internal/errs"
	"historyloader/internal/infra/binreader"
)

// DecodeDB decodes every record in a modern per-conversation .db file.
// Every produced Section's byte slice aliases data rather than copying
// it, so data must not be modified while the records are in use.
func DecodeDB(data []byte) ([]Record, error) {
	var records []Record
	offset := uint32(0)
	rest := data
	for len(rest) > 0 {
		rec, tail, consumed, err := decodeOuterRecord(rest, offset)
		if err != nil {
			return nil, errs.Annotatef(err, "record at offset %d", offset)
		}
		records = append(records, rec)
		offset += consumed
		rest = tail
	}
	return records, nil
}

// decodeOuterRecord parses one [u32 L][inner: L][u32 L] frame and the
// wrapped record inside it.
func decodeOuterRecord(bs []byte, offset uint32) (Record, []byte, uint32, error) {
	length, rest, err := binreader.NextU32Size(bs)
	if err != nil {
		return Record{}, nil, 0, err
	}
	if len(rest) < length {
		return Record{}, nil, 0, errs.New(errs.Truncated, "outer record: need %d bytes, have %d", length, len(rest))
	}
	inner := rest[:length]
	afterInner := rest[length:]

	dupLength, afterDup, err := binreader.NextU32Size(afterInner)
	if err != nil {
		return Record{}, nil, 0, err
	}
	if dupLength != length {
		return Record{}, nil, 0, errs.New(errs.BadMagic, "outer record: duplicate length %d != %d", dupLength, length)
	}

	rec, err := decodeWrappedRecord(inner, offset)
	if err != nil {
		return Record{}, nil, 0, err
	}
	consumed := uint32(4 + length + 4)
	return rec, afterDup, consumed, nil
}

// decodeWrappedRecord parses the inner [u32 wrapped_length][wrapped][u32
// wrapped_length] frame and the magic/header/sections inside wrapped.
func decodeWrappedRecord(inner []byte, offset uint32) (Record, error) {
	wrappedLen, rest, err := binreader.NextU32Size(inner)
	if err != nil {
		return Record{}, err
	}
	if len(rest) < wrappedLen {
		return Record{}, errs.New(errs.Truncated, "wrapped record: need %d bytes, have %d", wrappedLen, len(rest))
	}
	wrapped := rest[:wrappedLen]
	afterWrapped := rest[wrappedLen:]

	dupWrappedLen, _, err := binreader.NextU32Size(afterWrapped)
	if err != nil {
		return Record{}, err
	}
	if dupWrappedLen != wrappedLen {
		return Record{}, errs.New(errs.BadMagic, "wrapped record: duplicate length %d != %d", dupWrappedLen, wrappedLen)
	}

	magic, afterMagic, err := binreader.NextU32(wrapped)
	if err != nil {
		return Record{}, err
	}
	if magic != MsgHeaderMagicNumber {
		return Record{}, errs.New(errs.BadMagic, "wrapped record: magic 0x%08x != 0x%08x", magic, MsgHeaderMagicNumber)
	}

	header, afterHeader, err := decodeHeader(afterMagic)
	if err != nil {
		return Record{}, err
	}

	if len(afterHeader) < 1 || afterHeader[0] != 0x01 {
		return Record{}, errs.New(errs.BadMagic, "wrapped record: missing payload marker byte")
	}
	afterMarker := afterHeader[1:]

	payloadLen, afterPayloadLen, err := binreader.NextU32Size(afterMarker)
	if err != nil {
		return Record{}, err
	}
	if len(afterPayloadLen) < payloadLen {
		return Record{}, errs.New(errs.Truncated, "wrapped record: payload need %d bytes, have %d", payloadLen, len(afterPayloadLen))
	}
	payload := afterPayloadLen[:payloadLen]

	// ConferenceUsersChange carries its payload directly, with none of
	// the (section_type, sized_chunk) framing every other message type
	// uses; it is kept as a single Content-tagged section so callers can
	// still reach it uniformly through contentSection.
	if header.Type == TypeConferenceUsersChange {
		return Record{Header: header, Offset: offset, Sections: []Section{{Type: SectionContent, Data: payload}}}, nil
	}

	sections, err := decodeSections(payload)
	if err != nil {
		return Record{}, err
	}

	return Record{Header: header, Offset: offset, Sections: sections}, nil
}

// decodeSections splits a message's inner payload into its (type,
// bytes) sections, sorted ascending by type per the format's on-disk
// ordering contract.
func decodeSections(payload []byte) ([]Section, error) {
	var sections []Section
	rest := payload
	for len(rest) > 0 {
		typ, tail, err := binreader.NextU32(rest)
		if err != nil {
			return nil, err
		}
		chunk, afterChunk, err := binreader.NextSizedChunk(tail)
		if err != nil {
			return nil, err
		}
		sections = append(sections, Section{Type: MessageSectionType(typ), Data: chunk})
		rest = afterChunk
	}
	sort.SliceStable(sections, func(i, j int) bool { return sections[i].Type < sections[j].Type })
	return sections, nil
}
