package mra

import (
	"historyloader/internal/errs"
	"historyloader/internal/infra/binreader"
)

// LegacyMsgHeaderMagicNumber is the u32 a legacy message header must
// carry at bytes 36..40.
const LegacyMsgHeaderMagicNumber = 0x38

// LegacyMessageHeader is the packed 56-byte header preceding every
// mra.dbs message. Unlike the modern format's header this one also
// carries the variable-length nickname/text lengths, since those
// strings are inlined right after it rather than split into sections.
type LegacyMessageHeader struct {
	Size           uint32
	PrevID         uint32
	NextID         uint32
	Filetime       uint64
	Type           MraMessageType
	FlagOutgoing   byte
	NicknameLength uint32 // UTF-16 units, including the terminating NUL
	TextLength     uint32 // UTF-16 units, including the terminating NUL
	SizeLpsRtf     uint32
}

const LegacyMessageHeaderSize = 56

func (h LegacyMessageHeader) Incoming() bool { return h.FlagOutgoing == 0 }

func decodeLegacyHeader(bs []byte) (LegacyMessageHeader, error) {
	if len(bs) < LegacyMessageHeaderSize {
		return LegacyMessageHeader{}, errs.New(errs.Truncated, "legacy message header: need %d bytes, have %d", LegacyMessageHeaderSize, len(bs))
	}
	size, _, err := binreader.NextU32(bs[0:4])
	if err != nil {
		return LegacyMessageHeader{}, err
	}
	prevID, _, err := binreader.NextU32(bs[4:8])
	if err != nil {
		return LegacyMessageHeader{}, err
	}
	nextID, _, err := binreader.NextU32(bs[8:12])
	if err != nil {
		return LegacyMessageHeader{}, err
	}
	// bytes 12:16 are an unused reserved field.
	ft, _, err := binreader.NextU64(bs[16:24])
	if err != nil {
		return LegacyMessageHeader{}, err
	}
	typ, _, err := binreader.NextU32(bs[24:28])
	if err != nil {
		return LegacyMessageHeader{}, err
	}
	flagOutgoing := bs[28]
	// bytes 29:32 are a reserved 3-byte pad.
	nicknameLen, _, err := binreader.NextU32(bs[32:36])
	if err != nil {
		return LegacyMessageHeader{}, err
	}
	magic, _, err := binreader.NextU32(bs[36:40])
	if err != nil {
		return LegacyMessageHeader{}, err
	}
	if magic != LegacyMsgHeaderMagicNumber {
		return LegacyMessageHeader{}, errs.New(errs.BadMagic, "legacy message header: magic 0x%08x != 0x%08x", magic, LegacyMsgHeaderMagicNumber)
	}
	textLen, _, err := binreader.NextU32(bs[40:44])
	if err != nil {
		return LegacyMessageHeader{}, err
	}
	// bytes 44:48 are reserved.
	sizeLpsRtf, _, err := binreader.NextU32(bs[48:52])
	if err != nil {
		return LegacyMessageHeader{}, err
	}
	// bytes 52:56 are reserved.

	return LegacyMessageHeader{
		Size: size, PrevID: prevID, NextID: nextID, Filetime: ft,
		Type: MraMessageType(typ), FlagOutgoing: flagOutgoing,
		NicknameLength: nicknameLen, TextLength: textLen, SizeLpsRtf: sizeLpsRtf,
	}, nil
}

func readU32At(data []byte, addr int) (uint32, error) {
	if addr < 0 || addr+4 > len(data) {
		return 0, errs.New(errs.Truncated, "read_u32: offset %#x out of range (len %d)", addr, len(data))
	}
	v, _, err := binreader.NextU32(data[addr : addr+4])
	return v, err
}

// loadOffsetsTable reinterprets the tail of the file, starting at the
// address stored at offset 0x10, as a flat u32 array; its first entry
// must be the fixed sentinel value 0x04.
func loadOffsetsTable(data []byte) ([]uint32, error) {
	const offsetsTableOffset = 0x10
	const offsetsMagicNumber = 0x04

	tableAddr, err := readU32At(data, offsetsTableOffset)
	if err != nil {
		return nil, errs.Annotate(err, "offsets table address")
	}
	addr := int(tableAddr)
	if addr < 0 || addr > len(data) || addr%4 != 0 || (len(data)-addr)%4 != 0 {
		return nil, errs.New(errs.BadMagic, "misaligned offsets table at %#08x", addr)
	}
	n := (len(data) - addr) / 4
	table := make([]uint32, n)
	for i := 0; i < n; i++ {
		v, err := readU32At(data, addr+4*i)
		if err != nil {
			return nil, err
		}
		table[i] = v
	}
	if len(table) == 0 || table[0] != offsetsMagicNumber {
		return nil, errs.New(errs.BadMagic, "offsets table magic mismatch")
	}
	return table, nil
}

// LegacyConversation is one conversation record recognised by the
// "mrahistory_" footprint at a fixed offset within its record.
type LegacyConversation struct {
	Offset     int
	MyselfName string
	OtherName  string
	MsgID1     uint32 // 0 means none
	MsgID2     uint32
}

var mrahistoryFootprint = utf16leBytesOf("mrahistory_")

func utf16leBytesOf(s string) []byte {
	out := make([]byte, 0, len(s)*2)
	for _, r := range s {
		out = append(out, byte(r), 0x00)
	}
	return out
}

// loadLegacyConversations walks the conversation linked list starting
// at the "datasets" record (table[1]), validating prev-pointer
// integrity and the file's own declared conversation count.
func loadLegacyConversations(data []byte, table []uint32) ([]LegacyConversation, error) {
	const conversationsCountOffset = 0x20
	const lastConversationOffset = 0x2C
	const conversationIDsOffset = 0x04
	const messageIDsOffset = 0x28
	const mrahistoryFootprintOffset = 0x194

	if len(table) < 2 {
		return nil, errs.New(errs.Truncated, "offsets table too short for datasets record")
	}
	expectedCount, err := readU32At(data, int(table[1])+conversationsCountOffset)
	if err != nil {
		return nil, errs.Annotate(err, "expected_convs_count")
	}
	convID, err := readU32At(data, int(table[1])+lastConversationOffset)
	if err != nil {
		return nil, errs.Annotate(err, "last_conv_id")
	}

	var result []LegacyConversation
	lastProcessed := uint32(0)
	actualCount := uint32(0)

	for convID != 0 {
		if int(convID) >= len(table) {
			return nil, errs.New(errs.ConsistencyError, "conv_id %d out of offsets table range", convID)
		}
		offset := int(table[convID])
		if offset < 0 || offset >= len(data) {
			return nil, errs.New(errs.Truncated, "conversation offset %#x out of range", offset)
		}

		prevConvID, err := readU32At(data, offset+conversationIDsOffset)
		if err != nil {
			return nil, err
		}
		nextConvID, err := readU32At(data, offset+conversationIDsOffset+4)
		if err != nil {
			return nil, err
		}
		if prevConvID != lastProcessed {
			return nil, errs.New(errs.ConsistencyError, "conversations linked list is broken at offset %#x", offset)
		}

		footprintLoc := offset + mrahistoryFootprintOffset
		if footprintLoc+len(mrahistoryFootprint) <= len(data) &&
			bytesEqual(data[footprintLoc:footprintLoc+len(mrahistoryFootprint)], mrahistoryFootprint) {

			nameSlice := data[footprintLoc+len(mrahistoryFootprint):]
			sepPos := firstNulOrUnderscoreSeparator(nameSlice)
			if sepPos < 0 {
				return nil, errs.New(errs.Truncated, "mrahistory footprint: no name separator")
			}
			myselfNameUTF16 := nameSlice[:sepPos]
			rest := nameSlice[sepPos+2:]
			otherSepPos := firstNulSeparator(rest)
			if otherSepPos < 0 {
				return nil, errs.New(errs.Truncated, "mrahistory footprint: no other-name terminator")
			}
			otherNameUTF16 := rest[:otherSepPos]

			myselfName, err := binreader.UTF16LEToString(myselfNameUTF16)
			if err != nil {
				return nil, errs.Annotate(err, "mrahistory footprint: myself_name")
			}
			otherName, err := binreader.UTF16LEToString(otherNameUTF16)
			if err != nil {
				return nil, errs.Annotate(err, "mrahistory footprint: other_name")
			}

			msgID1, err := readU32At(data, offset+messageIDsOffset)
			if err != nil {
				return nil, err
			}
			msgID2, err := readU32At(data, offset+messageIDsOffset+4)
			if err != nil {
				return nil, err
			}

			result = append(result, LegacyConversation{
				Offset: offset, MyselfName: myselfName, OtherName: otherName,
				MsgID1: msgID1, MsgID2: msgID2,
			})
		}

		actualCount++
		lastProcessed = convID
		convID = nextConvID
	}

	if actualCount != expectedCount {
		return nil, errs.New(errs.ConsistencyError, "expected %d conversations, found %d", expectedCount, actualCount)
	}
	return result, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// firstNulOrUnderscoreSeparator finds the earlier of a NUL (0x0000) or
// '_' (0x005F) UTF-16LE unit in bs, the two valid name separators in
// the footprint.
func firstNulOrUnderscoreSeparator(bs []byte) int {
	zero := firstU16Match(bs, 0x0000)
	underscore := firstU16Match(bs, 0x005F)
	switch {
	case zero < 0:
		return underscore
	case underscore < 0:
		return zero
	case zero < underscore:
		return zero
	default:
		return underscore
	}
}

func firstNulSeparator(bs []byte) int { return firstU16Match(bs, 0x0000) }

func firstU16Match(bs []byte, want uint16) int {
	for i := 0; i+1 < len(bs); i += 2 {
		v := uint16(bs[i]) | uint16(bs[i+1])<<8
		if v == want {
			return i
		}
	}
	return -1
}

// LegacyMessage is one decoded mra.dbs message: header, its inline
// nickname/text fields already extracted, and whatever payload bytes
// remain for type-specific decoding.
type LegacyMessage struct {
	Offset  int
	Header  LegacyMessageHeader
	Author  string
	Text    string
	Payload []byte
}

// loadLegacyMessages walks the doubly-linked message chain of each
// conversation, starting at msg_id1 and following prev_id until it
// reaches zero.
func loadLegacyMessages(data []byte, table []uint32, convs []LegacyConversation) (map[int][]LegacyMessage, error) {
	out := make(map[int][]LegacyMessage, len(convs))
	for _, conv := range convs {
		var msgs []LegacyMessage
		msgID := conv.MsgID1
		for msgID != 0 {
			if int(msgID) >= len(table) {
				return nil, errs.New(errs.ConsistencyError, "msg_id %d out of offsets table range", msgID)
			}
			headerOffset := int(table[msgID])
			if headerOffset < 0 || headerOffset+LegacyMessageHeaderSize > len(data) {
				return nil, errs.New(errs.Truncated, "legacy message header at %#x out of range", headerOffset)
			}
			header, err := decodeLegacyHeader(data[headerOffset:])
			if err != nil {
				return nil, errs.Annotatef(err, "legacy message at offset %#x", headerOffset)
			}

			authorOffset := headerOffset + LegacyMessageHeaderSize
			authorBytes := data[authorOffset:]
			nickEnd := int(header.NicknameLength) * 2
			if nickEnd > len(authorBytes) {
				return nil, errs.New(errs.Truncated, "legacy message: nickname runs past buffer end")
			}
			author, err := binreader.UTF16LEToString(trimTrailingNul(authorBytes[:nickEnd]))
			if err != nil {
				return nil, errs.Annotate(err, "legacy message: author")
			}

			textOffset := authorOffset + nickEnd
			textBytes := data[textOffset:]
			textEnd := int(header.TextLength) * 2
			if textEnd > len(textBytes) {
				return nil, errs.New(errs.Truncated, "legacy message: text runs past buffer end")
			}
			text, err := binreader.UTF16LEToString(trimTrailingNul(textBytes[:textEnd]))
			if err != nil {
				return nil, errs.Annotate(err, "legacy message: text")
			}

			payloadOffset := textOffset + textEnd
			payloadEnd := headerOffset + int(header.Size)
			if payloadOffset > payloadEnd || payloadEnd > len(data) {
				return nil, errs.New(errs.Truncated, "legacy message: payload bounds out of range")
			}

			msgs = append(msgs, LegacyMessage{
				Offset: headerOffset, Header: header, Author: author, Text: text,
				Payload: data[payloadOffset:payloadEnd],
			})

			msgID = header.PrevID
		}
		out[conv.Offset] = msgs
	}
	return out, nil
}

func trimTrailingNul(units []byte) []byte {
	if len(units) >= 2 && units[len(units)-2] == 0 && units[len(units)-1] == 0 {
		return units[:len(units)-2]
	}
	return units
}

// LegacyConversationWithMessages is one fully-decoded mra.dbs
// conversation, ready for rendering into uniform messages.
type LegacyConversationWithMessages struct {
	Conv     LegacyConversation
	Messages []LegacyMessage
}

// LoadLegacyDB decodes a whole mra.dbs file into its conversations and
// their messages, in the file's own linked-list order (not yet sorted
// or filtered — callers run the same phantom/dedup/sort passes used for
// the modern format after rendering, as needed).
func LoadLegacyDB(data []byte) ([]LegacyConversationWithMessages, error) {
	table, err := loadOffsetsTable(data)
	if err != nil {
		return nil, errs.Annotate(err, "mra.dbs")
	}
	convs, err := loadLegacyConversations(data, table)
	if err != nil {
		return nil, errs.Annotate(err, "mra.dbs")
	}
	msgsByConv, err := loadLegacyMessages(data, table, convs)
	if err != nil {
		return nil, errs.Annotate(err, "mra.dbs")
	}

	result := make([]LegacyConversationWithMessages, 0, len(convs))
	for _, conv := range convs {
		result = append(result, LegacyConversationWithMessages{Conv: conv, Messages: msgsByConv[conv.Offset]})
	}
	return result, nil
}
