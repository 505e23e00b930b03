// Package mra implements the Mail.Ru Agent loader family (C5/C6): the
// modern per-conversation binary .db record decoder, the legacy
// monolithic mra.dbs store, the phantom-message filter, stable sort and
// dedup passes, the call-lifecycle state machine and the cross-snapshot
// merge that folds two MRA exports of the same account into one
// dataset. Every threshold, offset and magic number below is reproduced
// from the original loader's source rather than derived from spec
// prose, per that spec's own "observation only" disclaimer about this
// format.
package mra

// MraMessageType is the wire tag identifying a message's payload shape:
// u8 in the modern .db format, u32 in the legacy .dbs format.
type MraMessageType uint32

const (
	TypeEmpty                      MraMessageType = 0x00
	TypeRegularPlaintext           MraMessageType = 0x02
	TypeAuthorizationRequest       MraMessageType = 0x04
	TypeActionNeedsNewerApp        MraMessageType = 0x06
	TypeRegularRtf                 MraMessageType = 0x07
	TypeFileTransfer               MraMessageType = 0x0A
	TypeCall                       MraMessageType = 0x0C
	TypeBirthdayReminder           MraMessageType = 0x0D
	TypeSms                        MraMessageType = 0x11
	TypeCartoon                    MraMessageType = 0x1A
	TypeVideoCall                  MraMessageType = 0x1E
	TypeConferenceUsersChange      MraMessageType = 0x22
	TypeMicroblogRecordBroadcast   MraMessageType = 0x23
	TypeConferenceMessagePlaintext MraMessageType = 0x24
	TypeConferenceMessageRtf       MraMessageType = 0x25
	TypeCartoonType2               MraMessageType = 0x27
	TypeMicroblogRecordDirected    MraMessageType = 0x29
	TypeLocationChange             MraMessageType = 0x2E
)

// MessageSectionType tags a length-prefixed chunk inside a modern .db
// message's payload.
type MessageSectionType uint32

const (
	SectionPlaintext             MessageSectionType = 0x00
	SectionAuthorName            MessageSectionType = 0x02
	SectionOtherAccountInUnreads MessageSectionType = 0x03
	SectionMyAccount             MessageSectionType = 0x04
	SectionOtherAccount          MessageSectionType = 0x05
	SectionContent               MessageSectionType = 0x06
)

// MsgHeaderMagicNumber is the u32 magic value a wrapped modern .db
// record's header must carry.
const MsgHeaderMagicNumber = 0x2D

// FlagIncoming is the header.flags bit marking an incoming message.
const FlagIncoming = 0b100

// DbMessageHeader is the packed 45-byte header preceding every modern
// .db message's sections. The field layout (and the 45-byte total, not
// 56) mirrors the original's #[repr(C, packed)] struct exactly; offsets
// are reproduced here for documentation, decode itself is positional.
//
//	offset size field
//	0      1    magic_value_one (== 0x01)
//	1      1    type (MraMessageType)
//	2      1    flags
//	3      2    padding (== 0)
//	5      4    full_length
//	9      4    next_message_addr
//	13     8    filetime
//	21     4    unknown
//	25     4    some_timestamp_or_0 (i32)
//	29     16   padding (== 0)
type DbMessageHeader struct {
	MagicValueOne     byte
	Type              MraMessageType
	Flags             byte
	FullLength        uint32
	NextMessageAddr   uint32
	Filetime          uint64
	Unknown           uint32
	SomeTimestampOrZero int32
}

const DbMessageHeaderSize = 45

// Incoming reports whether the FlagIncoming bit is set.
func (h DbMessageHeader) Incoming() bool { return h.Flags&FlagIncoming != 0 }

// Section is one decoded (type, payload) pair from a message's section
// list.
type Section struct {
	Type MessageSectionType
	Data []byte
}

// Record is a single decoded modern .db record: its header, offset
// within the file (used by sort_messages' linked-list reconstruction)
// and its sorted section list.
type Record struct {
	Header   DbMessageHeader
	Offset   uint32
	Sections []Section
}

// MaxLegacyPhantomTimestamp is the some_timestamp_or_0 ceiling (seconds,
// ~mid-2014) below which a referenced placeholder's non-empty twin is
// considered a legacy phantom and dropped.
const MaxLegacyPhantomTimestamp int32 = 1399734000

// Phantom-filter filetime-delta window for the "duplicate appears about
// an hour later" rule: target delta is one hour (3600s) with a 30s
// tolerance on each side, expressed in 100-ns FILETIME ticks.
const (
	phantomSecDiff       = 3600
	phantomSecDiffDelta  = 30
	ticksPerSecond       = 10_000_000
	MinPhantomFtDiff     = uint64(phantomSecDiff-phantomSecDiffDelta) * ticksPerSecond
	MaxPhantomFtDiff     = uint64(phantomSecDiff+phantomSecDiffDelta) * ticksPerSecond
)

// MaxDedupFtDiff is the duplicate-removal window: two seconds, in
// 100-ns FILETIME ticks.
const MaxDedupFtDiff uint64 = 20_000_000

// MaxSnapshotMergeTimestampDiffSec bounds how far apart two messages'
// unix timestamps may be and still be considered the same message when
// stitching two MRA snapshots together.
const MaxSnapshotMergeTimestampDiffSec int64 = 10
