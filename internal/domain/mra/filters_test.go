package mra

import (
	"reflect"
	"testing"

	"historyloader/internal/errs"
)

func rec(offset uint32, next uint32, filetime uint64) Record {
	return Record{
		Header:   DbMessageHeader{NextMessageAddr: next, Filetime: filetime},
		Offset:   offset,
		Sections: []Section{{Type: SectionPlaintext, Data: []byte("x")}},
	}
}

func offsets(records []Record) []uint32 {
	out := make([]uint32, len(records))
	for i, r := range records {
		out[i] = r.Offset
	}
	return out
}

func TestSortMessagesSingle(t *testing.T) {
	t.Parallel()
	in := []Record{rec(0x00, 0, 100000)}
	got, err := SortMessages(in)
	if err != nil {
		t.Fatalf("SortMessages: %v", err)
	}
	if !reflect.DeepEqual(offsets(got), []uint32{0x00}) {
		t.Fatalf("offsets = %v", offsets(got))
	}
}

func TestSortMessagesFiletimeOnly(t *testing.T) {
	t.Parallel()
	in := []Record{
		rec(0x00, 0, 100000),
		rec(0x01, 0, 200000),
		rec(0x02, 0, 400000),
		rec(0x03, 0, 300000),
		rec(0x04, 0, 000000),
	}
	got, err := SortMessages(in)
	if err != nil {
		t.Fatalf("SortMessages: %v", err)
	}
	want := []uint32{0x04, 0x00, 0x01, 0x03, 0x02}
	if !reflect.DeepEqual(offsets(got), want) {
		t.Fatalf("offsets = %v, want %v", offsets(got), want)
	}
}

func TestSortMessagesAllNullBlockUnchanged(t *testing.T) {
	t.Parallel()
	in := []Record{
		rec(0x00, 0, 100),
		rec(0x10, 0, 100),
		rec(0x20, 0, 100),
		rec(0x30, 0, 100),
		rec(0x40, 0, 100),
	}
	got, err := SortMessages(in)
	if err != nil {
		t.Fatalf("SortMessages: %v", err)
	}
	want := []uint32{0x00, 0x10, 0x20, 0x30, 0x40}
	if !reflect.DeepEqual(offsets(got), want) {
		t.Fatalf("offsets = %v, want %v (all-NULL block must stay in encounter order)", offsets(got), want)
	}
}

// TestSortMessagesMixedBlockReconstruction covers the reverse-chain
// scenario where a block of equal-filetime records carries a real
// next_message_addr chain threaded through it, alongside distinct
// surrounding filetimes.
func TestSortMessagesMixedBlockReconstruction(t *testing.T) {
	t.Parallel()
	in := []Record{
		rec(0x40, 0, 300),
		rec(0x30, 0, 200),
		rec(0x20, 0x30, 200),
		rec(0x10, 0x20, 200),
		rec(0x00, 0, 100),
	}
	got, err := SortMessages(in)
	if err != nil {
		t.Fatalf("SortMessages: %v", err)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Header.Filetime < got[i-1].Header.Filetime {
			t.Fatalf("result not filetime-ascending: %v", offsets(got))
		}
	}
	want := []uint32{0x00, 0x10, 0x20, 0x30, 0x40}
	if !reflect.DeepEqual(offsets(got), want) {
		t.Fatalf("offsets = %v, want %v", offsets(got), want)
	}
}

func TestSortMessagesFullReverseChain(t *testing.T) {
	t.Parallel()
	in := []Record{
		rec(0x10, 0, 500),
		rec(0x20, 0x10, 500),
		rec(0x30, 0x20, 500),
		rec(0x40, 0x30, 500),
		rec(0x50, 0x40, 500),
	}
	got, err := SortMessages(in)
	if err != nil {
		t.Fatalf("SortMessages: %v", err)
	}
	want := []uint32{0x50, 0x40, 0x30, 0x20, 0x10}
	if !reflect.DeepEqual(offsets(got), want) {
		t.Fatalf("offsets = %v, want %v (terminal-NULL record must come last)", offsets(got), want)
	}
}

func TestSortMessagesRandomBlockUniqueChain(t *testing.T) {
	t.Parallel()
	in := []Record{
		rec(0x30, 0x20, 700),
		rec(0x50, 0x40, 700),
		rec(0x10, 0, 700),
		rec(0x40, 0x30, 700),
		rec(0x20, 0x10, 700),
	}
	got, err := SortMessages(in)
	if err != nil {
		t.Fatalf("SortMessages: %v", err)
	}
	want := []uint32{0x50, 0x40, 0x30, 0x20, 0x10}
	if !reflect.DeepEqual(offsets(got), want) {
		t.Fatalf("offsets = %v, want %v", offsets(got), want)
	}
}

func TestSortMessagesTwoNullNextsFail(t *testing.T) {
	t.Parallel()
	in := []Record{
		rec(0x00, 0, 900),
		rec(0x10, 0, 900),
		rec(0x20, 0x10, 900),
	}
	_, err := SortMessages(in)
	if err == nil {
		t.Fatalf("expected InconsistentLinkedList, got nil")
	}
	if errs.KindOf(err) != errs.ConsistencyError {
		t.Fatalf("err kind = %v, want ConsistencyError", errs.KindOf(err))
	}
	var listErr *InconsistentLinkedListError
	if !errorsAsInconsistent(err, &listErr) {
		t.Fatalf("err does not wrap InconsistentLinkedListError: %v", err)
	}
}

func TestSortMessagesSharedNextFails(t *testing.T) {
	t.Parallel()
	in := []Record{
		rec(0x30, 0, 950),
		rec(0x10, 0x30, 950),
		rec(0x20, 0x30, 950),
	}
	_, err := SortMessages(in)
	if err == nil {
		t.Fatalf("expected InconsistentLinkedList, got nil")
	}
	if errs.KindOf(err) != errs.ConsistencyError {
		t.Fatalf("err kind = %v, want ConsistencyError", errs.KindOf(err))
	}
}

func errorsAsInconsistent(err error, target **InconsistentLinkedListError) bool {
	for err != nil {
		if e, ok := err.(*InconsistentLinkedListError); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func TestRemoveBadMessagesDropsEmptyAndLegacyPhantom(t *testing.T) {
	t.Parallel()
	placeholder := Record{Header: DbMessageHeader{SomeTimestampOrZero: 1000, Unknown: 7}}
	legacyPhantom := Record{
		Header:   DbMessageHeader{SomeTimestampOrZero: 1000, Unknown: 7, Filetime: 1},
		Sections: []Section{{Type: SectionPlaintext, Data: []byte("hi")}},
	}
	keep := Record{
		Header:   DbMessageHeader{SomeTimestampOrZero: MaxLegacyPhantomTimestamp + 1, Filetime: 2},
		Sections: []Section{{Type: SectionPlaintext, Data: []byte("keep me")}},
	}
	out := RemoveBadMessages([]Record{placeholder, legacyPhantom, keep})
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1: %+v", len(out), out)
	}
	if out[0].Header.Filetime != 2 {
		t.Fatalf("unexpected surviving record: %+v", out[0])
	}
}

func TestRemoveBadMessagesDropsHourEarlierDuplicate(t *testing.T) {
	t.Parallel()
	text := []byte("same text")
	early := Record{
		Header:   DbMessageHeader{SomeTimestampOrZero: MaxLegacyPhantomTimestamp + 1, Filetime: 1_000_000_000},
		Sections: []Section{{Type: SectionPlaintext, Data: text}},
	}
	late := Record{
		Header:   DbMessageHeader{SomeTimestampOrZero: MaxLegacyPhantomTimestamp + 1, Filetime: 1_000_000_000 + phantomSecDiff*ticksPerSecond},
		Sections: []Section{{Type: SectionPlaintext, Data: text}},
	}
	out := RemoveBadMessages([]Record{early, late})
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1: %+v", len(out), out)
	}
	if out[0].Header.Filetime != late.Header.Filetime {
		t.Fatalf("expected the later record to survive, got %+v", out[0])
	}
}

func TestRemoveDuplicatesWithinWindow(t *testing.T) {
	t.Parallel()
	a := Record{Header: DbMessageHeader{Filetime: 100}, Sections: []Section{{Type: SectionPlaintext, Data: []byte("dup")}}}
	b := Record{Header: DbMessageHeader{Filetime: 100 + MaxDedupFtDiff/2}, Sections: []Section{{Type: SectionPlaintext, Data: []byte("dup")}}}
	c := Record{Header: DbMessageHeader{Filetime: 100 + MaxDedupFtDiff*2}, Sections: []Section{{Type: SectionPlaintext, Data: []byte("dup")}}}
	out := RemoveDuplicates([]Record{a, b, c})
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2: %+v", len(out), out)
	}
	if out[0].Header.Filetime != a.Header.Filetime || out[1].Header.Filetime != c.Header.Filetime {
		t.Fatalf("unexpected survivors: %+v", out)
	}
}
