package mra

import (
	"encoding/binary"
	"testing"
	"unicode/utf16"

	"historyloader/internal/domain/entity"
	"historyloader/internal/infra/binreader"
)

func utf16leBytes(s string) []byte {
	units := utf16.Encode([]rune(s))
	out := make([]byte, len(units)*2)
	for i, u := range units {
		binary.LittleEndian.PutUint16(out[2*i:], u)
	}
	return out
}

func sizedUTF16(s string) []byte {
	text := utf16leBytes(s)
	out := make([]byte, 4+len(text))
	binary.LittleEndian.PutUint32(out, uint32(len(text)))
	copy(out[4:], text)
	return out
}

func unixToFiletime(unixSec int64) uint64 {
	return uint64(unixSec)*10_000_000 + binreader.FiletimeEpochOffsetTicks
}

func callRecord(offset uint32, ft uint64, text string) Record {
	return Record{
		Header:   DbMessageHeader{Type: TypeCall, Filetime: ft},
		Offset:   offset,
		Sections: []Section{{Type: SectionContent, Data: sizedUTF16(text)}},
	}
}

// TestRenderRecordsCallLifecycle covers the call-state scenario: a begin
// message at t=1000 followed by "Звонок завершен" at t=1045 produces a
// single Service/PhoneCall message at t=1000 with duration_sec=45 and no
// discard reason.
func TestRenderRecordsCallLifecycle(t *testing.T) {
	t.Parallel()
	records := []Record{
		callRecord(0x00, unixToFiletime(1000), "Вы звоните собеседнику. Ожидание ответа..."),
		callRecord(0x10, unixToFiletime(1045), "Звонок завершен"),
	}
	messages, err := RenderRecords(records, 2, nil)
	if err != nil {
		t.Fatalf("RenderRecords: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("len(messages) = %d, want 1: %+v", len(messages), messages)
	}
	msg := messages[0]
	if msg.Timestamp != 1000 {
		t.Fatalf("Timestamp = %d, want 1000", msg.Timestamp)
	}
	svc, ok := msg.Typed.(entity.Service)
	if !ok {
		t.Fatalf("Typed = %#v, want Service", msg.Typed)
	}
	call, ok := svc.Kind.(entity.ServicePhoneCall)
	if !ok {
		t.Fatalf("Kind = %#v, want ServicePhoneCall", svc.Kind)
	}
	if call.DurationSec != 45 {
		t.Fatalf("DurationSec = %d, want 45", call.DurationSec)
	}
	if call.DiscardReason != "" {
		t.Fatalf("DiscardReason = %q, want empty (normal hangup)", call.DiscardReason)
	}
}

func TestRenderRecordsCallBeginDroppedWithinGraceWindow(t *testing.T) {
	t.Parallel()
	records := []Record{
		callRecord(0x00, unixToFiletime(1000), "Начался разговор"),
		callRecord(0x10, unixToFiletime(1001), "Начался разговор"),
		callRecord(0x20, unixToFiletime(1060), "Звонок завершен"),
	}
	messages, err := RenderRecords(records, 2, nil)
	if err != nil {
		t.Fatalf("RenderRecords: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("len(messages) = %d, want 1 (second begin should be dropped): %+v", len(messages), messages)
	}
}

func TestRenderRecordsPlaintext(t *testing.T) {
	t.Parallel()
	r := Record{
		Header:   DbMessageHeader{Type: TypeRegularPlaintext, Filetime: unixToFiletime(500), Flags: FlagIncoming},
		Offset:   0x00,
		Sections: []Section{{Type: SectionContent, Data: sizedUTF16("hello")}},
	}
	messages, err := RenderRecords([]Record{r}, 7, nil)
	if err != nil {
		t.Fatalf("RenderRecords: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("len(messages) = %d, want 1", len(messages))
	}
	if messages[0].FromID != 7 {
		t.Fatalf("FromID = %d, want 7 (incoming)", messages[0].FromID)
	}
	if messages[0].SearchableString != "hello" {
		t.Fatalf("SearchableString = %q, want %q", messages[0].SearchableString, "hello")
	}
}

func TestRenderRecordsCartoonExtractsSmile(t *testing.T) {
	t.Parallel()
	r := Record{
		Header:   DbMessageHeader{Type: TypeCartoon, Filetime: unixToFiletime(1)},
		Offset:   0x00,
		Sections: []Section{{Type: SectionContent, Data: sizedUTF16("<SMILE>id='1'</SMILE>")}},
	}
	messages, err := RenderRecords([]Record{r}, 3, nil)
	if err != nil {
		t.Fatalf("RenderRecords: %v", err)
	}
	regular, ok := messages[0].Typed.(entity.Regular)
	if !ok {
		t.Fatalf("Typed = %#v, want Regular", messages[0].Typed)
	}
	content, ok := regular.Content.(entity.ContentSticker)
	if !ok {
		t.Fatalf("Content = %#v, want ContentSticker", regular.Content)
	}
	if content.EmojiText != smileyTable["1"] {
		t.Fatalf("EmojiText = %q, want %q", content.EmojiText, smileyTable["1"])
	}
}
