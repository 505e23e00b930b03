package telegram

import (
	"testing"

	"github.com/go-faster/jx"

	"historyloader/internal/domain/entity"
	"historyloader/internal/domain/users"
	"historyloader/internal/infra/pr"
)

func TestNormalizeUserID(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		in   int64
		want int64
	}{
		{"below shift unchanged", 42, 42},
		{"at shift subtracted", UserIDShift, 0},
		{"above shift subtracted", UserIDShift + 7, 7},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := NormalizeUserID(tc.in); got != tc.want {
				t.Fatalf("NormalizeUserID(%d) = %d, want %d", tc.in, got, tc.want)
			}
		})
	}
}

// TestChatIDNormalization covers the spec's chat-id normalization
// scenario: a personal chat with id=123 becomes 123 + 2^32 post-load.
func TestChatIDNormalization(t *testing.T) {
	t.Parallel()
	got := NormalizePersonalChatID(123)
	want := int64(123) + PersonalChatIDShift
	if got != want {
		t.Fatalf("NormalizePersonalChatID(123) = %d, want %d", got, want)
	}
}

func TestChatTypeOf(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name     string
		raw      string
		wantType entity.ChatType
		wantSkip bool
	}{
		{"personal_chat", "personal_chat", entity.ChatPersonal, false},
		{"private_group", "private_group", entity.ChatPrivateGroup, false},
		{"private_supergroup", "private_supergroup", entity.ChatPrivateGroup, false},
		{"saved_messages skipped", "saved_messages", "", true},
		{"private_channel skipped", "private_channel", "", true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			gotType, gotSkip := chatTypeOf(tc.raw)
			if gotType != tc.wantType || gotSkip != tc.wantSkip {
				t.Fatalf("chatTypeOf(%q) = (%v, %v), want (%v, %v)", tc.raw, gotType, gotSkip, tc.wantType, tc.wantSkip)
			}
		})
	}
}

// TestClassifyContentSticker covers the spec's content discriminator
// scenario: media_type=sticker with a file path and dimensions.
func TestClassifyContentSticker(t *testing.T) {
	t.Parallel()
	raw := []byte(`{"media_type":"sticker","file":"a.webp","width":100,"height":100}`)
	obj, err := decodeObject(jx.DecodeBytes(raw), "$")
	if err != nil {
		t.Fatalf("decodeObject: %v", err)
	}
	content, err := classifyContent(obj, "$")
	if err != nil {
		t.Fatalf("classifyContent: %v", err)
	}
	sticker, ok := content.(entity.ContentSticker)
	if !ok {
		t.Fatalf("classifyContent() = %#v, want ContentSticker", content)
	}
	if sticker.Path != "a.webp" || sticker.Width != 100 || sticker.Height != 100 {
		t.Fatalf("unexpected sticker fields: %#v", sticker)
	}
}

// TestParseChatMemberOrdering exercises ParseChat end-to-end: myself is
// collected from a message's from_id, and member_ids must come out with
// MyselfID first followed by the rest ascending, per invariant 2. A
// mismatch dumps both sides through pr.Pf since entity.Chat's nested
// MemberIDs slice is unreadable from %+v alone once a case grows.
func TestParseChatMemberOrdering(t *testing.T) {
	t.Parallel()
	raw := []byte(`{
		"name": "g", "type": "private_group", "id": 5,
		"messages": [
			{"id": 1, "type": "message", "date": "2021-01-01T00:00:00", "date_unixtime": "1", "text": "hi", "from": "a", "from_id": "user` + itoa(int(entity.MyselfID)) + `"},
			{"id": 2, "type": "message", "date": "2021-01-01T00:00:01", "date_unixtime": "2", "text": "yo", "from": "b", "from_id": "user9"},
			{"id": 3, "type": "message", "date": "2021-01-01T00:00:02", "date_unixtime": "3", "text": "hey", "from": "c", "from_id": "user3"}
		]
	}`)
	obj, err := decodeObject(jx.DecodeBytes(raw), "$")
	if err != nil {
		t.Fatalf("decodeObject: %v", err)
	}
	reg := users.New()
	chat, msgs, err := ParseChat(obj, "$", "ds", reg)
	if err != nil {
		t.Fatalf("ParseChat: %v", err)
	}
	if chat == nil {
		t.Fatalf("ParseChat returned nil chat")
	}
	want := []int64{entity.MyselfID, 3, 9}
	if !int64SliceEqual(chat.MemberIDs, want) {
		t.Fatalf("MemberIDs mismatch\ngot:  %s\nwant: %s", pr.Pf(chat.MemberIDs), pr.Pf(want))
	}
	if chat.MsgCount != len(msgs) {
		t.Fatalf("MsgCount = %d, want %d", chat.MsgCount, len(msgs))
	}
	for i, m := range msgs {
		if m.InternalID != int64(i) {
			t.Fatalf("messages not densely numbered: %s", pr.Pf(msgs))
		}
	}
}

func int64SliceEqual(a, b []int64) bool {
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

func TestIsSingleChatExport(t *testing.T) {
	t.Parallel()
	single := []byte(`{"name":"x","type":"personal_chat","id":1,"messages":[]}`)
	root, ok, err := DetectAndDecodeRoot(single)
	if err != nil {
		t.Fatalf("DetectAndDecodeRoot: %v", err)
	}
	if !ok {
		t.Fatalf("expected single-chat detection for %v", root)
	}

	full := []byte(`{"about":"x","personal_information":{},"chats":{}}`)
	_, ok, err = DetectAndDecodeRoot(full)
	if err != nil {
		t.Fatalf("DetectAndDecodeRoot: %v", err)
	}
	if ok {
		t.Fatalf("expected full-export detection")
	}
}
