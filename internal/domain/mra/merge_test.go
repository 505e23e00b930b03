package mra

import (
	"testing"

	"historyloader/internal/domain/entity"
	"historyloader/internal/domain/richtext"
)

func textMsg(internalID int64, ts int64, from int64, text string) entity.Message {
	runs := []entity.RichTextRun{richtext.Plain(text)}
	return entity.Message{
		InternalID:       internalID,
		Timestamp:        ts,
		FromID:           from,
		Text:             runs,
		SearchableString: text,
		Typed:            entity.Regular{},
	}
}

func TestMergeSnapshotsEmptyOldTakesNewAsIs(t *testing.T) {
	t.Parallel()
	newBuf := []entity.Message{textMsg(0, 100, 2, "a"), textMsg(1, 200, 2, "b")}
	got := MergeSnapshots(nil, newBuf)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
}

func TestMergeSnapshotsOverlapAppendsOnlyTail(t *testing.T) {
	t.Parallel()
	old := []entity.Message{textMsg(0, 100, 2, "a"), textMsg(1, 200, 2, "b")}
	newBuf := []entity.Message{
		textMsg(0, 100, 2, "a"),
		textMsg(1, 205, 2, "b"), // matches old.last() within 10s tolerance
		textMsg(2, 300, 2, "c"),
	}
	got := MergeSnapshots(old, newBuf)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3: %+v", len(got), got)
	}
	if got[2].SearchableString != "c" {
		t.Fatalf("got[2] = %+v, want text 'c'", got[2])
	}
	for i, m := range got {
		if m.InternalID != int64(i) {
			t.Fatalf("got[%d].InternalID = %d, want %d", i, m.InternalID, i)
		}
	}
}

func TestMergeSnapshotsOverlapOutsideToleranceTreatedAsNoMatch(t *testing.T) {
	t.Parallel()
	old := []entity.Message{textMsg(0, 100, 2, "a")}
	newBuf := []entity.Message{
		textMsg(0, 100, 2, "a"), // same content but 30s away: outside the 10s window
		textMsg(1, 120, 2, "c"),
	}
	// manually push the timestamp of the matching candidate out of tolerance
	newBuf[0].Timestamp = 130
	got := MergeSnapshots(old, newBuf)
	// no match within tolerance, and every new timestamp (130, 120)
	// exceeds 100+10, so the whole new buffer is appended; a match at
	// index 0 would have appended only "c".
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3 (whole new buffer appended): %+v", len(got), got)
	}
}

func TestMergeSnapshotsNoOverlapButAllNewStrictlyLaterAppendsEverything(t *testing.T) {
	t.Parallel()
	old := []entity.Message{textMsg(0, 100, 2, "a")}
	newBuf := []entity.Message{
		textMsg(0, 500, 2, "x"),
		textMsg(1, 600, 2, "y"),
	}
	got := MergeSnapshots(old, newBuf)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3: %+v", len(got), got)
	}
	if got[1].SearchableString != "x" || got[2].SearchableString != "y" {
		t.Fatalf("unexpected tail: %+v", got[1:])
	}
}

func TestMergeSnapshotsEmptyNewKeepsOld(t *testing.T) {
	t.Parallel()
	old := []entity.Message{textMsg(0, 100, 2, "a")}
	got := MergeSnapshots(old, nil)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
}
