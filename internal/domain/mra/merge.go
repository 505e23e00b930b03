package mra

import (
	"reflect"

	"historyloader/internal/domain/entity"
)

// MaxSnapshotMergeTimestampDiffSec bounding window is declared in
// types.go; this file implements the merge itself.

func messagesEqual(a, b entity.Message) bool {
	return a.FromID == b.FromID &&
		reflect.DeepEqual(a.Text, b.Text) &&
		reflect.DeepEqual(a.Typed, b.Typed)
}

// MergeSnapshots folds a newer decode of the same MRA conversation into
// an older one: it looks for the point in new where the two snapshots'
// message streams overlap and appends only the genuinely new tail.
// old and new must already be filetime-sorted.
func MergeSnapshots(old, new []entity.Message) []entity.Message {
	if len(old) == 0 {
		return append([]entity.Message(nil), new...)
	}
	if len(new) == 0 {
		return old
	}

	last := old[len(old)-1]
	matchIdx := -1
	for i := len(new) - 1; i >= 0; i-- {
		if messagesEqual(new[i], last) && absInt64(new[i].Timestamp-last.Timestamp) <= MaxSnapshotMergeTimestampDiffSec {
			matchIdx = i
			break
		}
	}

	var tail []entity.Message
	switch {
	case matchIdx >= 0:
		tail = new[matchIdx+1:]
	default:
		// no overlap found: only safe to append if every new message is
		// strictly newer than old's last message (plus the same grace
		// window), otherwise the two snapshots disagree and nothing is
		// appended.
		for _, m := range new {
			if m.Timestamp <= last.Timestamp+MaxSnapshotMergeTimestampDiffSec {
				return old
			}
		}
		tail = new
	}

	merged := append(append([]entity.Message(nil), old...), tail...)
	for i := range merged {
		merged[i].InternalID = int64(i)
	}
	return merged
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
