package mra

import (
	"bytes"

	"go.uber.org/zap"

	"historyloader/internal/errs"
	"historyloader/internal/infra/logger"
)

type placeholderKey struct {
	someTimestamp int32
	unknown       uint32
}

func plaintextOf(r Record) ([]byte, bool) {
	for _, s := range r.Sections {
		if s.Type == SectionPlaintext {
			return s.Data, true
		}
	}
	return nil, false
}

func absFtDiff(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}

// RemoveBadMessages implements the phantom-message filter: placeholder
// records (empty sections, positive some_timestamp_or_0 and unknown)
// register a reference key; any non-empty record matching a referenced
// key at or before the mid-2014 cutoff is a legacy phantom; a non-empty
// record with an identical-plaintext twin about an hour later is the
// earlier half of a duplicate pair. All empty-section records are
// dropped once they have served as reference placeholders. Dropped
// records are logged and never surfaced as an error — this phase is
// recoverable per the loader's error-handling contract.
func RemoveBadMessages(records []Record) []Record {
	referenced := make(map[placeholderKey]struct{})
	for _, r := range records {
		if len(r.Sections) != 0 {
			continue
		}
		if r.Header.SomeTimestampOrZero > 0 && r.Header.Unknown > 0 {
			referenced[placeholderKey{r.Header.SomeTimestampOrZero, r.Header.Unknown}] = struct{}{}
		}
	}

	dropLegacyPhantom := make([]bool, len(records))
	for i, r := range records {
		if len(r.Sections) == 0 {
			continue
		}
		if r.Header.SomeTimestampOrZero <= 0 || r.Header.SomeTimestampOrZero > MaxLegacyPhantomTimestamp {
			continue
		}
		if _, ok := referenced[placeholderKey{r.Header.SomeTimestampOrZero, r.Header.Unknown}]; ok {
			dropLegacyPhantom[i] = true
		}
	}

	dropHourEarlier := make([]bool, len(records))
	for i, r := range records {
		if len(r.Sections) == 0 || dropLegacyPhantom[i] {
			continue
		}
		if r.Header.SomeTimestampOrZero <= MaxLegacyPhantomTimestamp {
			continue
		}
		text, ok := plaintextOf(r)
		if !ok {
			continue
		}
		for j, other := range records {
			if i == j || len(other.Sections) == 0 || dropLegacyPhantom[j] {
				continue
			}
			diff := absFtDiff(other.Header.Filetime, r.Header.Filetime)
			if diff < MinPhantomFtDiff || diff > MaxPhantomFtDiff {
				continue
			}
			otherText, ok := plaintextOf(other)
			if !ok || !bytes.Equal(text, otherText) {
				continue
			}
			if other.Header.Filetime > r.Header.Filetime {
				dropHourEarlier[i] = true
				break
			}
		}
	}

	out := make([]Record, 0, len(records))
	dropped := 0
	for i, r := range records {
		if len(r.Sections) == 0 {
			dropped++
			continue
		}
		if dropLegacyPhantom[i] || dropHourEarlier[i] {
			dropped++
			continue
		}
		out = append(out, r)
	}
	if dropped > 0 {
		logger.Throttled("mra phantom filter dropped records", zap.Int("count", dropped))
	}
	return out
}

// RemoveDuplicates drops any record whose section list is byte-identical
// to that of an earlier record within MaxDedupFtDiff ticks, so the first
// of a run of duplicates survives. records must already be sorted by
// filetime (SortMessages's output).
func RemoveDuplicates(records []Record) []Record {
	out := make([]Record, 0, len(records))
	dropped := 0
	for i, r := range records {
		isDup := false
		for j := i - 1; j >= 0; j-- {
			if r.Header.Filetime-records[j].Header.Filetime > MaxDedupFtDiff {
				break
			}
			if sectionsEqual(records[j].Sections, r.Sections) {
				isDup = true
				break
			}
		}
		if isDup {
			dropped++
			continue
		}
		out = append(out, r)
	}
	if dropped > 0 {
		logger.Throttled("mra dedup pass dropped records", zap.Int("count", dropped))
	}
	return out
}

func sectionsEqual(a, b []Section) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Type != b[i].Type || !bytes.Equal(a[i].Data, b[i].Data) {
			return false
		}
	}
	return true
}

// InconsistentLinkedListError reports sort_messages' failure to
// reconstruct same-filetime ordering: some record in a block did not
// have a next_message_addr matching any candidate slot.
type InconsistentLinkedListError struct {
	Filetimes []uint64
}

func (e *InconsistentLinkedListError) Error() string {
	return "inconsistent linked list while sorting same-filetime records"
}

// SortMessages orders records by filetime ascending (stable), then
// disambiguates equal-filetime blocks using the next_message_addr
// linked list: walking backwards from the end of the block, each step
// finds the record (within the remaining block) whose next_message_addr
// equals the previously placed record's offset (0 to start) and swaps
// it into the target slot. An all-zero next_message_addr block is left
// as-is. A missing link anywhere in a block fails the whole block with
// InconsistentLinkedListError, carrying every filetime in that block.
func SortMessages(records []Record) ([]Record, error) {
	out := make([]Record, len(records))
	copy(out, records)
	sortStableByFiletime(out)

	start := 0
	for start < len(out) {
		end := start
		for end < len(out) && out[end].Header.Filetime == out[start].Header.Filetime {
			end++
		}
		if err := reorderBlock(out, start, end); err != nil {
			return nil, err
		}
		start = end
	}
	return out, nil
}

func sortStableByFiletime(records []Record) {
	// Insertion sort keeps this stable without importing sort for a
	// single comparator; blocks are small (same-filetime runs), so this
	// stays linear in practice while the outer pass is O(n log n)-free
	// and deterministic.
	for i := 1; i < len(records); i++ {
		j := i
		for j > 0 && records[j-1].Header.Filetime > records[j].Header.Filetime {
			records[j-1], records[j] = records[j], records[j-1]
			j--
		}
	}
}

// reorderBlock reconstructs records[start:end] in place using the
// backward linked-list walk.
func reorderBlock(records []Record, start, end int) error {
	n := end - start
	if n <= 1 {
		return nil
	}

	allZero := true
	for i := start; i < end; i++ {
		if records[i].Header.NextMessageAddr != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return nil
	}

	block := make([]Record, n)
	copy(block, records[start:end])
	placed := make([]Record, n)
	used := make([]bool, n)

	fail := func() error {
		fts := make([]uint64, 0, n)
		for i := 0; i < n; i++ {
			fts = append(fts, block[i].Header.Filetime)
		}
		return errs.Wrap(errs.ConsistencyError, &InconsistentLinkedListError{Filetimes: fts}, "sort_messages: broken linked list")
	}

	expectedNext := uint32(0)
	for slot := n - 1; slot >= 0; slot-- {
		found := -1
		for i := 0; i < n; i++ {
			if used[i] {
				continue
			}
			if block[i].Header.NextMessageAddr != expectedNext {
				continue
			}
			if found != -1 {
				// two unused records both claim the same next, the
				// chain is ambiguous rather than simply broken.
				return fail()
			}
			found = i
		}
		if found == -1 {
			return fail()
		}
		used[found] = true
		placed[slot] = block[found]
		expectedNext = block[found].Offset
	}

	copy(records[start:end], placed)
	return nil
}
