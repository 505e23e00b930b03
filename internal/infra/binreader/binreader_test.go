package binreader_test

import (
	"reflect"
	"testing"

	"historyloader/internal/errs"
	"historyloader/internal/infra/binreader"
)

func TestNextSizedChunk(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name      string
		in        []byte
		wantChunk []byte
		wantRest  []byte
		wantErr   errs.Kind
	}{
		{
			name:      "exact fit",
			in:        []byte{0x03, 0x00, 0x00, 0x00, 'a', 'b', 'c'},
			wantChunk: []byte("abc"),
			wantRest:  []byte{},
		},
		{
			name:      "trailing bytes kept as rest",
			in:        []byte{0x02, 0x00, 0x00, 0x00, 'a', 'b', 'X', 'Y'},
			wantChunk: []byte("ab"),
			wantRest:  []byte("XY"),
		},
		{
			name:    "truncated length prefix",
			in:      []byte{0x01, 0x00},
			wantErr: errs.Truncated,
		},
		{
			name:    "truncated chunk body",
			in:      []byte{0x05, 0x00, 0x00, 0x00, 'a'},
			wantErr: errs.Truncated,
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			chunk, rest, err := binreader.NextSizedChunk(tc.in)
			if tc.wantErr != 0 {
				if !errs.Is(err, tc.wantErr) {
					t.Fatalf("NextSizedChunk() err = %v, want kind %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NextSizedChunk() unexpected err: %v", err)
			}
			if !reflect.DeepEqual(chunk, tc.wantChunk) || !reflect.DeepEqual(rest, tc.wantRest) {
				t.Fatalf("NextSizedChunk() = (%v, %v), want (%v, %v)", chunk, rest, tc.wantChunk, tc.wantRest)
			}
		})
	}
}

func TestUTF16LEToString(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		in      []byte
		want    string
		wantErr bool
	}{
		{name: "ascii", in: []byte{'h', 0, 'i', 0}, want: "hi"},
		{name: "odd length fails", in: []byte{0x01}, wantErr: true},
		{name: "unpaired high surrogate fails", in: []byte{0x00, 0xD8}, wantErr: true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := binreader.UTF16LEToString(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("UTF16LEToString() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestGetNullTerminatedUTF16LESlice(t *testing.T) {
	t.Parallel()
	in := []byte{'h', 0, 'i', 0, 0, 0, 'X', 'Y'}
	slice, rest, err := binreader.GetNullTerminatedUTF16LESlice(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(slice, []byte{'h', 0, 'i', 0}) {
		t.Fatalf("slice = %v, want hi", slice)
	}
	if !reflect.DeepEqual(rest, []byte{'X', 'Y'}) {
		t.Fatalf("rest = %v, want XY", rest)
	}
}

func TestFiletimeToUnix(t *testing.T) {
	t.Parallel()
	// 1970-01-01T00:00:00Z in FILETIME ticks.
	got := binreader.FiletimeToUnix(binreader.FiletimeEpochOffsetTicks)
	if got != 0 {
		t.Fatalf("FiletimeToUnix(epoch) = %d, want 0", got)
	}
}
