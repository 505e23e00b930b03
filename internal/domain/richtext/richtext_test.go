package richtext_test

import (
	"reflect"
	"testing"

	"historyloader/internal/domain/entity"
	"historyloader/internal/domain/richtext"
)

func TestNormalize(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		in   []entity.RichTextRun
		want []entity.RichTextRun
	}{
		{
			name: "merges adjacent plain runs",
			in:   []entity.RichTextRun{richtext.Plain("a"), richtext.Plain("b")},
			want: []entity.RichTextRun{richtext.Plain("ab")},
		},
		{
			name: "drops empty plain runs",
			in:   []entity.RichTextRun{richtext.Plain("a"), richtext.Plain(""), richtext.Plain("b")},
			want: []entity.RichTextRun{richtext.Plain("ab")},
		},
		{
			name: "does not merge across a non-plain run",
			in:   []entity.RichTextRun{richtext.Plain("a"), richtext.Bold("b"), richtext.Plain("c")},
			want: []entity.RichTextRun{richtext.Plain("a"), richtext.Bold("b"), richtext.Plain("c")},
		},
		{
			name: "hides whitespace-only link",
			in:   []entity.RichTextRun{richtext.Link("​", "http://x", false)},
			want: []entity.RichTextRun{richtext.Link("​", "http://x", true)},
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := richtext.Normalize(tc.in)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Normalize() = %#v, want %#v", got, tc.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	t.Parallel()
	in := []entity.RichTextRun{
		richtext.Plain("a"), richtext.Plain(""), richtext.Plain("b"),
		richtext.Bold("c"), richtext.Plain("d"), richtext.Plain("e"),
	}
	once := richtext.Normalize(in)
	twice := richtext.Normalize(once)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("Normalize is not idempotent: once=%#v twice=%#v", once, twice)
	}
}

func TestParseRTF(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		in   string
		want []entity.RichTextRun
	}{
		{
			name: "bold run",
			in:   `{\rtf1 \b hello\b0 }`,
			want: []entity.RichTextRun{richtext.Bold("hello")},
		},
		{
			name: "plain passthrough for unknown tokens",
			in:   `{\rtf1 \unknowntoken hello }`,
			want: []entity.RichTextRun{richtext.Plain("hello ")},
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := richtext.ParseRTF(tc.in)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ParseRTF(%q) = %#v, want %#v", tc.in, got, tc.want)
			}
		})
	}
}
