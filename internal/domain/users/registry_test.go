package users_test

import (
	"reflect"
	"testing"

	"historyloader/internal/domain/entity"
	"historyloader/internal/domain/users"
)

// TestInsertRequiresExactPrettyNameMatch covers matches()'s nameMatch
// branch: "Alice" and "Alice Smith" are different pretty names, and
// neither side carries a phone the other could match on instead, so
// the two inserts stay separate records rather than merging.
func TestInsertRequiresExactPrettyNameMatch(t *testing.T) {
	t.Parallel()
	r := users.New()
	r.Insert(entity.User{ID: 0, FirstName: "Alice", LastName: "", Phone: "+1"})
	r.Insert(entity.User{ID: 42, FirstName: "Alice", LastName: "Smith"})

	got, ok := r.Get(42)
	if !ok {
		t.Fatalf("expected user 42 to be resolved")
	}
	want := entity.User{ID: 42, FirstName: "Alice", LastName: "Smith"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Get(42) = %#v, want %#v", got, want)
	}

	idless := r.Idless()
	if len(idless) != 1 || idless[0].FirstName != "Alice" || idless[0].Phone != "+1" {
		t.Fatalf("expected the first Alice to remain unmerged and id-less, got %#v", idless)
	}
}

// TestInsertMergesIdlessByExactNameMatch covers the merge path the
// above test falls short of: when the pretty names match exactly, a
// phone carried by only one side is adopted rather than blocking the
// merge.
func TestInsertMergesIdlessByExactNameMatch(t *testing.T) {
	t.Parallel()
	r := users.New()
	r.Insert(entity.User{ID: 0, FirstName: "Alice", LastName: "Smith", Phone: "+1"})
	r.Insert(entity.User{ID: 42, FirstName: "Alice", LastName: "Smith"})

	got, ok := r.Get(42)
	if !ok {
		t.Fatalf("expected user 42 to be resolved")
	}
	want := entity.User{ID: 42, FirstName: "Alice", LastName: "Smith", Phone: "+1"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Get(42) = %#v, want %#v", got, want)
	}
	if len(r.Idless()) != 0 {
		t.Fatalf("expected no id-less users left, got %#v", r.Idless())
	}
}

func TestMergeRules(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name     string
		original entity.User
		new      entity.User
		want     entity.User
	}{
		{
			name:     "original last name wins",
			original: entity.User{ID: 1, FirstName: "A", LastName: "Orig"},
			new:      entity.User{FirstName: "A", LastName: "New"},
			want:     entity.User{ID: 1, FirstName: "A", LastName: "Orig"},
		},
		{
			name:     "new last name used when original has none",
			original: entity.User{ID: 1, FirstName: "A"},
			new:      entity.User{FirstName: "A", LastName: "New"},
			want:     entity.User{ID: 1, FirstName: "A", LastName: "New"},
		},
		{
			name:     "id takes the non-zero side",
			original: entity.User{ID: 0, FirstName: "A"},
			new:      entity.User{ID: 7, FirstName: "A"},
			want:     entity.User{ID: 7, FirstName: "A"},
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := users.Merge(tc.original, tc.new)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Merge() = %#v, want %#v", got, tc.want)
			}
		})
	}
}

// TestInsertCommutative checks L2: insert(a); insert(b) and insert(b);
// insert(a) converge to the same registry contents when neither user
// strictly dominates the other (here: both remain id-less, so either
// one may be the "existing" side the other matches against).
func TestInsertCommutative(t *testing.T) {
	t.Parallel()
	a := entity.User{ID: 0, FirstName: "Bob", Phone: "+2"}
	b := entity.User{ID: 0, FirstName: "Bob"}

	r1 := users.New()
	r1.Insert(a)
	r1.Insert(b)

	r2 := users.New()
	r2.Insert(b)
	r2.Insert(a)

	g1, g2 := r1.Idless(), r2.Idless()
	if len(g1) != 1 || len(g2) != 1 {
		t.Fatalf("expected a single merged idless user in each order, got %#v and %#v", g1, g2)
	}
	if !reflect.DeepEqual(g1[0], g2[0]) {
		t.Fatalf("insert order changed result: %#v vs %#v", g1[0], g2[0])
	}
}
