// Package users implements the per-dataset user registry (C3): a map
// from user id to User plus a side list of id-less users awaiting a
// merge match, with insert/merge semantics grounded on the original
// loader's Users struct (id_to_user + pretty_name_to_idless_users).
package users

import (
	"strings"

	"go.uber.org/zap"

	"historyloader/internal/domain/entity"
	"historyloader/internal/infra/logger"
)

// idlessEntry pairs an id-less user with the pretty name it was inserted
// under, mirroring the original's Vec<(String, User)> side table.
type idlessEntry struct {
	prettyName string
	user       entity.User
}

// Registry is a single dataset's user table. Not safe for concurrent use;
// each loader pipeline owns one registry for the lifetime of a load.
type Registry struct {
	byID   map[int64]entity.User
	idless []idlessEntry
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{byID: make(map[int64]entity.User)}
}

// PrettyName renders the display name used to match id-less users:
// "first last" trimmed, with the separating space dropped when either
// half is empty.
func PrettyName(u entity.User) string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Insert adds new, merging it into a matching id-less entry first (by
// pretty name or phone, when neither contradicts the other), then
// recording the result by id if positive, or appending it to the id-less
// list otherwise. Mirrors the original Users::insert control flow.
func (r *Registry) Insert(new entity.User) {
	name := PrettyName(new)

	for i, e := range r.idless {
		if !matches(e.user, new, e.prettyName, name) {
			continue
		}
		merged := Merge(e.user, new)
		r.idless = append(r.idless[:i], r.idless[i+1:]...)
		r.insertResolved(merged)
		return
	}

	r.insertResolved(new)
}

// insertResolved places u by id if it now carries one, or files it under
// the id-less list keyed by its pretty name.
func (r *Registry) insertResolved(u entity.User) {
	if u.ID > 0 {
		r.byID[u.ID] = u
		return
	}
	r.idless = append(r.idless, idlessEntry{prettyName: PrettyName(u), user: u})
}

// matches decides whether an existing id-less user (existing, under
// existingName) is the same person as candidate (under candidateName):
// a non-empty pretty-name match with non-contradictory phones, or a
// phone match with non-contradictory names.
func matches(existing, candidate entity.User, existingName, candidateName string) bool {
	nameMatch := existingName != "" && existingName == candidateName &&
		!phonesContradict(existing, candidate)
	phoneMatch := existing.Phone != "" && existing.Phone == candidate.Phone &&
		!namesContradict(existing, candidate)
	return nameMatch || phoneMatch
}

func phonesContradict(a, b entity.User) bool {
	return a.Phone != "" && b.Phone != "" && a.Phone != b.Phone
}

func namesContradict(a, b entity.User) bool {
	aName, bName := PrettyName(a), PrettyName(b)
	return aName != "" && bName != "" && aName != bName
}

// Merge combines original and new per the field-by-field rules: names
// come from whichever side has a non-empty last name (original wins
// ties), dataset/phone/username prefer original with new as fallback,
// and id takes whichever side is non-zero.
func Merge(original, new entity.User) entity.User {
	out := original

	switch {
	case original.LastName != "":
		out.FirstName, out.LastName = original.FirstName, original.LastName
	case new.LastName != "":
		out.FirstName, out.LastName = new.FirstName, new.LastName
	default:
		out.FirstName = firstNonEmpty(original.FirstName, new.FirstName)
		out.LastName = firstNonEmpty(original.LastName, new.LastName)
	}

	out.DatasetUUID = firstNonEmpty(original.DatasetUUID, new.DatasetUUID)
	out.Phone = firstNonEmpty(original.Phone, new.Phone)
	out.Username = firstNonEmpty(original.Username, new.Username)

	if original.ID != 0 {
		out.ID = original.ID
	} else {
		out.ID = new.ID
	}
	return out
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// Get returns the user for id and whether it was found.
func (r *Registry) Get(id int64) (entity.User, bool) {
	u, ok := r.byID[id]
	return u, ok
}

// Idless returns the users still awaiting an identity match, in
// insertion order. Useful for diagnostics before DropIdless discards
// them.
func (r *Registry) Idless() []entity.User {
	out := make([]entity.User, len(r.idless))
	for i, e := range r.idless {
		out[i] = e.user
	}
	return out
}

// All returns every resolved (positive-id) user, in unspecified order.
func (r *Registry) All() []entity.User {
	out := make([]entity.User, 0, len(r.byID))
	for _, u := range r.byID {
		out = append(out, u)
	}
	return out
}

// DropIdless logs a warning for every user that never resolved to a
// positive id and discards them. Called once, at the end of a load.
func (r *Registry) DropIdless() {
	for _, e := range r.idless {
		logger.Warn("dropping id-less user with no identity match",
			zap.String("pretty_name", e.prettyName))
	}
	r.idless = nil
}
