package telegram

import (
	"sort"

	"github.com/go-faster/jx"

	"historyloader/internal/domain/entity"
	"historyloader/internal/domain/users"
	"historyloader/internal/errs"
	"historyloader/internal/infra/logger"
)

// ChooseMyselfFunc is the synchronous external disambiguation service a
// single-chat export needs once parsing finishes: given the users
// collected so far, it returns the index of the account owner.
// LoadSingleChat validates the returned index: a negative one fails with
// MyselfChoiceAborted, one past the candidate list with
// MyselfChoiceOutOfRange. A chooser error keeps its own kind, or becomes
// MyselfChoiceAborted when it carries none.
type ChooseMyselfFunc func(candidates []entity.User) (int, error)

var fullExportTopKeys = []string{
	"about", "profile_pictures", "frequent_contacts", "other_data", "stories",
	"sessions", "web_sessions", "contacts", "personal_information", "chats",
	"left_chats",
}

// LoadFullExport parses a full Telegram export root object.
func LoadFullExport(root rawObject, datasetUUID string) (entity.LoadResult, error) {
	if err := requireKeys(root, "$", nil, fullExportTopKeys); err != nil {
		return entity.LoadResult{}, err
	}

	reg := users.New()

	var ownerRealID int64
	haveOwner := false
	if root.has("personal_information") {
		pi, err := decodeObject(root.dec("personal_information"), "$.personal_information")
		if err != nil {
			return entity.LoadResult{}, err
		}
		myself, err := parsePersonalInformation(pi, "$.personal_information")
		if err != nil {
			return entity.LoadResult{}, err
		}
		if myself.ID == 0 {
			return entity.LoadResult{}, errs.New(errs.ConsistencyError, "$.personal_information: myself user id must be non-zero")
		}
		ownerRealID, haveOwner = myself.ID, true
		myself.ID = entity.MyselfID
		reg.Insert(myself)
	}

	if root.has("contacts") {
		contacts, err := decodeObject(root.dec("contacts"), "$.contacts")
		if err != nil {
			return entity.LoadResult{}, err
		}
		if err := requireKeys(contacts, "$.contacts", nil, []string{"about", "list"}); err != nil {
			return entity.LoadResult{}, err
		}
		if contacts.has("list") {
			if err := parseContactsList(contacts.dec("list"), "$.contacts.list", reg); err != nil {
				return entity.LoadResult{}, err
			}
		}
	}

	var chats []entity.ChatWithMessages
	if root.has("chats") {
		chatsObj, err := decodeObject(root.dec("chats"), "$.chats")
		if err != nil {
			return entity.LoadResult{}, err
		}
		if err := requireKeys(chatsObj, "$.chats", nil, []string{"about", "list"}); err != nil {
			return entity.LoadResult{}, err
		}
		if chatsObj.has("list") {
			chats, err = parseChatsList(chatsObj.dec("list"), "$.chats.list", datasetUUID, reg)
			if err != nil {
				return entity.LoadResult{}, err
			}
		}
	}
	// left_chats is explicitly ignored per the export schema.

	if haveOwner {
		remapOwnerID(chats, ownerRealID)
	}

	reg.DropIdless()
	if err := checkMemberResolution(chats, reg); err != nil {
		return entity.LoadResult{}, err
	}

	return entity.LoadResult{
		Dataset: entity.Dataset{UUID: datasetUUID, SourceType: entity.SourceTelegram},
		Users:   reg.All(),
		Chats:   chats,
	}, nil
}

func parsePersonalInformation(obj rawObject, path string) (entity.User, error) {
	first, err := strField(obj, "first_name", path)
	if err != nil {
		return entity.User{}, err
	}
	last, err := strField(obj, "last_name", path)
	if err != nil {
		return entity.User{}, err
	}
	username, err := strField(obj, "username", path)
	if err != nil {
		return entity.User{}, err
	}
	phone, err := strField(obj, "phone_number", path)
	if err != nil {
		return entity.User{}, err
	}
	rawID, err := intField(obj, "user_id", path)
	if err != nil {
		return entity.User{}, err
	}
	return entity.User{ID: rawID, FirstName: first, LastName: last, Username: username, Phone: phone}, nil
}

func parseContactsList(dec *jx.Decoder, path string, reg *users.Registry) error {
	idx := 0
	return dec.Arr(func(d *jx.Decoder) error {
		elemPath := path + "[" + itoa(idx) + "]"
		idx++
		obj, err := decodeObject(d, elemPath)
		if err != nil {
			return err
		}
		first, err := strField(obj, "first_name", elemPath)
		if err != nil {
			return err
		}
		last, err := strField(obj, "last_name", elemPath)
		if err != nil {
			return err
		}
		phone, err := strField(obj, "phone_number", elemPath)
		if err != nil {
			return err
		}
		reg.Insert(entity.User{FirstName: first, LastName: last, Phone: phone})
		return nil
	})
}

func parseChatsList(dec *jx.Decoder, path, datasetUUID string, reg *users.Registry) ([]entity.ChatWithMessages, error) {
	var out []entity.ChatWithMessages
	idx := 0
	err := dec.Arr(func(d *jx.Decoder) error {
		elemPath := path + "[" + itoa(idx) + "]"
		idx++
		obj, err := decodeObject(d, elemPath)
		if err != nil {
			return err
		}
		chat, msgs, err := ParseChat(obj, elemPath, datasetUUID, reg)
		if err != nil {
			return err
		}
		if chat == nil {
			return nil
		}
		out = append(out, entity.ChatWithMessages{Chat: *chat, Messages: msgs})
		return nil
	})
	return out, err
}

// LoadSingleChat parses a single-chat export root object and invokes
// chooseMyself to disambiguate the account owner among the users the
// chat mentions.
func LoadSingleChat(root rawObject, datasetUUID string, chooseMyself ChooseMyselfFunc) (entity.LoadResult, error) {
	reg := users.New()
	chat, msgs, err := ParseChat(root, "$", datasetUUID, reg)
	if err != nil {
		return entity.LoadResult{}, err
	}
	if chat == nil {
		return entity.LoadResult{}, errs.New(errs.ConsistencyError, "$: chat type is not loadable")
	}

	candidates := reg.All()
	idx, err := chooseMyself(candidates)
	if err != nil {
		if errs.KindOf(err) != errs.Unknown {
			return entity.LoadResult{}, errs.Annotate(err, "myself chooser")
		}
		return entity.LoadResult{}, errs.Wrap(errs.MyselfChoiceAborted, err, "myself chooser")
	}
	if idx < 0 {
		return entity.LoadResult{}, errs.New(errs.MyselfChoiceAborted, "myself chooser returned negative index %d", idx)
	}
	if idx >= len(candidates) {
		return entity.LoadResult{}, errs.New(errs.MyselfChoiceOutOfRange, "myself chooser index %d out of range [0,%d)", idx, len(candidates))
	}
	myself := candidates[idx]
	oldID := myself.ID
	myself.ID = entity.MyselfID
	reg2 := users.New()
	for _, u := range candidates {
		if u.ID == oldID {
			reg2.Insert(myself)
			continue
		}
		reg2.Insert(u)
	}

	for i, m := range chat.MemberIDs {
		if m == oldID {
			chat.MemberIDs[i] = entity.MyselfID
		}
	}
	for i := range msgs {
		if msgs[i].FromID == oldID {
			msgs[i].FromID = entity.MyselfID
		}
	}
	sortMembersMyselfFirst(chat.MemberIDs)

	logger.Info("resolved myself identity for single-chat export")

	if err := checkMemberResolution([]entity.ChatWithMessages{{Chat: *chat, Messages: msgs}}, reg2); err != nil {
		return entity.LoadResult{}, err
	}

	return entity.LoadResult{
		Dataset: entity.Dataset{UUID: datasetUUID, SourceType: entity.SourceTelegram},
		Users:   reg2.All(),
		Chats:   []entity.ChatWithMessages{{Chat: *chat, Messages: msgs}},
	}, nil
}

// remapOwnerID rewrites every occurrence of the account owner's real
// (normalized) id to entity.MyselfID across chats' messages and
// MemberIDs, mirroring the remap LoadSingleChat performs after its
// chooseMyself callback resolves the same identity. Full-export roots
// already know the owner's id from personal_information, so this runs
// unconditionally rather than waiting on an external disambiguation
// step, but the effect — every from_id/member_id belonging to the
// account owner collapses onto MyselfID — is identical.
func remapOwnerID(chats []entity.ChatWithMessages, ownerRealID int64) {
	for i := range chats {
		for j, m := range chats[i].Chat.MemberIDs {
			if m == ownerRealID {
				chats[i].Chat.MemberIDs[j] = entity.MyselfID
			}
		}
		for j := range chats[i].Messages {
			if chats[i].Messages[j].FromID == ownerRealID {
				chats[i].Messages[j].FromID = entity.MyselfID
			}
		}
		sortMembersMyselfFirst(chats[i].Chat.MemberIDs)
	}
}

func sortMembersMyselfFirst(ids []int64) {
	hasMyself := false
	var rest []int64
	for _, id := range ids {
		if id == entity.MyselfID {
			hasMyself = true
			continue
		}
		rest = append(rest, id)
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })
	out := rest
	if hasMyself {
		out = append([]int64{entity.MyselfID}, rest...)
	}
	copy(ids, out)
}

func checkMemberResolution(chats []entity.ChatWithMessages, reg *users.Registry) error {
	for _, c := range chats {
		for _, id := range c.Chat.MemberIDs {
			if _, ok := reg.Get(id); !ok {
				return errs.New(errs.ConsistencyError, "chat %d: member %d does not resolve to a user", c.Chat.ID, id)
			}
		}
		for _, m := range c.Messages {
			if _, ok := reg.Get(m.FromID); !ok {
				return errs.New(errs.ConsistencyError, "chat %d: message from_id %d does not resolve to a user", c.Chat.ID, m.FromID)
			}
		}
	}
	return nil
}
