package telegram

import (
	"sort"

	"github.com/go-faster/jx"

	"historyloader/internal/domain/entity"
	"historyloader/internal/domain/users"
	"historyloader/internal/errs"
)

// chatTypeOf maps the export's chat "type" field to this module's
// ChatType, or reports skip=true for chat kinds the core intentionally
// ignores.
func chatTypeOf(raw string) (typ entity.ChatType, skip bool) {
	switch raw {
	case "personal_chat":
		return entity.ChatPersonal, false
	case "private_group", "private_supergroup":
		return entity.ChatPrivateGroup, false
	case "saved_messages", "private_channel":
		return "", true
	default:
		return "", true
	}
}

// ParseChat decodes one chat object (as it appears either at the root of
// a single-chat export or as an element of chats.list in a full export).
// It returns nil, nil, nil when the chat kind is one the core skips.
// Encountered participants are upserted into reg by id and display name.
func ParseChat(obj rawObject, path string, datasetUUID string, reg *users.Registry) (*entity.Chat, []entity.Message, error) {
	if err := requireKeys(obj, path, []string{"name", "type", "id", "messages"}, nil); err != nil {
		return nil, nil, err
	}

	rawType, err := strField(obj, "type", path)
	if err != nil {
		return nil, nil, err
	}
	chatType, skip := chatTypeOf(rawType)
	if skip {
		return nil, nil, nil
	}

	name, err := strField(obj, "name", path)
	if err != nil {
		return nil, nil, err
	}
	rawID, err := intField(obj, "id", path)
	if err != nil {
		return nil, nil, err
	}

	var chatID int64
	switch chatType {
	case entity.ChatPersonal:
		chatID = NormalizePersonalChatID(rawID)
	case entity.ChatPrivateGroup:
		chatID = NormalizeGroupChatID(rawID)
	}

	msgsDec := obj.dec("messages")
	if msgsDec == nil {
		return nil, nil, errs.New(errs.UnknownKey, "%s.messages: missing", path)
	}

	var messages []entity.Message
	memberSet := make(map[int64]struct{})
	idx := 0
	err = msgsDec.Arr(func(d *jx.Decoder) error {
		msgPath := path + ".messages[" + itoa(idx) + "]"
		idx++
		mobj, err := decodeObject(d, msgPath)
		if err != nil {
			return err
		}
		msg, fromID, ok, err := parseMessage(mobj, msgPath, reg)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if fromID != 0 {
			memberSet[fromID] = struct{}{}
		}
		messages = append(messages, msg)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Timestamp < messages[j].Timestamp
	})
	for i := range messages {
		messages[i].InternalID = int64(i)
	}

	members := make([]int64, 0, len(memberSet))
	haveMyself := false
	for id := range memberSet {
		if id == entity.MyselfID {
			haveMyself = true
			continue
		}
		members = append(members, id)
	}
	sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
	if haveMyself {
		members = append([]int64{entity.MyselfID}, members...)
	}

	chat := &entity.Chat{
		DatasetUUID: datasetUUID,
		ID:          chatID,
		Name:        name,
		SourceType:  entity.SourceTelegram,
		Type:        chatType,
		MemberIDs:   members,
		MsgCount:    len(messages),
	}
	return chat, messages, nil
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	return string(buf[pos:])
}
