package mra

import (
	"hash/fnv"
	"sort"
	"strings"

	"historyloader/internal/domain/entity"
	"historyloader/internal/errs"
)

// ConversationSource is one contact's raw input for the conversation
// pipeline: the concatenated modern .db records already decoded by
// DecodeDB, plus that same contact's slice of legacy
// mra.dbs messages when the account also carries the older store.
type ConversationSource struct {
	Username       string
	OtherUserID    int64
	ModernRecords  []Record
	LegacyMessages []LegacyMessage
}

// HashToID turns an MRA username (or *@chat.agent conference name) into
// a stable, non-cryptographic chat id. FNV-1a is deterministic across
// runs and platforms, which is all this needs; collisions across a
// single account's handful of contacts are not a practical concern.
// The reserved MyselfID is never returned.
func HashToID(username string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(username))
	id := int64(h.Sum64() & 0x7fffffffffffffff)
	if id == entity.MyselfID {
		id++
	}
	if id == 0 {
		id = 1 << 32
	}
	return id
}

func isConferenceUsername(username string) bool {
	return strings.HasSuffix(username, "@chat.agent")
}

// BuildConversation runs one contact's modern and legacy snapshots
// through the filter/sort/render/merge stages and returns its finished
// message timeline plus the set of user ids that authored something in
// it. Legacy messages, when present, are treated as the older snapshot:
// the modern store is expected to be the export taken most recently.
func BuildConversation(src ConversationSource, resolve EmailResolver) ([]entity.Message, map[int64]struct{}, error) {
	filtered := RemoveBadMessages(src.ModernRecords)
	sorted, err := SortMessages(filtered)
	if err != nil {
		return nil, nil, errs.Annotatef(err, "conversation %q: sort_messages", src.Username)
	}
	deduped := RemoveDuplicates(sorted)
	modern, err := RenderRecords(deduped, src.OtherUserID, resolve)
	if err != nil {
		return nil, nil, errs.Annotatef(err, "conversation %q: render", src.Username)
	}

	var legacy []entity.Message
	if len(src.LegacyMessages) > 0 {
		legacy, err = RenderLegacyMessages(src.LegacyMessages, src.OtherUserID, resolve)
		if err != nil {
			return nil, nil, errs.Annotatef(err, "conversation %q: render legacy", src.Username)
		}
	}

	merged := MergeSnapshots(legacy, modern)

	members := map[int64]struct{}{entity.MyselfID: {}}
	for _, m := range merged {
		members[m.FromID] = struct{}{}
	}
	return merged, members, nil
}

// AccountResult is one account directory's fully built conversations,
// keyed by username, ready to be turned into entity.Chat values.
type AccountResult struct {
	Messages map[string][]entity.Message
	Members  map[string]map[int64]struct{}
}

// BuildAccount drives BuildConversation over every contact in an
// account directory. Errors from one contact abort the whole account,
// matching the core's all-or-nothing load semantics (§5).
func BuildAccount(sources []ConversationSource, resolve EmailResolver) (*AccountResult, error) {
	result := &AccountResult{
		Messages: make(map[string][]entity.Message, len(sources)),
		Members:  make(map[string]map[int64]struct{}, len(sources)),
	}
	for _, src := range sources {
		messages, members, err := BuildConversation(src, resolve)
		if err != nil {
			return nil, err
		}
		result.Messages[src.Username] = messages
		result.Members[src.Username] = members
	}
	return result, nil
}

// ChatsFromAccount turns a built account's per-username conversations
// into entity.Chat + []entity.Message pairs, inferring chat type and
// stamping dense internal ids over each chat's final timeline.
func ChatsFromAccount(datasetUUID string, result *AccountResult, displayName func(username string) string) ([]entity.Chat, map[int64][]entity.Message, error) {
	chats := make([]entity.Chat, 0, len(result.Messages))
	messagesByChat := make(map[int64][]entity.Message, len(result.Messages))

	usernames := make([]string, 0, len(result.Messages))
	for username := range result.Messages {
		usernames = append(usernames, username)
	}
	sort.Strings(usernames)

	for _, username := range usernames {
		messages := result.Messages[username]
		members := result.Members[username]

		memberIDs := make([]int64, 0, len(members))
		for id := range members {
			if id != entity.MyselfID {
				memberIDs = append(memberIDs, id)
			}
		}
		sort.Slice(memberIDs, func(i, j int) bool { return memberIDs[i] < memberIDs[j] })
		memberIDs = append([]int64{entity.MyselfID}, memberIDs...)

		chatType := entity.ChatPersonal
		if isConferenceUsername(username) || len(memberIDs) > 2 {
			chatType = entity.ChatPrivateGroup
		}

		for i := range messages {
			messages[i].InternalID = int64(i)
		}

		id := HashToID(username)
		name := username
		if displayName != nil {
			if n := displayName(username); n != "" {
				name = n
			}
		}

		chats = append(chats, entity.Chat{
			DatasetUUID: datasetUUID,
			ID:          id,
			Name:        name,
			SourceType:  entity.SourceMRA,
			Type:        chatType,
			MemberIDs:   memberIDs,
			MsgCount:    len(messages),
		})
		messagesByChat[id] = messages
	}
	return chats, messagesByChat, nil
}
