package mra

import (
	"testing"

	"historyloader/internal/domain/entity"
)

func TestHashToIDDeterministicAndNeverMyself(t *testing.T) {
	t.Parallel()
	a := HashToID("alice@mail.ru")
	b := HashToID("alice@mail.ru")
	if a != b {
		t.Fatalf("hashToID not deterministic: %d != %d", a, b)
	}
	if a == entity.MyselfID {
		t.Fatalf("hashToID collided with MyselfID")
	}
}

func TestHashToIDDistinctForDistinctUsernames(t *testing.T) {
	t.Parallel()
	a := HashToID("alice@mail.ru")
	b := HashToID("bob@mail.ru")
	if a == b {
		t.Fatalf("hashToID collided for distinct usernames")
	}
}

func TestChatsFromAccountInfersConferenceByAddress(t *testing.T) {
	t.Parallel()
	result := &AccountResult{
		Messages: map[string][]entity.Message{
			"room@chat.agent": {{FromID: 5, Timestamp: 1}},
		},
		Members: map[string]map[int64]struct{}{
			"room@chat.agent": {entity.MyselfID: {}, 5: {}},
		},
	}
	chats, byChat, err := ChatsFromAccount("ds", result, nil)
	if err != nil {
		t.Fatalf("ChatsFromAccount: %v", err)
	}
	if len(chats) != 1 {
		t.Fatalf("len(chats) = %d, want 1", len(chats))
	}
	if chats[0].Type != entity.ChatPrivateGroup {
		t.Fatalf("Type = %v, want PrivateGroup (chat.agent address)", chats[0].Type)
	}
	if chats[0].MemberIDs[0] != entity.MyselfID {
		t.Fatalf("MemberIDs[0] = %d, want MyselfID first", chats[0].MemberIDs[0])
	}
	if len(byChat[chats[0].ID]) != 1 {
		t.Fatalf("messagesByChat missing entry for chat id %d", chats[0].ID)
	}
}

func TestChatsFromAccountInfersPersonalForTwoMembers(t *testing.T) {
	t.Parallel()
	result := &AccountResult{
		Messages: map[string][]entity.Message{
			"bob@mail.ru": {{FromID: 9, Timestamp: 1}},
		},
		Members: map[string]map[int64]struct{}{
			"bob@mail.ru": {entity.MyselfID: {}, 9: {}},
		},
	}
	chats, _, err := ChatsFromAccount("ds", result, nil)
	if err != nil {
		t.Fatalf("ChatsFromAccount: %v", err)
	}
	if chats[0].Type != entity.ChatPersonal {
		t.Fatalf("Type = %v, want Personal", chats[0].Type)
	}
}
