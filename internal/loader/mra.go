package loader

import (
	"os"
	"path/filepath"
	"strings"

	"historyloader/internal/domain/entity"
	"historyloader/internal/domain/mra"
	"historyloader/internal/domain/users"
	"historyloader/internal/errs"
	"historyloader/internal/infra/logger"
)

// LoadMRAAccount reads every ".db" conversation file plus an optional
// legacy "mra.dbs" store from an account directory, decodes, filters,
// sorts, renders and merges each contact's timeline through the C6
// pipeline, and converges on entity.LoadResult. The account owner
// resolves to entity.MyselfID directly: MRA exports are per-account, so
// there is no ambiguous identity to disambiguate the way a single-chat
// Telegram export has.
func LoadMRAAccount(dir string, datasetUUID string) (entity.LoadResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return entity.LoadResult{}, errs.Wrap(errs.Io, err, "read account directory")
	}

	reg := users.New()
	reg.Insert(entity.User{ID: entity.MyselfID, DatasetUUID: datasetUUID})

	var sources []mra.ConversationSource
	usernameToID := make(map[string]int64)

	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".db" {
			continue
		}
		username := strings.TrimSuffix(e.Name(), ".db")
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return entity.LoadResult{}, errs.Wrapf(errs.Io, err, "read %s", e.Name())
		}
		records, err := mra.DecodeDB(data)
		if err != nil {
			return entity.LoadResult{}, errs.Annotatef(err, "decode %s", e.Name())
		}

		otherID := mra.HashToID(username)
		usernameToID[username] = otherID
		reg.Insert(entity.User{ID: otherID, DatasetUUID: datasetUUID, Username: username})

		sources = append(sources, mra.ConversationSource{
			Username:      username,
			OtherUserID:   otherID,
			ModernRecords: records,
		})
	}

	legacyPath := filepath.Join(dir, "mra.dbs")
	if data, err := os.ReadFile(legacyPath); err == nil {
		convs, err := mra.LoadLegacyDB(data)
		if err != nil {
			return entity.LoadResult{}, errs.Annotate(err, "decode mra.dbs")
		}
		sources = attachLegacyMessages(sources, convs, usernameToID, reg, datasetUUID)
	} else if !os.IsNotExist(err) {
		return entity.LoadResult{}, errs.Wrap(errs.Io, err, "stat mra.dbs")
	}

	resolve := mra.EmailResolver(func(email string) (int64, bool) {
		id, ok := usernameToID[email]
		return id, ok
	})

	account, err := mra.BuildAccount(sources, resolve)
	if err != nil {
		return entity.LoadResult{}, err
	}

	chats, messagesByChat, err := mra.ChatsFromAccount(datasetUUID, account, nil)
	if err != nil {
		return entity.LoadResult{}, err
	}

	reg.DropIdless()

	out := make([]entity.ChatWithMessages, 0, len(chats))
	for _, chat := range chats {
		out = append(out, entity.ChatWithMessages{Chat: chat, Messages: messagesByChat[chat.ID]})
	}

	return entity.LoadResult{
		Dataset: entity.Dataset{UUID: datasetUUID, SourceType: entity.SourceMRA},
		Users:   reg.All(),
		Chats:   out,
	}, nil
}

// attachLegacyMessages matches each legacy mra.dbs conversation to the
// modern per-file contact it belongs to by display name, since the
// legacy format only carries the other party's screen name rather than
// the stable username the modern per-file store keys on. A legacy
// conversation with no matching modern file is registered as its own
// contact under its display name, so history that only exists in the
// old store is not silently dropped. Returns the (possibly extended)
// sources slice; callers must use the returned value, since a
// legacy-only conversation appends a new entry that a void return would
// lose.
func attachLegacyMessages(sources []mra.ConversationSource, convs []mra.LegacyConversationWithMessages, usernameToID map[string]int64, reg *users.Registry, datasetUUID string) []mra.ConversationSource {
	byUsername := make(map[string]int)
	for i, s := range sources {
		byUsername[s.Username] = i
	}

	for _, c := range convs {
		username := matchUsernameByDisplayName(c.Conv.OtherName, usernameToID)
		if username == "" {
			username = c.Conv.OtherName
		}
		if idx, ok := byUsername[username]; ok {
			sources[idx].LegacyMessages = append(sources[idx].LegacyMessages, c.Messages...)
			continue
		}

		otherID, ok := usernameToID[username]
		if !ok {
			otherID = mra.HashToID(username)
			usernameToID[username] = otherID
			reg.Insert(entity.User{ID: otherID, DatasetUUID: datasetUUID, Username: username})
			logger.Throttled("mra: legacy conversation has no matching modern .db file")
		}
		sources = append(sources, mra.ConversationSource{
			Username:       username,
			OtherUserID:    otherID,
			LegacyMessages: c.Messages,
		})
		byUsername[username] = len(sources) - 1
	}
	return sources
}

// matchUsernameByDisplayName finds the modern username whose local part
// (before '@') case-insensitively equals displayName, MRA's closest
// approximation of "the same contact" across the two stores.
func matchUsernameByDisplayName(displayName string, usernameToID map[string]int64) string {
	if displayName == "" {
		return ""
	}
	for username := range usernameToID {
		local := username
		if at := strings.IndexByte(username, '@'); at >= 0 {
			local = username[:at]
		}
		if strings.EqualFold(local, displayName) {
			return username
		}
	}
	return ""
}
