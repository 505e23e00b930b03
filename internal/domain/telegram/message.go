package telegram

import (
	"time"

	"github.com/go-faster/jx"

	"historyloader/internal/domain/entity"
	"historyloader/internal/domain/richtext"
	"historyloader/internal/domain/users"
	"historyloader/internal/errs"
)

var regularOptionalKeys = []string{
	"date_unixtime", "text_entities", "forwarded_from", "via_bot", "edited",
	"edited_unixtime", "reply_to_message_id", "media_type", "photo", "file",
	"location_information", "poll", "contact_information", "width", "height",
	"mime_type", "duration_seconds", "thumbnail", "sticker_emoji", "title",
	"performer", "place_name", "address", "live_location_period_seconds",
	"contact_vcard",
}

var serviceOptionalKeys = []string{
	"date_unixtime", "text_entities", "edited",
	// per-action fields; permissive since the action catalogue is open-ended.
	"title", "members", "actor", "message_id", "photo", "duration_seconds",
	"discard_reason", "inviter",
}

// parseMessage decodes one message object. ok=false means the message
// was intentionally dropped (e.g. edit_chat_theme); fromID is the
// normalized author id, used by the caller to build chat.member_ids.
func parseMessage(obj rawObject, path string, reg *users.Registry) (msg entity.Message, fromID int64, ok bool, err error) {
	typ, err := strField(obj, "type", path)
	if err != nil {
		return entity.Message{}, 0, false, err
	}

	switch typ {
	case "message":
		return parseRegularMessage(obj, path, reg)
	case "service":
		return parseServiceMessage(obj, path, reg)
	default:
		return entity.Message{}, 0, false, errs.New(errs.UnknownVariant, "%s.type: %q", path, typ)
	}
}

func parseTimestamp(obj rawObject, path string) (int64, error) {
	if obj.has("date_unixtime") {
		return intField(obj, "date_unixtime", path)
	}
	s, err := strField(obj, "date", path)
	if err != nil {
		return 0, err
	}
	t, perr := time.ParseInLocation("2006-01-02T15:04:05", s, time.Local)
	if perr != nil {
		return 0, errs.Wrapf(errs.Encoding, perr, "%s.date", path)
	}
	return t.Unix(), nil
}

func parseRegularMessage(obj rawObject, path string, reg *users.Registry) (entity.Message, int64, bool, error) {
	if err := requireKeys(obj, path,
		[]string{"id", "type", "date", "text", "from", "from_id"},
		regularOptionalKeys,
	); err != nil {
		return entity.Message{}, 0, false, err
	}

	sourceID, err := intField(obj, "id", path)
	if err != nil {
		return entity.Message{}, 0, false, err
	}
	ts, err := parseTimestamp(obj, path)
	if err != nil {
		return entity.Message{}, 0, false, err
	}
	fromName, err := strField(obj, "from", path)
	if err != nil {
		return entity.Message{}, 0, false, err
	}
	rawFromID, _, err := numericOrTaggedID(obj, "from_id", path)
	if err != nil {
		return entity.Message{}, 0, false, err
	}
	fromID := NormalizeUserID(rawFromID)
	reg.Insert(entity.User{ID: fromID, FirstName: fromName})

	runs, err := parseMessageText(obj, path)
	if err != nil {
		return entity.Message{}, 0, false, err
	}

	content, err := classifyContent(obj, path)
	if err != nil {
		return entity.Message{}, 0, false, err
	}

	var editTS int64
	if obj.has("edited_unixtime") {
		editTS, err = intField(obj, "edited_unixtime", path)
		if err != nil {
			return entity.Message{}, 0, false, err
		}
	}

	forwardFrom, err := strField(obj, "forwarded_from", path)
	if err != nil {
		return entity.Message{}, 0, false, err
	}

	var replyTo int64
	hasReply := obj.has("reply_to_message_id")
	if hasReply {
		replyTo, err = intField(obj, "reply_to_message_id", path)
		if err != nil {
			return entity.Message{}, 0, false, err
		}
	}

	msg := entity.Message{
		SourceID:  sourceID,
		Timestamp: ts,
		FromID:    fromID,
		Text:      richtext.Normalize(runs),
		Typed: entity.Regular{
			EditTimestamp:    editTS,
			ForwardFromName:  forwardFrom,
			ReplyToMessageID: replyTo,
			HasReplyTo:       hasReply,
			Content:          content,
		},
	}
	return msg, fromID, true, nil
}

func parseMessageText(obj rawObject, path string) ([]entity.RichTextRun, error) {
	d := obj.dec("text")
	if d == nil {
		return nil, nil
	}
	return richtext.ParseTelegramRichArray(d, path+".text")
}

// classifyContent implements the content discriminator table: exactly
// one of (sticker/animation/video_message/voice_message/file/photo/
// location/poll/contact) combinations is valid; anything else is fatal.
func classifyContent(obj rawObject, path string) (entity.Content, error) {
	mediaType, err := strField(obj, "media_type", path)
	if err != nil {
		return nil, err
	}
	hasPhoto := obj.has("photo")
	hasFile := obj.has("file") && !isDegeneratePath(obj, path)
	hasLoc := obj.has("location_information")
	hasPoll := obj.has("poll")
	hasContact := obj.has("contact_information")

	width, _ := intField(obj, "width", path)
	height, _ := intField(obj, "height", path)
	mime, _ := strField(obj, "mime_type", path)
	dur, _ := intField(obj, "duration_seconds", path)
	thumb, _ := strField(obj, "thumbnail", path)
	filePath, _ := strField(obj, "file", path)

	present := 0
	for _, b := range []bool{hasPhoto, hasFile, hasLoc, hasPoll, hasContact} {
		if b {
			present++
		}
	}
	if present > 1 || (mediaType != "" && !hasFile) {
		return nil, errs.New(errs.UnknownVariant, "%s: ambiguous content tuple", path)
	}

	switch {
	case mediaType == "" && !hasPhoto && !hasFile && !hasLoc && !hasPoll && !hasContact:
		return nil, nil
	case mediaType == "sticker" && hasFile:
		emoji, _ := strField(obj, "sticker_emoji", path)
		return entity.ContentSticker{Path: filePath, Width: int(width), Height: int(height), EmojiText: emoji}, nil
	case mediaType == "animation" && hasFile:
		return entity.ContentAnimation{Path: filePath, Width: int(width), Height: int(height), DurationSec: int(dur), Thumbnail: thumb, MimeType: mime}, nil
	case mediaType == "video_message" && hasFile:
		return entity.ContentVideoMsg{Path: filePath, Width: int(width), Height: int(height), DurationSec: int(dur), Thumbnail: thumb, MimeType: mime}, nil
	case mediaType == "voice_message" && hasFile:
		return entity.ContentVoiceMsg{Path: filePath, DurationSec: int(dur), MimeType: mime}, nil
	case (mediaType == "video_file" || mediaType == "audio_file" || mediaType == "") && hasFile:
		title, _ := strField(obj, "title", path)
		performer, _ := strField(obj, "performer", path)
		return entity.ContentFile{Path: filePath, MimeType: mime, Title: title, Performer: performer, Width: int(width), Height: int(height), DurationSec: int(dur), Thumbnail: thumb}, nil
	case mediaType == "" && hasPhoto && !hasFile:
		photoPath, _ := strField(obj, "photo", path)
		return entity.ContentPhoto{Path: photoPath, Width: int(width), Height: int(height)}, nil
	case hasLoc:
		lat, _ := strField(obj, "location_information", path) // placeholder; real export nests lat/lon as an object
		livePeriod, _ := intField(obj, "live_location_period_seconds", path)
		placeName, _ := strField(obj, "place_name", path)
		address, _ := strField(obj, "address", path)
		return entity.ContentLocation{Lat: lat, PlaceName: placeName, Address: address, LivePeriod: int(livePeriod)}, nil
	case hasPoll:
		question, _ := strField(obj, "poll", path) // placeholder; real export nests a question field
		return entity.ContentPoll{Question: question}, nil
	case hasContact:
		vcard, _ := strField(obj, "contact_vcard", path)
		return entity.ContentSharedContact{Vcard: vcard}, nil
	default:
		return nil, errs.New(errs.UnknownVariant, "%s: ambiguous content tuple", path)
	}
}

// isDegeneratePath reports whether the "file" field is one of the
// export's placeholder strings for unavailable media, which this loader
// treats as an absent path.
func isDegeneratePath(obj rawObject, path string) bool {
	s, _ := strField(obj, "file", path)
	return s == "(File not included. Change data exporting settings to download.)" ||
		s == "(File exceeds maximum size. Change data exporting settings to download.)"
}

func parseServiceMessage(obj rawObject, path string, reg *users.Registry) (entity.Message, int64, bool, error) {
	if err := requireKeys(obj, path,
		[]string{"id", "type", "date", "text", "actor", "actor_id", "action"},
		serviceOptionalKeys,
	); err != nil {
		return entity.Message{}, 0, false, err
	}

	action, err := strField(obj, "action", path)
	if err != nil {
		return entity.Message{}, 0, false, err
	}
	if action == "edit_chat_theme" {
		return entity.Message{}, 0, false, nil
	}

	sourceID, err := intField(obj, "id", path)
	if err != nil {
		return entity.Message{}, 0, false, err
	}
	ts, err := parseTimestamp(obj, path)
	if err != nil {
		return entity.Message{}, 0, false, err
	}
	actorName, err := strField(obj, "actor", path)
	if err != nil {
		return entity.Message{}, 0, false, err
	}
	rawActorID, _, err := numericOrTaggedID(obj, "actor_id", path)
	if err != nil {
		return entity.Message{}, 0, false, err
	}
	actorID := NormalizeUserID(rawActorID)
	reg.Insert(entity.User{ID: actorID, FirstName: actorName})

	runs, err := parseMessageText(obj, path)
	if err != nil {
		return entity.Message{}, 0, false, err
	}

	kind, ok, err := classifyServiceAction(obj, path, action)
	if err != nil {
		return entity.Message{}, 0, false, err
	}
	if !ok {
		return entity.Message{}, 0, false, nil
	}

	msg := entity.Message{
		SourceID:  sourceID,
		Timestamp: ts,
		FromID:    actorID,
		Text:      richtext.Normalize(runs),
		Typed:     entity.Service{Kind: kind},
	}
	return msg, actorID, true, nil
}

// classifyServiceAction maps action to a ServiceKind. Every recognised
// action returns ok=true; an unrecognised one returns ok=false with an
// UnknownVariant error. edit_chat_theme never reaches it: the caller
// skips that action before classifying.
func classifyServiceAction(obj rawObject, path, action string) (entity.ServiceKind, bool, error) {
	title, _ := strField(obj, "title", path)
	msgID, _ := intField(obj, "message_id", path)
	photo, _ := strField(obj, "photo", path)
	members := decodeMemberList(obj, path)

	switch action {
	case "phone_call":
		dur, _ := intField(obj, "duration_seconds", path)
		reason, _ := strField(obj, "discard_reason", path)
		return entity.ServicePhoneCall{DurationSec: dur, DiscardReason: reason}, true, nil
	case "group_call", "invite_to_group_call":
		return entity.ServiceGroupCall{Members: members}, true, nil
	case "pin_message":
		return entity.ServicePinMessage{MessageID: msgID}, true, nil
	case "suggest_profile_photo":
		return entity.ServiceSuggestProfilePhoto{PhotoPath: photo}, true, nil
	case "clear_history":
		return entity.ServiceClearHistory{}, true, nil
	case "create_group":
		return entity.ServiceGroupCreate{Title: title, Members: members}, true, nil
	case "edit_group_photo":
		return entity.ServiceGroupEditPhoto{PhotoPath: photo}, true, nil
	case "delete_group_photo":
		return entity.ServiceGroupDeletePhoto{}, true, nil
	case "edit_group_title":
		return entity.ServiceGroupEditTitle{Title: title}, true, nil
	case "invite_members", "join_group_by_link":
		return entity.ServiceGroupInviteMembers{Members: members}, true, nil
	case "remove_members":
		return entity.ServiceGroupRemoveMembers{Members: members}, true, nil
	case "migrate_from_group":
		return entity.ServiceGroupMigrateFrom{Title: title}, true, nil
	case "migrate_to_supergroup":
		return entity.ServiceGroupMigrateTo{}, true, nil
	default:
		return nil, false, errs.New(errs.UnknownVariant, "%s.action: %q", path, action)
	}
}

func decodeMemberList(obj rawObject, path string) []int64 {
	d := obj.dec("members")
	if d == nil {
		return nil
	}
	var out []int64
	_ = d.Arr(func(d *jx.Decoder) error {
		s, err := d.Str()
		if err != nil {
			return nil
		}
		if id, ok := parseDecimal(s); ok {
			out = append(out, id)
		}
		return nil
	})
	return out
}
