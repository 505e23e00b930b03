package mra

import (
	"fmt"
	"strings"

	"historyloader/internal/domain/entity"
	"historyloader/internal/domain/richtext"
	"historyloader/internal/errs"
	"historyloader/internal/infra/binreader"
)

// EmailResolver looks up the user id a conference message's author_email
// belongs to. A conversation that cannot resolve one (not a conference,
// or the directory has no entry) passes a nil resolver; render falls
// back to the conversation's single other party.
type EmailResolver func(email string) (int64, bool)

func sectionText(r Record, typ MessageSectionType) (string, bool) {
	for _, s := range r.Sections {
		if s.Type == typ {
			text, err := binreader.UTF16LEToString(s.Data)
			if err != nil {
				return "", false
			}
			return text, true
		}
	}
	return "", false
}

func contentSection(r Record) ([]byte, bool) {
	for _, s := range r.Sections {
		if s.Type == SectionContent {
			return s.Data, true
		}
	}
	return nil, false
}

// RenderRecords converts a conversation's filtered, sorted records into
// uniform messages. otherUserID is the user id of the conversation's
// single non-owner party (MRA conversations are per-contact); resolve,
// when non-nil, additionally resolves a conference message's
// author_email to the actual speaker.
func RenderRecords(records []Record, otherUserID int64, resolve EmailResolver) ([]entity.Message, error) {
	var out []entity.Message
	tracker := newCallTracker()

	for _, r := range records {
		msg, err := renderOne(r, otherUserID, resolve)
		if err != nil {
			return nil, errs.Annotatef(err, "mra record at offset 0x%x", r.Offset)
		}
		switch {
		case msg == nil:
			// nothing produced (TypeEmpty)
		case msg.isCallBegin:
			tracker.beginCall(&out, msg.message)
		case msg.isCallEnd:
			if _, err := tracker.endCall(out, msg.message.Timestamp, msg.callEndString); err != nil {
				return nil, errs.Annotatef(err, "mra record at offset 0x%x", r.Offset)
			}
		default:
			out = append(out, msg.message)
		}
		tracker.tick()
	}
	return out, nil
}

type renderedRecord struct {
	message       entity.Message
	isCallBegin   bool
	isCallEnd     bool
	callEndString string
}

func renderOne(r Record, otherUserID int64, resolve EmailResolver) (*renderedRecord, error) {
	if r.Header.Type == TypeEmpty {
		return nil, nil
	}

	fromID := otherUserID
	if !r.Header.Incoming() {
		fromID = entity.MyselfID
	}

	msg := entity.Message{
		SourceID:  int64(r.Offset),
		Timestamp: binreader.FiletimeToUnix(r.Header.Filetime),
		FromID:    fromID,
	}

	switch r.Header.Type {
	case TypeCall, TypeVideoCall:
		body, _ := contentSection(r)
		p, err := decodePayload(r.Header.Type, body)
		if err != nil {
			return nil, err
		}
		switch {
		case isCallBeginString(p.Text):
			return &renderedRecord{message: msg, isCallBegin: true}, nil
		case isCallEndString(p.Text):
			return &renderedRecord{message: msg, isCallEnd: true, callEndString: p.Text}, nil
		default:
			return nil, errs.New(errs.UnknownVariant, "call message: unrecognised string %q", p.Text)
		}

	case TypeConferenceUsersChange:
		body, _ := contentSection(r)
		cc, err := decodeConferenceChange(body)
		if err != nil {
			return nil, err
		}
		kind := conferenceChangeToService(cc, otherUserID, resolve)
		msg.Typed = entity.Service{Kind: kind}
		return &renderedRecord{message: msg}, nil

	case TypeAuthorizationRequest:
		body, _ := contentSection(r)
		p, err := decodePayload(r.Header.Type, body)
		if err != nil {
			return nil, err
		}
		msg.Typed = entity.Service{Kind: entity.ServiceNotice{
			Text: fmt.Sprintf("authorization request from %s: %s", p.AuthorName, p.Text),
		}}
		return &renderedRecord{message: msg}, nil

	case TypeActionNeedsNewerApp:
		msg.Typed = entity.Service{Kind: entity.ServiceNotice{Text: "sender requires a newer client to view this message"}}
		return &renderedRecord{message: msg}, nil

	case TypeLocationChange:
		body, _ := contentSection(r)
		p, err := decodePayload(r.Header.Type, body)
		if err != nil {
			return nil, err
		}
		msg.Typed = entity.Regular{Content: entity.ContentLocation{Lat: p.Lat, Lon: p.Lon, Address: p.Address}}
		return &renderedRecord{message: msg}, nil

	case TypeFileTransfer:
		body, _ := contentSection(r)
		p, err := decodePayload(r.Header.Type, body)
		if err != nil {
			return nil, err
		}
		msg.Typed = entity.Regular{Content: fileContentFromLines(p.Text)}
		return &renderedRecord{message: msg}, nil

	case TypeCartoon, TypeCartoonType2:
		body, _ := contentSection(r)
		p, err := decodePayload(r.Header.Type, body)
		if err != nil {
			return nil, err
		}
		msg.Typed = entity.Regular{Content: entity.ContentSticker{EmojiText: ExtractSmiles(p.Text)}}
		return &renderedRecord{message: msg}, nil

	case TypeRegularRtf:
		body, _ := contentSection(r)
		p, err := decodePayload(r.Header.Type, body)
		if err != nil {
			return nil, err
		}
		runs := richtext.Normalize(richtext.ParseRTF(ExtractSmiles(p.Text)))
		msg.Text = runs
		msg.SearchableString = plainOf(runs)
		msg.Typed = entity.Regular{}
		return &renderedRecord{message: msg}, nil

	case TypeConferenceMessagePlaintext, TypeConferenceMessageRtf:
		body, _ := contentSection(r)
		p, err := decodePayload(r.Header.Type, body)
		if err != nil {
			return nil, err
		}
		if p.AuthorEmail != "" && resolve != nil {
			if id, ok := resolve(p.AuthorEmail); ok {
				msg.FromID = id
			}
		}
		var runs []entity.RichTextRun
		if r.Header.Type == TypeConferenceMessageRtf {
			runs = richtext.ParseRTF(ExtractSmiles(p.Text))
		} else {
			runs = []entity.RichTextRun{richtext.Plain(ExtractSmiles(p.Text))}
		}
		runs = richtext.Normalize(runs)
		msg.Text = runs
		msg.SearchableString = plainOf(runs)
		msg.Typed = entity.Regular{}
		return &renderedRecord{message: msg}, nil

	case TypeMicroblogRecordDirected:
		body, _ := contentSection(r)
		p, err := decodePayload(r.Header.Type, body)
		if err != nil {
			return nil, err
		}
		text := ExtractSmiles(p.Text)
		if p.TargetName != "" {
			text = fmt.Sprintf("@%s %s", p.TargetName, text)
		}
		runs := []entity.RichTextRun{richtext.Plain(text)}
		msg.Text = runs
		msg.SearchableString = text
		msg.Typed = entity.Regular{}
		return &renderedRecord{message: msg}, nil

	case TypeRegularPlaintext, TypeBirthdayReminder, TypeSms, TypeMicroblogRecordBroadcast:
		body, _ := contentSection(r)
		p, err := decodePayload(r.Header.Type, body)
		if err != nil {
			return nil, err
		}
		text := ExtractSmiles(p.Text)
		runs := []entity.RichTextRun{richtext.Plain(text)}
		msg.Text = runs
		msg.SearchableString = text
		msg.Typed = entity.Regular{}
		return &renderedRecord{message: msg}, nil

	default:
		return nil, errs.New(errs.UnknownVariant, "unhandled MRA message type 0x%02x", r.Header.Type)
	}
}

func plainOf(runs []entity.RichTextRun) string {
	var b strings.Builder
	for _, run := range runs {
		if p, ok := run.(entity.RunPlain); ok {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

func fileContentFromLines(text string) entity.Content {
	lines := strings.Split(text, "\n")
	first := strings.TrimSpace(lines[0])
	return entity.ContentFile{Title: stripTrailingSize(first)}
}

// stripTrailingSize removes a trailing " 123456" byte-count suffix that
// the outgoing file-transfer line appends after the filename.
func stripTrailingSize(s string) string {
	idx := strings.LastIndexByte(s, ' ')
	if idx < 0 {
		return s
	}
	suffix := s[idx+1:]
	for _, c := range suffix {
		if c < '0' || c > '9' {
			return s
		}
	}
	if suffix == "" {
		return s
	}
	return strings.TrimSpace(s[:idx])
}

func conferenceChangeToService(cc ConferenceChange, otherUserID int64, resolve EmailResolver) entity.ServiceKind {
	members := resolveConferenceMembers(cc, otherUserID, resolve)
	if cc.Type == ConferenceJoined {
		return entity.ServiceGroupInviteMembers{Members: members}
	}
	return entity.ServiceGroupRemoveMembers{Members: members}
}

func resolveConferenceMembers(cc ConferenceChange, otherUserID int64, resolve EmailResolver) []int64 {
	if resolve == nil {
		return []int64{otherUserID}
	}
	var ids []int64
	for _, email := range cc.Emails {
		if id, ok := resolve(email); ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return []int64{otherUserID}
	}
	return ids
}
