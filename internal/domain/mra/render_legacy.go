package mra

import (
	"fmt"

	"historyloader/internal/domain/entity"
	"historyloader/internal/domain/richtext"
	"historyloader/internal/errs"
	"historyloader/internal/infra/binreader"
)

// RenderLegacyMessages converts one mra.dbs conversation's messages
// (already extracted to Offset/Header/Author/Text/Payload form) into
// uniform messages, sorted ascending by filetime. Unlike the modern
// format, legacy messages carry no next_message_addr, so same-filetime
// ties keep their linked-list traversal order.
func RenderLegacyMessages(msgs []LegacyMessage, otherUserID int64, resolve EmailResolver) ([]entity.Message, error) {
	sorted := make([]LegacyMessage, len(msgs))
	copy(sorted, msgs)
	for i := 1; i < len(sorted); i++ {
		j := i
		for j > 0 && sorted[j-1].Header.Filetime > sorted[j].Header.Filetime {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
			j--
		}
	}

	var out []entity.Message
	tracker := newCallTracker()
	for _, m := range sorted {
		rendered, err := renderLegacyOne(m, otherUserID, resolve)
		if err != nil {
			return nil, errs.Annotatef(err, "legacy mra message at offset %#x", m.Offset)
		}
		switch {
		case rendered == nil:
		case rendered.isCallBegin:
			tracker.beginCall(&out, rendered.message)
		case rendered.isCallEnd:
			if _, err := tracker.endCall(out, rendered.message.Timestamp, rendered.callEndString); err != nil {
				return nil, errs.Annotatef(err, "legacy mra message at offset %#x", m.Offset)
			}
		default:
			out = append(out, rendered.message)
		}
		tracker.tick()
	}
	return out, nil
}

func renderLegacyOne(m LegacyMessage, otherUserID int64, resolve EmailResolver) (*renderedRecord, error) {
	if m.Header.Type == TypeEmpty {
		return nil, nil
	}

	fromID := otherUserID
	if !m.Header.Incoming() {
		fromID = entity.MyselfID
	}
	msg := entity.Message{
		SourceID:  int64(m.Offset),
		Timestamp: binreader.FiletimeToUnix(m.Header.Filetime),
		FromID:    fromID,
	}

	text := ExtractSmiles(m.Text)

	switch m.Header.Type {
	case TypeCall, TypeVideoCall:
		switch {
		case isCallBeginString(m.Text):
			return &renderedRecord{message: msg, isCallBegin: true}, nil
		case isCallEndString(m.Text):
			return &renderedRecord{message: msg, isCallEnd: true, callEndString: m.Text}, nil
		default:
			return nil, errs.New(errs.UnknownVariant, "call message: unrecognised string %q", m.Text)
		}

	case TypeConferenceUsersChange:
		cc, err := decodeConferenceChange(m.Payload)
		if err != nil {
			return nil, err
		}
		msg.Typed = entity.Service{Kind: conferenceChangeToService(cc, otherUserID, resolve)}
		return &renderedRecord{message: msg}, nil

	case TypeAuthorizationRequest:
		msg.Typed = entity.Service{Kind: entity.ServiceNotice{
			Text: fmt.Sprintf("authorization request from %s: %s", m.Author, text),
		}}
		return &renderedRecord{message: msg}, nil

	case TypeActionNeedsNewerApp:
		msg.Typed = entity.Service{Kind: entity.ServiceNotice{Text: "sender requires a newer client to view this message"}}
		return &renderedRecord{message: msg}, nil

	case TypeLocationChange:
		// Payload is [name][lat][lon], each a u32-length-prefixed UTF-8
		// chunk; name duplicates the message text and is only skipped.
		_, rest, err := binreader.NextSizedChunk(m.Payload)
		if err != nil {
			return nil, errs.Annotate(err, "legacy location change payload: name")
		}
		latBytes, rest, err := binreader.NextSizedChunk(rest)
		if err != nil {
			return nil, errs.Annotate(err, "legacy location change payload: latitude")
		}
		lonBytes, _, err := binreader.NextSizedChunk(rest)
		if err != nil {
			return nil, errs.Annotate(err, "legacy location change payload: longitude")
		}
		msg.Typed = entity.Regular{Content: entity.ContentLocation{Address: text, Lat: string(latBytes), Lon: string(lonBytes)}}
		return &renderedRecord{message: msg}, nil

	case TypeFileTransfer:
		msg.Typed = entity.Regular{Content: fileContentFromLines(text)}
		return &renderedRecord{message: msg}, nil

	case TypeCartoon, TypeCartoonType2:
		msg.Typed = entity.Regular{Content: entity.ContentSticker{EmojiText: text}}
		return &renderedRecord{message: msg}, nil

	case TypeRegularRtf, TypeConferenceMessageRtf:
		runs := richtext.Normalize(richtext.ParseRTF(text))
		msg.Text = runs
		msg.SearchableString = plainOf(runs)
		msg.Typed = entity.Regular{}
		if m.Header.Type == TypeConferenceMessageRtf && resolve != nil {
			if id, ok := resolve(m.Author); ok {
				msg.FromID = id
			}
		}
		return &renderedRecord{message: msg}, nil

	default:
		runs := []entity.RichTextRun{richtext.Plain(text)}
		msg.Text = runs
		msg.SearchableString = text
		msg.Typed = entity.Regular{}
		if m.Header.Type == TypeConferenceMessagePlaintext && resolve != nil {
			if id, ok := resolve(m.Author); ok {
				msg.FromID = id
			}
		}
		return &renderedRecord{message: msg}, nil
	}
}
