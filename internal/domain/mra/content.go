package mra

import (
	"historyloader/internal/errs"
	"historyloader/internal/infra/binreader"
)

// payload is the decoded Content section body for one message, fields
// populated according to the message's MraMessageType. Every field not
// relevant to a given type is left zero.
type payload struct {
	Text         string
	TargetName   string
	AuthorEmail  string
	AuthorName   string
	Colour       uint32
	HasColour    bool
	Lat, Lon     string
	Address      string
}

// decodeUTF16Field reads a u32-length-prefixed UTF-16LE string, the
// shape shared by every textual payload field in this format.
func decodeUTF16Field(bs []byte) (string, []byte, error) {
	chunk, rest, err := binreader.NextSizedChunk(bs)
	if err != nil {
		return "", nil, err
	}
	s, err := binreader.UTF16LEToString(chunk)
	if err != nil {
		return "", nil, err
	}
	return s, rest, nil
}

// decodePayload decodes a message's Content section bytes according to
// its message type, per the type→payload-shape table.
func decodePayload(typ MraMessageType, data []byte) (payload, error) {
	switch typ {
	case TypeRegularPlaintext, TypeCall, TypeBirthdayReminder, TypeSms,
		TypeCartoon, TypeCartoonType2, TypeVideoCall, TypeFileTransfer:
		text, _, err := decodeUTF16Field(data)
		if err != nil {
			return payload{}, errs.Annotate(err, "plaintext-shaped content payload")
		}
		return payload{Text: text}, nil

	case TypeRegularRtf, TypeMicroblogRecordBroadcast:
		text, rest, err := decodeUTF16Field(data)
		if err != nil {
			return payload{}, errs.Annotate(err, "rtf-shaped content payload")
		}
		p := payload{Text: text}
		if len(rest) >= 4 {
			colour, _, err := binreader.NextU32(rest)
			if err != nil {
				return payload{}, errs.Annotate(err, "rtf-shaped content payload: colour")
			}
			p.Colour, p.HasColour = colour, true
		}
		return p, nil

	case TypeMicroblogRecordDirected:
		text, rest, err := decodeUTF16Field(data)
		if err != nil {
			return payload{}, errs.Annotate(err, "microblog-directed payload: text")
		}
		target, rest2, err := decodeUTF16Field(rest)
		if err != nil {
			return payload{}, errs.Annotate(err, "microblog-directed payload: target_name")
		}
		_ = rest2 // trailing 8 bytes are unused by the uniform model
		return payload{Text: text, TargetName: target}, nil

	case TypeConferenceMessagePlaintext:
		text, rest, err := decodeUTF16Field(data)
		if err != nil {
			return payload{}, errs.Annotate(err, "conference plaintext payload: text")
		}
		p := payload{Text: text}
		if len(rest) > 0 {
			authorBytes, _, err := binreader.NextSizedChunk(rest)
			if err != nil {
				return payload{}, errs.Annotate(err, "conference plaintext payload: author")
			}
			p.AuthorEmail = string(authorBytes)
		}
		return p, nil

	case TypeConferenceMessageRtf:
		text, rest, err := decodeUTF16Field(data)
		if err != nil {
			return payload{}, errs.Annotate(err, "conference rtf payload: text")
		}
		p := payload{Text: text}
		if len(rest) >= 4 {
			colour, tail, err := binreader.NextU32(rest)
			if err != nil {
				return payload{}, errs.Annotate(err, "conference rtf payload: colour")
			}
			p.Colour, p.HasColour = colour, true
			if len(tail) > 0 {
				authorBytes, _, err := binreader.NextSizedChunk(tail)
				if err != nil {
					return payload{}, errs.Annotate(err, "conference rtf payload: author")
				}
				p.AuthorEmail = string(authorBytes)
			}
		}
		return p, nil

	case TypeAuthorizationRequest:
		author, rest, err := decodeUTF16Field(data)
		if err != nil {
			return payload{}, errs.Annotate(err, "authorization request payload: author_username")
		}
		text, _, err := decodeUTF16Field(rest)
		if err != nil {
			return payload{}, errs.Annotate(err, "authorization request payload: text")
		}
		return payload{AuthorName: author, Text: text}, nil

	case TypeLocationChange:
		address, rest, err := decodeUTF16Field(data)
		if err != nil {
			return payload{}, errs.Annotate(err, "location change payload: address")
		}
		latBytes, rest, err := binreader.NextSizedChunk(rest)
		if err != nil {
			return payload{}, errs.Annotate(err, "location change payload: latitude")
		}
		lonBytes, _, err := binreader.NextSizedChunk(rest)
		if err != nil {
			return payload{}, errs.Annotate(err, "location change payload: longitude")
		}
		return payload{Address: address, Lat: string(latBytes), Lon: string(lonBytes)}, nil

	case TypeActionNeedsNewerApp, TypeEmpty:
		return payload{}, nil

	default:
		return payload{}, errs.New(errs.UnknownVariant, "content payload: unhandled message type 0x%02x", typ)
	}
}

// ConferenceChangeType tags a ConferenceUsersChange payload's shape.
type ConferenceChangeType uint32

const (
	ConferenceJoined ConferenceChangeType = 0x03
	ConferenceLeft   ConferenceChangeType = 0x05
)

// ConferenceChange is the decoded ConferenceUsersChange payload, which
// (unusually) occupies the whole message body rather than a Content
// section.
type ConferenceChange struct {
	Type    ConferenceChangeType
	Inviter string
	Names   []string
	Emails  []string
}

func decodeConferenceChange(data []byte) (ConferenceChange, error) {
	typ, rest, err := binreader.NextU32(data)
	if err != nil {
		return ConferenceChange{}, errs.Annotate(err, "conference change: type")
	}
	cc := ConferenceChange{Type: ConferenceChangeType(typ)}
	switch cc.Type {
	case ConferenceJoined:
		inviter, afterInviter, err := decodeUTF16Field(rest)
		if err != nil {
			return ConferenceChange{}, errs.Annotate(err, "conference change: inviter")
		}
		cc.Inviter = inviter
		names, afterNames, err := decodeUTF16StringArray(afterInviter)
		if err != nil {
			return ConferenceChange{}, errs.Annotate(err, "conference change: names")
		}
		emails, _, err := decodeUTF16StringArray(afterNames)
		if err != nil {
			return ConferenceChange{}, errs.Annotate(err, "conference change: emails")
		}
		cc.Names, cc.Emails = names, emails
		return cc, nil
	case ConferenceLeft:
		name, rest2, err := decodeUTF16Field(rest)
		if err != nil {
			return ConferenceChange{}, errs.Annotate(err, "conference change: name")
		}
		email, _, err := decodeUTF16Field(rest2)
		if err != nil {
			return ConferenceChange{}, errs.Annotate(err, "conference change: email")
		}
		cc.Names, cc.Emails = []string{name}, []string{email}
		return cc, nil
	default:
		return ConferenceChange{}, errs.New(errs.UnknownVariant, "conference change: type 0x%02x", typ)
	}
}

func decodeUTF16StringArray(bs []byte) ([]string, []byte, error) {
	count, rest, err := binreader.NextU32Size(bs)
	if err != nil {
		return nil, nil, err
	}
	out := make([]string, 0, count)
	for i := 0; i < count; i++ {
		s, tail, err := decodeUTF16Field(rest)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, s)
		rest = tail
	}
	return out, rest, nil
}
