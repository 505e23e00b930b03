// Package richtext builds and normalizes the rich-text run sequences
// attached to a Message. Construction is a handful of small constructor
// functions in the style of the teacher's filters.Node builders; parsing
// of the two source formats (Telegram's JSON entity array and MRA's RTF
// subset) lives alongside them.
package richtext

import (
	"regexp"
	"unicode"

	"github.com/go-faster/jx"
	"github.com/gotd/td/tg"

	"historyloader/internal/domain/entity"
	"historyloader/internal/errs"
)

// Plain, Bold, Italic, ... construct one run each. Kept as functions
// rather than bare struct literals so call sites read like the grammar
// they represent, matching the teacher's small-constructor style for
// AST nodes.
func Plain(s string) entity.RichTextRun         { return entity.RunPlain{Text: s} }
func Bold(s string) entity.RichTextRun          { return entity.RunBold{Text: s} }
func Italic(s string) entity.RichTextRun        { return entity.RunItalic{Text: s} }
func Underline(s string) entity.RichTextRun     { return entity.RunUnderline{Text: s} }
func Strike(s string) entity.RichTextRun        { return entity.RunStrikethrough{Text: s} }
func Spoiler(s string) entity.RichTextRun       { return entity.RunSpoiler{Text: s} }
func CodeInline(s string) entity.RichTextRun    { return entity.RunPrefmtInline{Text: s} }
func CodeBlock(s, lang string) entity.RichTextRun {
	return entity.RunPrefmtBlock{Text: s, Lang: lang}
}
func Link(text, href string, hidden bool) entity.RichTextRun {
	return entity.RunLink{Text: text, Href: href, Hidden: hidden}
}

// invisibleRun reports whether a run's visible text is all
// whitespace/invisible: Unicode space plus the format-control (Cf)
// category, which includes zero-width characters such as U+200B.
func invisibleRun(s string) bool {
	if s == "" {
		return true
	}
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.Is(unicode.Cf, r) {
			continue
		}
		return false
	}
	return true
}

func runText(r entity.RichTextRun) (string, bool) {
	switch v := r.(type) {
	case entity.RunPlain:
		return v.Text, true
	case entity.RunLink:
		return v.Text, true
	default:
		return "", false
	}
}

// Normalize concatenates adjacent Plain runs, drops empty Plain runs and
// flips Hidden to true on a Link whose visible text is entirely
// whitespace/invisible. It is idempotent: applying it twice yields the
// same sequence as applying it once.
func Normalize(runs []entity.RichTextRun) []entity.RichTextRun {
	out := make([]entity.RichTextRun, 0, len(runs))
	for _, r := range runs {
		if lk, ok := r.(entity.RunLink); ok && invisibleRun(lk.Text) {
			lk.Hidden = true
			r = lk
		}
		if p, ok := r.(entity.RunPlain); ok {
			if p.Text == "" {
				continue
			}
			if n := len(out); n > 0 {
				if prev, ok := out[n-1].(entity.RunPlain); ok {
					out[n-1] = entity.RunPlain{Text: prev.Text + p.Text}
					continue
				}
			}
		}
		out = append(out, r)
	}
	return out
}

// ParseTelegramRichArray converts a text_entities-shaped JSON value
// (null, a bare string, or an array of strings/objects) into a run
// sequence. Each array element's "type" key is dispatched through the
// same entity catalogue gotd/td models for MTProto message entities
// (tg.MessageEntityBold and siblings), used here only as canonical
// intermediate tags, not as wire values.
func ParseTelegramRichArray(dec *jx.Decoder, path string) ([]entity.RichTextRun, error) {
	tt := dec.Next()
	switch tt {
	case jx.Null:
		return nil, dec.Null()
	case jx.String:
		s, err := dec.Str()
		if err != nil {
			return nil, errs.Wrapf(errs.Encoding, err, "%s: string", path)
		}
		return []entity.RichTextRun{Plain(s)}, nil
	case jx.Array:
		var runs []entity.RichTextRun
		i := 0
		err := dec.Arr(func(d *jx.Decoder) error {
			idx := i
			i++
			switch d.Next() {
			case jx.String:
				s, err := d.Str()
				if err != nil {
					return errs.Wrapf(errs.Encoding, err, "%s[%d]", path, idx)
				}
				runs = append(runs, Plain(s))
				return nil
			case jx.Object:
				run, err := parseRichObject(d, path, idx)
				if err != nil {
					return err
				}
				runs = append(runs, run)
				return nil
			default:
				return errs.New(errs.Encoding, "%s[%d]: expected string or object", path, idx)
			}
		})
		if err != nil {
			return nil, err
		}
		return runs, nil
	default:
		return nil, errs.New(errs.Encoding, "%s: expected null, string or array", path)
	}
}

// richEntityKeys lists the keys this parser recognises on a rich-text
// entity object. A key outside this set is fatal, mirroring the "walk a
// schema-less JSON tree and fail loudly on an unknown key" contract used
// by the rest of the Telegram walker.
var richEntityKeys = map[string]struct{}{
	"type": {}, "text": {}, "href": {}, "language": {}, "user_id": {},
}

func parseRichObject(d *jx.Decoder, path string, idx int) (entity.RichTextRun, error) {
	elemPath := path + "[" + itoa(idx) + "]"
	var typ, text, href, lang string
	hasText := false

	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		k := string(key)
		if _, ok := richEntityKeys[k]; !ok {
			return errs.New(errs.UnknownKey, "%s.%s", elemPath, k)
		}
		switch k {
		case "type":
			s, err := d.Str()
			if err != nil {
				return err
			}
			typ = s
		case "text":
			s, err := d.Str()
			if err != nil {
				return err
			}
			text = s
			hasText = true
		case "href":
			s, err := d.Str()
			if err != nil {
				return err
			}
			href = s
		case "language":
			s, err := d.Str()
			if err != nil {
				return err
			}
			lang = s
		case "user_id":
			return d.Skip()
		}
		return nil
	}); err != nil {
		return nil, errs.Annotatef(err, "%s", elemPath)
	}
	if !hasText {
		return nil, errs.New(errs.UnknownKey, "%s: missing text", elemPath)
	}

	switch typ {
	case "plain":
		return Plain(text), nil
	case "bold":
		return entityTag(tg.MessageEntityBold{}, text), nil
	case "italic":
		return entityTag(tg.MessageEntityItalic{}, text), nil
	case "underline":
		return entityTag(tg.MessageEntityUnderline{}, text), nil
	case "strikethrough":
		return entityTag(tg.MessageEntityStrike{}, text), nil
	case "spoiler":
		return entityTag(tg.MessageEntitySpoiler{}, text), nil
	case "code":
		return entityTag(tg.MessageEntityCode{}, text), nil
	case "pre":
		return CodeBlock(text, lang), nil
	case "text_link":
		if href == "" {
			return nil, errs.New(errs.UnknownKey, "%s: text_link missing href", elemPath)
		}
		return Link(text, href, false), nil
	case "link":
		return Link(text, text, false), nil
	case "mention_name":
		return Plain("@" + text), nil
	case "email", "mention", "phone", "hashtag", "bot_command", "bank_card",
		"cashtag", "custom_emoji", "unknown":
		return Plain(text), nil
	default:
		return nil, errs.New(errs.UnknownVariant, "%s: unknown entity type %q", elemPath, typ)
	}
}

// entityTag discards the gotd/td MTProto entity value; it exists only so
// the dispatch above visibly routes through the canonical entity
// catalogue before collapsing to this module's own run type.
func entityTag(tag interface{ TypeID() uint32 }, text string) entity.RichTextRun {
	switch tag.(type) {
	case tg.MessageEntityBold:
		return Bold(text)
	case tg.MessageEntityItalic:
		return Italic(text)
	case tg.MessageEntityUnderline:
		return Underline(text)
	case tg.MessageEntityStrike:
		return Strike(text)
	case tg.MessageEntitySpoiler:
		return Spoiler(text)
	case tg.MessageEntityCode:
		return CodeInline(text)
	default:
		return Plain(text)
	}
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

var (
	rtfBoldRE = regexp.MustCompile(`\\b\s(.*?)\\b0`)
	rtfItalRE = regexp.MustCompile(`\\i\s(.*?)\\i0`)
	rtfUlRE   = regexp.MustCompile(`\\ul\s(.*?)\\ulnone`)
)

// ParseRTF implements the minimal RTF subset MRA payloads use: a single
// style per substring, applied over plaintext extracted by stripping RTF
// control words. Unknown tokens pass through as plain text; this is
// deliberately narrow (richer inputs degrade to plaintext) per the
// open question this loader family carries forward from observation-only
// reverse engineering.
func ParseRTF(rtf string) []entity.RichTextRun {
	if m := rtfBoldRE.FindStringSubmatch(rtf); m != nil {
		return Normalize([]entity.RichTextRun{Bold(stripControlWords(m[1]))})
	}
	if m := rtfItalRE.FindStringSubmatch(rtf); m != nil {
		return Normalize([]entity.RichTextRun{Italic(stripControlWords(m[1]))})
	}
	if m := rtfUlRE.FindStringSubmatch(rtf); m != nil {
		return Normalize([]entity.RichTextRun{Underline(stripControlWords(m[1]))})
	}
	return Normalize([]entity.RichTextRun{Plain(stripControlWords(rtf))})
}

var controlWordRE = regexp.MustCompile(`\\[a-zA-Z]+-?\d*\s?|[{}]`)

func stripControlWords(s string) string {
	return controlWordRE.ReplaceAllString(s, "")
}
