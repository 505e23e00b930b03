package mra

import "regexp"

// smileRE matches one <SMILE> tag; alt may appear on either side of id,
// matching the format's observed inconsistency across client versions.
var smileRE = regexp.MustCompile(`<SMILE>(?:alt='(?P<alt1>[^']*)'\s*)?id='(?P<id>[^']*)'(?:\s*alt='(?P<alt2>[^']*)')?</SMILE>`)

// smileyTable maps a handful of well-known smiley ids to their emoji,
// for ids carrying no alt text of their own. Ids absent from this table
// fall back to the id string itself.
var smileyTable = map[string]string{
	"1":    "🙂",
	"2":    "😉",
	"3":    "😞",
	"4":    "😁",
	"5":    "😮",
	"6":    "😢",
	"9":    "😎",
	"14":   "😡",
	"32":   "❤️",
	"0040": "😂",
}

// ExtractSmiles replaces every <SMILE> tag in text with its emoji: alt
// text wins when present, else a smileyTable lookup, else the raw id.
func ExtractSmiles(text string) string {
	return smileRE.ReplaceAllStringFunc(text, func(tag string) string {
		m := smileRE.FindStringSubmatch(tag)
		id, alt1, alt2 := m[2], m[1], m[3]
		if alt1 != "" {
			return alt1
		}
		if alt2 != "" {
			return alt2
		}
		if emoji, ok := smileyTable[id]; ok {
			return emoji
		}
		return id
	})
}
