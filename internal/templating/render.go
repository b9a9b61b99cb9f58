package templating

import (
	"regexp"
	"strings"
	"time"

	"github.com/LeventeLantos/wasender/internal/model"
)

const (
	TagGreeting = "{salam}"
	TagSender   = "{pengirim}"
	TagName     = "{nama}"
	TagItem     = "{barang}"
	TagReceipt  = "{resi}"
	TagCOD      = "{cod}"
)

const (
	emptyField = "-"
	emptyCOD   = "0"
)

var (
	tags = []string{TagGreeting, TagSender, TagName, TagItem, TagReceipt, TagCOD}

	tagPattern = buildTagPattern(tags)
)

func buildTagPattern(tags []string) *regexp.Regexp {
	quoted := make([]string, len(tags))
	for i, t := range tags {
		quoted[i] = regexp.QuoteMeta(t)
	}
	return regexp.MustCompile(`(?i)` + strings.Join(quoted, "|"))
}

// Tags lists the placeholders in the order the editor offers them.
func Tags() []string {
	out := make([]string, len(tags))
	copy(out, tags)
	return out
}

func IsTag(s string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, s) {
			return true
		}
	}
	return false
}

// Greeting picks the salutation for the local hour of now.
func Greeting(now time.Time) string {
	switch h := now.Hour(); {
	case h >= 4 && h < 11:
		return "Selamat pagi"
	case h >= 11 && h < 15:
		return "Selamat siang"
	case h >= 15 && h < 18:
		return "Selamat sore"
	default:
		return "Selamat malam"
	}
}

// Render substitutes every known placeholder in text in a single pass.
// Unknown {tokens} are left as they are and substituted values are never
// rescanned, so a recipient named "{resi}" stays literal.
func Render(text string, e model.Entry, s model.Settings, now time.Time) string {
	values := map[string]string{
		TagGreeting: Greeting(now),
		TagSender:   orDefault(s.SenderName, model.DefaultSenderName),
		TagName:     e.RecipientName,
		TagItem:     orDefault(e.ItemName, emptyField),
		TagReceipt:  orDefault(e.ReceiptNumber, emptyField),
		TagCOD:      orDefault(e.COD, emptyCOD),
	}

	return tagPattern.ReplaceAllStringFunc(text, func(tok string) string {
		if v, ok := values[strings.ToLower(tok)]; ok {
			return v
		}
		return tok
	})
}

// AppendTag mirrors the editor's placeholder buttons, which add the tag
// after a single space at the end of the text.
func AppendTag(text, tag string) string {
	return text + " " + tag
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
