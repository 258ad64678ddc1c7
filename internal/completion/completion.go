// Package completion checks whether a free-text plot submission carries the
// fields the bot needs before it can group the plot.
package completion

import "regexp"

// FieldTag names a required field.
type FieldTag string

const (
	FieldCode            FieldTag = "CODE"
	FieldLandTitleNumber FieldTag = "LAND_TITLE_NUMBER"
)

// Fields lists the required fields in reporting order.
var Fields = []FieldTag{FieldCode, FieldLandTitleNumber}

var (
	// 2-10 uppercase letters, hyphen, 1-4 digits, e.g. WC-001.
	codePattern = regexp.MustCompile(`[A-Z]{2,10}-\d{1,4}`)
	// Title deed (โฉนด) or Nor Sor 3 certificate (น.ส.3) followed by its number.
	landTitlePattern = regexp.MustCompile(`(โฉนด|น\.ส\.3)\s*\d+`)
)

var detectors = map[FieldTag]*regexp.Regexp{
	FieldCode:            codePattern,
	FieldLandTitleNumber: landTitlePattern,
}

// Result is the outcome of a completeness check.
type Result struct {
	// Missing holds absent fields in the order of Fields.
	Missing []FieldTag
}

// Accepted reports whether every required field was found.
func (r Result) Accepted() bool { return len(r.Missing) == 0 }

// NeedsPrompt reports whether the user must be asked for more fields.
func (r Result) NeedsPrompt() bool { return !r.Accepted() }

// Has reports whether tag is among the missing fields.
func (r Result) Has(tag FieldTag) bool {
	for _, m := range r.Missing {
		if m == tag {
			return true
		}
	}
	return false
}

// Check classifies text. Matching is lenient: any occurrence counts.
func Check(text string) Result {
	var missing []FieldTag
	for _, tag := range Fields {
		if !detectors[tag].MatchString(text) {
			missing = append(missing, tag)
		}
	}
	return Result{Missing: missing}
}
