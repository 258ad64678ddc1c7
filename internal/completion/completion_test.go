package completion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheck(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		text string
		want []FieldTag
	}{
		{name: "both present", text: "WC-001 โฉนด 12345", want: nil},
		{name: "nothing", text: "hello world", want: []FieldTag{FieldCode, FieldLandTitleNumber}},
		{name: "code only", text: "WC-001", want: []FieldTag{FieldLandTitleNumber}},
		{name: "deed only", text: "โฉนด12345", want: []FieldTag{FieldCode}},
		{name: "nor sor 3", text: "กำหนด CODE AB-12 น.ส.3 889", want: nil},
		{name: "lowercase code letters", text: "wc-001 โฉนด 1", want: []FieldTag{FieldCode}},
		{name: "single letter prefix", text: "W-001 โฉนด 1", want: []FieldTag{FieldCode}},
		{name: "code embedded in longer run", text: "ABCDEFGHIJKL-12345 โฉนด 7", want: nil},
		{name: "deed marker without number", text: "WC-1 แนบรูปโฉนด", want: []FieldTag{FieldLandTitleNumber}},
		{name: "marker then newline then digits", text: "WC-1\nโฉนด\n42", want: nil},
		{name: "empty", text: "", want: []FieldTag{FieldCode, FieldLandTitleNumber}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := Check(tc.text)
			assert.Equal(t, tc.want, got.Missing)
			assert.Equal(t, len(tc.want) == 0, got.Accepted())
			assert.Equal(t, len(tc.want) != 0, got.NeedsPrompt())
		})
	}
}

func TestCheck_Idempotent(t *testing.T) {
	t.Parallel()

	for _, text := range []string{"", "WC-001", "โฉนด 1", "WC-001 โฉนด 12345", "random"} {
		assert.Equal(t, Check(text), Check(text), text)
	}
}

func TestResult_Has(t *testing.T) {
	t.Parallel()

	r := Check("WC-001")
	assert.True(t, r.Has(FieldLandTitleNumber))
	assert.False(t, r.Has(FieldCode))
}
