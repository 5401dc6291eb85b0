package sanitize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_RedactPII_EmailAndPhone(t *testing.T) {
	got := RedactPII("call me at +63 917 123 4567 or mail owner@example.com")
	assert.NotContains(t, got, "917")
	assert.NotContains(t, got, "@example.com")
	assert.Contains(t, got, "[redacted phone]")
	assert.Contains(t, got, "[redacted email]")
	assert.Equal(t, "", RedactPII(""))
}

func Test_Summary_CutsAtWordBoundary(t *testing.T) {
	assert.Equal(t, "short", Summary("short", 10))

	got := Summary("a cozy studio near the university belt", 12)
	assert.True(t, strings.HasSuffix(got, "…"))
	assert.Equal(t, "a cozy", strings.TrimSuffix(got, "…"))

	assert.Equal(t, "déjà…", Summary("déjàvu", 4))
}

func Test_Filename_StorageSafe(t *testing.T) {
	cases := map[string]string{
		"lease agreement.pdf":       "lease-agreement.pdf",
		"../../etc/passwd":          "passwd",
		`C:\Users\me\id card.png`:   "id-card.png",
		"...":                       "file",
		"résumé (final).pdf":        "r-sum-final-.pdf",
	}
	for in, want := range cases {
		assert.Equal(t, want, Filename(in), "input %q", in)
	}
	assert.LessOrEqual(t, len(Filename(strings.Repeat("a", 300)+".pdf")), 100)
}
