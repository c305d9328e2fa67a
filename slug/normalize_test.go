package slug

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"portuguese accents", "Olá, Mundo!", "ola-mundo"},
		{"mixed case and spaces", "  Hello   World  ", "hello-world"},
		{"punctuation runs", "Go -- is :: fun!!!", "go-is-fun"},
		{"cedilla and tilde", "Ação e Reação", "acao-e-reacao"},
		{"uppercase accents", "ÉCOLE ÀÉÎÕÜ", "ecole-aeiou"},
		{"spanish", "Año Niño", "ano-nino"},
		{"digits kept", "Top 10 Tips for 2024", "top-10-tips-for-2024"},
		{"apostrophe splits words", "Don't Panic", "don-t-panic"},
		{"non latin only", "日本語のタイトル", ""},
		{"blank", "   ", ""},
		{"symbols only", "!!! ??? ---", ""},
		{"latin among symbols", "★ Go ★", "go"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.title))
		})
	}
}

func TestNormalizeProducesValidSlugs(t *testing.T) {
	titles := []string{
		"Olá, Mundo!",
		"a",
		"-leading and trailing-",
		"Ünïcödé Tëxt with ñ and ç",
		"x" + strings.Repeat(" y", 300),
		strings.Repeat("word ", 100),
		"ends with hyphen at the cut " + strings.Repeat("ab-", 100),
	}

	for _, title := range titles {
		got := Normalize(title)
		assert.True(t, IsValid(got), "Normalize(%q) = %q is not a valid slug", title, got)
		assert.LessOrEqual(t, len(got), MaxLength)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	titles := []string{"Olá, Mundo!", "Top 10 Tips", strings.Repeat("long title ", 40), "a-b-c"}
	for _, title := range titles {
		once := Normalize(title)
		assert.Equal(t, once, Normalize(once))
	}
}

func TestNormalizeTruncationDropsTrailingHyphen(t *testing.T) {
	// 199 letters then a separator: the cut lands right on the hyphen.
	title := strings.Repeat("a", 199) + " bcd"
	got := Normalize(title)
	assert.Equal(t, strings.Repeat("a", 199), got)
	assert.False(t, strings.HasSuffix(got, "-"))
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ola-mundo", "ola-mundo"},
		{"Ola--Mundo", "ola-mundo"},
		{"-ola-mundo-", "ola-mundo"},
		{"ola_mundo!", "olamundo"},
		{"   ", ""},
		{"---", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Sanitize(tt.in), "Sanitize(%q)", tt.in)
	}
}

func TestIsValid(t *testing.T) {
	assert.True(t, IsValid("ola-mundo"))
	assert.True(t, IsValid("a"))
	assert.True(t, IsValid(strings.Repeat("a", MaxLength)))
	assert.False(t, IsValid(""))
	assert.False(t, IsValid(strings.Repeat("a", MaxLength+1)))
	assert.False(t, IsValid("Ola-Mundo"))
	assert.False(t, IsValid("ola--mundo"))
	assert.False(t, IsValid("-ola"))
	assert.False(t, IsValid("ola-"))
	assert.False(t, IsValid("olá"))
}
