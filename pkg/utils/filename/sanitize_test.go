package filename

import (
	"regexp"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"holiday video.mp4", "holiday-video.mp4"},
		{"  spaced   out  ", "spaced-out"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\me\clip.mov`, "clip.mov"},
		{"what?is*this|file", "what-is-this-file"},
		{".hidden", "hidden"},
		{"a__--b", "a-b"},
		{"", ""},
		{"...", ""},
		{"naïve café.mkv", "naive-cafe.mkv"},
		{"clip[1].mp4", "clip-1.mp4"},
		{"clip[a.mp4", "clip-a.mp4"},
		{"100%.mp4", "100.mp4"},
		{"frame_%d*?.mov", "frame-d.mov"},
		{"日本語 clip.mp4", "clip.mp4"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in, 0))
		})
	}
}

func TestSanitize_OnlyPortableCharacters(t *testing.T) {
	portable := regexp.MustCompile(`^[A-Za-z0-9._-]*$`)
	for _, in := range []string{"clip[1].mp4", "100%.mp4", "a{b}c~d#e&f.mkv", "ünïcødé 🎬.webm", "x\x00y.avi"} {
		assert.Regexp(t, portable, Sanitize(in, 0), in)
	}
}

func TestSanitize_Truncates(t *testing.T) {
	assert.Equal(t, "eeeee", Sanitize(strings.Repeat("é", 10), 5))
	assert.Equal(t, "ab", Sanitize("ab---cd", 3))

	assert.Len(t, Sanitize(strings.Repeat("a", 500), 0), defaultMaxLen)
}

func TestExt(t *testing.T) {
	assert.Equal(t, ".mp4", Ext("clip.MP4"))
	assert.Equal(t, ".webm", Ext("a.b.webm"))
	assert.Equal(t, "", Ext("noext"))
	assert.Equal(t, "", Ext("weird.ext with space"))
	assert.Equal(t, "", Ext("trailingdot."))
}

func TestStoredNameAndStem(t *testing.T) {
	id := uuid.MustParse("7d444840-9dc0-11d1-b245-5ffdce74fad2")

	name := StoredName(id, "My Holiday.MOV")
	assert.Equal(t, "7d444840-9dc0-11d1-b245-5ffdce74fad2-My-Holiday.mov", name)
	assert.Equal(t, "7d444840-9dc0-11d1-b245-5ffdce74fad2-My-Holiday", Stem(name))

	assert.Equal(t, "7d444840-9dc0-11d1-b245-5ffdce74fad2.mp4", StoredName(id, "???.mp4"))
	assert.Equal(t, "7d444840-9dc0-11d1-b245-5ffdce74fad2", StoredName(id, ""))
	assert.Equal(t, "7d444840-9dc0-11d1-b245-5ffdce74fad2-passwd", StoredName(id, "../../passwd"))

	for original, want := range map[string]string{
		"clip[1].mp4": "7d444840-9dc0-11d1-b245-5ffdce74fad2-clip-1",
		"clip[a.mp4":  "7d444840-9dc0-11d1-b245-5ffdce74fad2-clip-a",
		"100%.mp4":    "7d444840-9dc0-11d1-b245-5ffdce74fad2-100",
	} {
		assert.Equal(t, want, Stem(StoredName(id, original)), original)
	}
}
