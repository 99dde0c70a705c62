package sparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "camelCase",
			input: "getUserData",
			want:  []string{"get", "user", "data"},
		},
		{
			name:  "snake_case",
			input: "get_user_data",
			want:  []string{"get", "user", "data"},
		},
		{
			name:  "alpha digit boundaries",
			input: "user123_data456",
			want:  []string{"user", "123", "data", "456"},
		},
		{
			name:  "uppercase run keeps acronym",
			input: "HTTPServer",
			want:  []string{"http", "server"},
		},
		{
			name:  "mixed punctuation",
			input: "func calculateSum(a, b int)",
			want:  []string{"func", "calculate", "sum", "a", "b", "int"},
		},
		{
			name:  "empty",
			input: "",
			want:  nil,
		},
		{
			name:  "only punctuation",
			input: "{}();,",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.input))
		})
	}
}

func TestTokenizeLowercasesEverything(t *testing.T) {
	for _, tok := range Tokenize("XMLHttpRequest ParseJSON") {
		assert.Equal(t, tok, string([]rune(tok)), "token %q", tok)
		for _, r := range tok {
			assert.False(t, r >= 'A' && r <= 'Z', "token %q contains uppercase", tok)
		}
	}
}
