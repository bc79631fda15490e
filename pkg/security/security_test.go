package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hashed, err := h.Hash("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hashed)

	assert.NoError(t, h.Compare(hashed, "correct horse"))
	assert.ErrorIs(t, h.Compare(hashed, "battery staple"), ErrPasswordMismatch)

	_, err = h.Hash("short")
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestTextSanitizer(t *testing.T) {
	s := NewTextSanitizer()

	assert.Equal(t, "headache since Monday", s.Sanitize("<b>headache</b> since Monday<script>alert(1)</script>"))
	assert.Equal(t, "bring prior records & x-rays", s.Sanitize("  bring prior records & x-rays "))
	assert.Equal(t, "", s.Sanitize("<img src=x onerror=alert(1)>"))
	assert.Equal(t, "", s.Sanitize(""))
}

func TestTextSanitizer_EncodedMarkup(t *testing.T) {
	s := NewTextSanitizer()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"encoded script", "&lt;script&gt;alert(1)&lt;/script&gt; headache", "headache"},
		{"encoded tag", "&lt;b&gt;fever&lt;/b&gt; for two days", "fever for two days"},
		{"numeric entities", "&#60;img src=x onerror=alert(1)&#62;cough", "cough"},
		{"plain ampersand entity", "x-rays &amp; labs", "x-rays & labs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Sanitize(tt.in)
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, got, "<")
		})
	}
}
