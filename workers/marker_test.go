package workers

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marek-sl/photodropbackend/models"
)

func TestExtractMarkerCode(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		code    string
		ok      bool
	}{
		{"full url with pin", "https://app.example.com/client/abc-123?pin=4567", "abc-123", true},
		{"url without query", "https://app.example.com/client/abc-123", "abc-123", true},
		{"trailing slash", "https://app.example.com/client/abc-123/", "abc-123", true},
		{"path only", "/client/abc-123?pin=9999", "abc-123", true},
		{"http scheme", "http://localhost:3000/client/xyz?pin=1111", "xyz", true},
		{"no client segment", "https://example.com/other/abc-123", "", false},
		{"empty code", "https://app.example.com/client/", "", false},
		{"empty code with slash", "https://app.example.com/client//", "", false},
		{"random text", "hello world", "", false},
		{"empty payload", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, ok := ExtractMarkerCode(tt.payload)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestMarkerResolverResolve(t *testing.T) {
	sessions := newFakeSessionRepo()
	alice := sessions.add(1, "alice-code", models.SessionStatusScanned)
	sessions.add(2, "other-project", models.SessionStatusScanned)
	resolver := NewMarkerResolver(sessions, zerolog.Nop())

	t.Run("resolves within project", func(t *testing.T) {
		session, err := resolver.Resolve(markerPayload("alice-code"), 1)
		require.NoError(t, err)
		require.NotNil(t, session)
		assert.Equal(t, alice.ID, session.ID)
	})

	t.Run("code from another project does not match", func(t *testing.T) {
		session, err := resolver.Resolve(markerPayload("other-project"), 1)
		require.NoError(t, err)
		assert.Nil(t, session)
	})

	t.Run("unknown code is not an error", func(t *testing.T) {
		session, err := resolver.Resolve(markerPayload("no-such-code"), 1)
		require.NoError(t, err)
		assert.Nil(t, session)
	})

	t.Run("malformed payload is not an error", func(t *testing.T) {
		session, err := resolver.Resolve("WIFI:S:guest;P:hunter2;;", 1)
		require.NoError(t, err)
		assert.Nil(t, session)
	})

	t.Run("lookup failure surfaces", func(t *testing.T) {
		sessions.lookupErr = errors.New("disk I/O error")
		defer func() { sessions.lookupErr = nil }()

		session, err := resolver.Resolve(markerPayload("alice-code"), 1)
		require.Error(t, err)
		assert.Nil(t, session)
	})
}
