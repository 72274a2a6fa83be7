package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStaticAuthenticator_AuthenticatesKnownTokens(t *testing.T) {
	t.Parallel()
	a := &StaticAuthenticator{Tokens: map[string]string{"tok-1": "user-1"}}

	userID, ok := a.Authenticate("tok-1")
	assert.True(t, ok)
	assert.Equal(t, "user-1", userID)
}

func TestStaticAuthenticator_RejectsUnknownToken(t *testing.T) {
	t.Parallel()
	a := &StaticAuthenticator{Tokens: map[string]string{"tok-1": "user-1"}}

	_, ok := a.Authenticate("unknown")
	assert.False(t, ok)
}

func TestStaticAuthenticator_RejectsEmptyToken(t *testing.T) {
	t.Parallel()
	a := &StaticAuthenticator{}

	_, ok := a.Authenticate("")
	assert.False(t, ok)
}
