package mail

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerificationEmail(t *testing.T) {
	link := "http://localhost:8080/verifyUserEmail?token=abc.def.ghi"
	msg, err := VerificationEmail("a@x.io", "alice", link, 10*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, "a@x.io", msg.SendTo)
	assert.Equal(t, TagVerification, msg.Tag)
	assert.Contains(t, msg.BodyHTML, `href="http://localhost:8080/verifyUserEmail?token=abc.def.ghi"`)
	assert.Contains(t, msg.BodyHTML, "10m0s")
	assert.Contains(t, msg.BodyText, link)
	assert.NoError(t, msg.Validate())
}

func TestPasskeyEmail(t *testing.T) {
	msg, err := PasskeyEmail("a@x.io", "<alice>", "0a1b2c3d4e5f", 10*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, TagPasswordReset, msg.Tag)
	assert.Contains(t, msg.BodyHTML, "0a1b2c3d4e5f")
	assert.Contains(t, msg.BodyHTML, "&lt;alice&gt;")
	assert.NotContains(t, msg.BodyHTML, "<alice>")
	assert.NoError(t, msg.Validate())
}
