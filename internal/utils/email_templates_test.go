package utils

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileDeliveryEmail_EscapesName(t *testing.T) {
	subject, html, err := FileDeliveryEmail("<SetA>", "https://files.example/a?sig=1&x=2")
	require.NoError(t, err)

	assert.Equal(t, "Your purchase: <SetA>", subject)
	assert.Contains(t, html, "&lt;SetA&gt;")
	assert.Contains(t, html, "https://files.example/a?sig=1&amp;x=2")
}

func TestPasswordRecoveryEmail_ContainsPassword(t *testing.T) {
	_, html, err := PasswordRecoveryEmail("Tmp12345")
	require.NoError(t, err)
	assert.Contains(t, html, "Tmp12345")
}

func TestDownloadQRCode_IsPNG(t *testing.T) {
	png, err := DownloadQRCode("https://files.example/a")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}
