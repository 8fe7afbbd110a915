package generation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticClientAlwaysReturnsText(t *testing.T) {
	client := NewStaticClient("canned reply")

	text, err := client.Generate(context.Background(), "sys", "ctx")
	require.NoError(t, err)
	assert.Equal(t, "canned reply", text)

	assert.NoError(t, client.HealthCheck(context.Background()))
}

func TestCannedClientSeesBothPromptParts(t *testing.T) {
	client := NewCannedClient(func(systemInstruction, contextText string) (string, error) {
		return systemInstruction + "|" + contextText, nil
	})

	text, err := client.Generate(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.Equal(t, "a|b", text)
}

func TestCannedClientPropagatesErrors(t *testing.T) {
	wantErr := errors.New("scripted failure")
	client := NewCannedClient(func(string, string) (string, error) {
		return "", wantErr
	})

	_, err := client.Generate(context.Background(), "sys", "ctx")
	assert.ErrorIs(t, err, wantErr)
}

func TestCannedClientHonoursCancelledContext(t *testing.T) {
	client := NewStaticClient("x")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Generate(ctx, "sys", "ctx")
	assert.ErrorIs(t, err, context.Canceled)
}
