package generation

import "context"

// CannedClient returns deterministic responses from a caller-supplied
// function. Useful for tests and demo runs without a live endpoint.
type CannedClient struct {
	responseFunc func(systemInstruction, contextText string) (string, error)
}

// NewCannedClient creates a client whose responses are computed by
// responseFunc.
func NewCannedClient(responseFunc func(systemInstruction, contextText string) (string, error)) *CannedClient {
	return &CannedClient{responseFunc: responseFunc}
}

// NewStaticClient creates a client that always returns text.
func NewStaticClient(text string) *CannedClient {
	return NewCannedClient(func(string, string) (string, error) {
		return text, nil
	})
}

func (c *CannedClient) Generate(ctx context.Context, systemInstruction, contextText string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	return c.responseFunc(systemInstruction, contextText)
}

func (c *CannedClient) HealthCheck(_ context.Context) error {
	return nil
}
