package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graviton-studio/logos/pkg/models"
)

type fakeChannel struct {
	listings  [][]models.ToolDescriptor
	listCalls int
	listErr   error

	callResult any
	callErr    error
	callCalls  int
	lastName   string
	lastArgs   map[string]any
}

func (f *fakeChannel) ListTools(_ context.Context) ([]models.ToolDescriptor, error) {
	f.listCalls++

	if f.listErr != nil {
		return nil, f.listErr
	}

	if len(f.listings) == 0 {
		return nil, nil
	}

	listing := f.listings[0]
	if len(f.listings) > 1 {
		f.listings = f.listings[1:]
	}

	return listing, nil
}

func (f *fakeChannel) CallTool(_ context.Context, name string, args map[string]any) (any, error) {
	f.callCalls++
	f.lastName = name
	f.lastArgs = args

	if f.callErr != nil {
		return nil, f.callErr
	}

	return f.callResult, nil
}

func TestGatewayCatalogCached(t *testing.T) {
	channel := &fakeChannel{listings: [][]models.ToolDescriptor{
		{{Name: "send_email"}},
	}}
	gateway := NewGateway(channel, nil)

	first, err := gateway.Catalog(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := gateway.Catalog(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, channel.listCalls)
}

func TestGatewayEmptyCatalogRefetchedExactlyOnce(t *testing.T) {
	channel := &fakeChannel{listings: [][]models.ToolDescriptor{
		{},
		{},
		{{Name: "late_tool"}},
	}}
	gateway := NewGateway(channel, nil)

	catalog, err := gateway.Catalog(context.Background())
	require.NoError(t, err)
	assert.Empty(t, catalog)
	assert.Equal(t, 2, channel.listCalls)

	// Still empty after the single retry, so later reads do not fetch again.
	catalog, err = gateway.Catalog(context.Background())
	require.NoError(t, err)
	assert.Empty(t, catalog)
	assert.Equal(t, 2, channel.listCalls)
}

func TestGatewayEmptyCatalogRefetchRecovers(t *testing.T) {
	channel := &fakeChannel{listings: [][]models.ToolDescriptor{
		{},
		{{Name: "late_tool"}},
	}}
	gateway := NewGateway(channel, nil)

	catalog, err := gateway.Catalog(context.Background())
	require.NoError(t, err)
	require.Len(t, catalog, 1)
	assert.Equal(t, "late_tool", catalog[0].Name)
	assert.Equal(t, 2, channel.listCalls)
}

func TestGatewayInvoke(t *testing.T) {
	channel := &fakeChannel{
		listings:   [][]models.ToolDescriptor{{{Name: "fetch_page"}}},
		callResult: "page body",
	}
	gateway := NewGateway(channel, nil)

	result, err := gateway.Invoke(context.Background(), "fetch_page", map[string]any{"url": "http://example.com"})
	require.NoError(t, err)
	assert.Equal(t, "page body", result.Content)
	assert.Equal(t, "fetch_page", channel.lastName)
}

func TestGatewayInvokeRejectsInvalidArguments(t *testing.T) {
	channel := &fakeChannel{listings: [][]models.ToolDescriptor{{
		{
			Name: "send_email",
			InputSchema: map[string]any{
				"type":     "object",
				"required": []any{"to"},
				"properties": map[string]any{
					"to": map[string]any{"type": "string"},
				},
			},
		},
	}}}
	gateway := NewGateway(channel, nil)

	_, err := gateway.Invoke(context.Background(), "send_email", map[string]any{})
	require.Error(t, err)

	var execErr *ToolExecutionError

	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, "send_email", execErr.Tool)
	assert.Equal(t, 0, channel.callCalls)
}

func TestGatewayInvokeWrapsChannelError(t *testing.T) {
	channel := &fakeChannel{
		listings: [][]models.ToolDescriptor{{{Name: "flaky"}}},
		callErr:  errors.New("connection reset"),
	}
	gateway := NewGateway(channel, nil)

	_, err := gateway.Invoke(context.Background(), "flaky", nil)

	var execErr *ToolExecutionError

	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, "flaky", execErr.Tool)
	assert.ErrorContains(t, err, "connection reset")
}

func TestGatewayNilChannelUnavailable(t *testing.T) {
	gateway := NewGateway(nil, nil)

	_, err := gateway.Invoke(context.Background(), "anything", nil)
	assert.True(t, IsToolUnavailable(err))

	_, err = gateway.Catalog(context.Background())
	assert.True(t, IsToolUnavailable(err))
}
