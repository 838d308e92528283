package analytics

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/brand-seo/pkg/anthropic"
)

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

type fakeSource struct {
	descs map[string][]string
	err   error
}

func (f fakeSource) BrandDescriptions(context.Context) (map[string][]string, error) {
	return f.descs, f.err
}

// fakeExtractor returns fixed keywords per brand and counts calls.
type fakeExtractor struct {
	mu       sync.Mutex
	keywords map[string][]string
	errs     map[string]error
	calls    map[string]int
}

func (f *fakeExtractor) Extract(_ context.Context, brandName string, _ []string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[brandName]++
	if err := f.errs[brandName]; err != nil {
		return nil, err
	}
	return f.keywords[brandName], nil
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
		Usage:   anthropic.TokenUsage{InputTokens: 120, OutputTokens: 30},
	}
}
