package browser

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectBlock(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		headers map[string]string
		body    string
		blocked bool
		kind    BlockType
	}{
		{name: "nil-safe ok page", status: 200, body: "<html><body>Lawn collection</body></html>"},
		{name: "cloudflare header", status: 403, headers: map[string]string{"cf-ray": "abc"}, blocked: true, kind: BlockCloudflare},
		{name: "cloudflare challenge body", status: 200, body: "Checking your browser before accessing", blocked: true, kind: BlockCloudflare},
		{name: "recaptcha", status: 200, body: `<div class="g-recaptcha"></div>`, blocked: true, kind: BlockCaptcha},
		{name: "js shell", status: 200, body: `<noscript>Please enable JavaScript to continue</noscript>`, blocked: true, kind: BlockJSShell},
		{name: "403 without cloudflare", status: 403, body: "forbidden"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := &http.Response{StatusCode: tc.status, Header: http.Header{}}
			for k, v := range tc.headers {
				resp.Header.Set(k, v)
			}
			blocked, kind := DetectBlock(resp, []byte(tc.body))
			assert.Equal(t, tc.blocked, blocked)
			assert.Equal(t, tc.kind, kind)
		})
	}

	blocked, kind := DetectBlock(nil, nil)
	assert.False(t, blocked)
	assert.Equal(t, BlockNone, kind)
}
