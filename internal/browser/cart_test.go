package browser

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCartDump(t *testing.T) {
	tests := []struct {
		name string
		body string
		want CartSettings
	}{
		{
			name: "plain text",
			body: "clade mammal\ntextSize 10\nhgt.labelWidth 20\n",
			want: CartSettings{TextSize: 10, LabelWidth: 20},
		},
		{
			name: "html wrapped",
			body: "<html><body><pre>db hg38\nhgt.labelWidth 25\n</pre></body></html>",
			want: CartSettings{TextSize: DefaultTextSize, LabelWidth: 25},
		},
		{
			name: "defaults when absent",
			body: "org Human\n",
			want: DefaultCartSettings(),
		},
		{
			name: "bad values ignored",
			body: "textSize big\nhgt.labelWidth -3\n",
			want: DefaultCartSettings(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseCartDump([]byte(tt.body)))
		})
	}
}

func TestClient_CartSettings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cgi-bin/cartDump", r.URL.Path)
		assert.Equal(t, "sess1", r.URL.Query().Get("hgsid"))
		w.Write([]byte("textSize 12\n"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, Options{})
	got, err := c.CartSettings(context.Background(), "sess1")
	require.NoError(t, err)
	assert.Equal(t, CartSettings{TextSize: 12, LabelWidth: DefaultLabelWidth}, got)
}

func TestClient_CartSettingsFailureKeepsDefaults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, Options{})
	got, err := c.CartSettings(context.Background(), "sess1")
	var ne *NetworkError
	require.True(t, errors.As(err, &ne))
	assert.Equal(t, DefaultCartSettings(), got)
}
