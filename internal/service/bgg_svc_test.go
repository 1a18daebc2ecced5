package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bggSearchXML(n int) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="utf-8"?><items total="` + fmt.Sprint(n) + `">`)
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&sb, `<item type="boardgame" id="%d"><name type="alternate" value="Alt %d"/><name type="primary" value="Game %d"/><yearpublished value="20%02d"/></item>`, i, i, i, i)
	}
	sb.WriteString(`</items>`)
	return sb.String()
}

const bggThingXML = `<?xml version="1.0" encoding="utf-8"?>
<items>
  <item type="boardgame" id="1">
    <thumbnail>https://cf.geekdo-images.com/1_t.jpg</thumbnail>
    <image>
      https://cf.geekdo-images.com/1.jpg
    </image>
    <name type="primary" value="Game 1"/>
    <description>Trade &amp;amp; build&amp;#10;the island.</description>
  </item>
  <item type="boardgame" id="2">
    <name type="primary" value="Game 2"/>
  </item>
</items>`

func TestBGGService_SearchGames(t *testing.T) {
	var thingIDs atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search":
			assert.Equal(t, "catan", r.URL.Query().Get("query"))
			assert.Equal(t, "boardgame", r.URL.Query().Get("type"))
			fmt.Fprint(w, bggSearchXML(8))
		case "/thing":
			thingIDs.Store(r.URL.Query().Get("id"))
			fmt.Fprint(w, bggThingXML)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	svc := NewBGGService(BGGConfig{BaseURL: srv.URL}, nil)
	results, err := svc.SearchGames(context.Background(), " catan ")
	require.NoError(t, err)

	require.Len(t, results, 5, "最多返回 5 条")
	assert.Equal(t, "1,2,3,4,5", thingIDs.Load())
	assert.Equal(t, "Game 1", results[0].Title, "优先 primary 名称")
	assert.Equal(t, "2001", results[0].Year)
	assert.Equal(t, "https://cf.geekdo-images.com/1.jpg", results[0].Image)
	assert.Equal(t, "https://cf.geekdo-images.com/1_t.jpg", results[0].Thumbnail)
	assert.Contains(t, results[0].Description, "Trade")
	assert.Empty(t, results[1].Image)
	assert.Equal(t, "bgg", svc.Provider())
}

func TestBGGService_ShortQuery(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	svc := NewBGGService(BGGConfig{BaseURL: srv.URL}, nil)
	results, err := svc.SearchGames(context.Background(), "ab")
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.NotNil(t, results)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestBGGService_Accepted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	svc := NewBGGService(BGGConfig{BaseURL: srv.URL}, nil)
	results, err := svc.SearchGames(context.Background(), "Catan")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBGGService_DetailFailureKeepsBasicResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/search" {
			fmt.Fprint(w, bggSearchXML(2))
			return
		}
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	svc := NewBGGService(BGGConfig{BaseURL: srv.URL}, nil)
	results, err := svc.SearchGames(context.Background(), "Game")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Empty(t, results[0].Image)
}

func TestBGGService_SearchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	svc := NewBGGService(BGGConfig{BaseURL: srv.URL, Token: "t"}, nil)
	_, err := svc.SearchGames(context.Background(), "Catan")
	assert.Error(t, err)
}
