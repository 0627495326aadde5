package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPagerFollowsRelativeLink(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/forms", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		fmt.Fprint(w, `{"results":[{"id":"1","name":"A"}],"paging":{"next":{"link":"/page2"}}}`)
	})
	mux.HandleFunc("/page2", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		fmt.Fprint(w, `{"results":[{"id":"2","name":"B"}]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewPager(srv.Client(), PagerConfig{BaseURL: srv.URL, Path: "/forms", Token: "secret"})
	recs, err := p.All(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, `{"id":"1","name":"A"}`, recs[0].String())
	assert.Equal(t, `{"id":"2","name":"B"}`, recs[1].String())
	assert.Equal(t, 2, p.Pages())

	rec, err := p.Next(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, rec)
}

// collection serves total records through after/limit link paging
func collection(t *testing.T, total int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		after, _ := strconv.Atoi(r.URL.Query().Get("after"))

		end := after + limit
		if end > total {
			end = total
		}
		items := make([]string, 0, limit)
		for i := after; i < end; i++ {
			items = append(items, fmt.Sprintf(`{"id":"%d"}`, i+1))
		}
		body := `{"results":[` + strings.Join(items, ",") + `]`
		if end < total {
			body += fmt.Sprintf(`,"paging":{"next":{"after":"%d","link":"/items?after=%d"}}`, end, end)
		}
		fmt.Fprint(w, body+"}")
	}))
}

func TestPagerTerminatesForAnyPageSize(t *testing.T) {
	const total = 10
	srv := collection(t, total)
	defer srv.Close()

	for size := 1; size <= total+2; size++ {
		t.Run(strconv.Itoa(size), func(t *testing.T) {
			p := NewPager(srv.Client(), PagerConfig{BaseURL: srv.URL, Path: "/items", PageSize: size})
			recs, err := p.All(context.Background())
			require.NoError(t, err)
			require.Len(t, recs, total)

			seen := map[string]bool{}
			for _, r := range recs {
				seen[r.ID()] = true
			}
			assert.Len(t, seen, total)
		})
	}
}

func TestPagerMaxRecordsTruncatesLastPage(t *testing.T) {
	srv := collection(t, 10)
	defer srv.Close()

	p := NewPager(srv.Client(), PagerConfig{BaseURL: srv.URL, Path: "/items", PageSize: 4, MaxRecords: 6})
	recs, err := p.All(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 6)
	assert.Equal(t, "6", recs[5].ID())
	assert.Equal(t, 2, p.Pages())
}

func TestPagerReset(t *testing.T) {
	srv := collection(t, 3)
	defer srv.Close()

	p := NewPager(srv.Client(), PagerConfig{BaseURL: srv.URL, Path: "/items", PageSize: 2})
	first, err := p.All(context.Background())
	require.NoError(t, err)

	p.Reset()
	second, err := p.All(context.Background())
	require.NoError(t, err)
	require.Len(t, second, len(first))
	for i := range first {
		assert.True(t, first[i].Equal(second[i]))
	}
}

func TestPagerFallsBackToAfterToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("after") == "" {
			fmt.Fprint(w, `{"results":[{"id":"1"}],"paging":{"next":{"after":"abc"}}}`)
			return
		}
		assert.Equal(t, "abc", r.URL.Query().Get("after"))
		fmt.Fprint(w, `{"results":[{"id":"2"}],"paging":{}}`)
	}))
	defer srv.Close()

	recs, err := NewPager(srv.Client(), PagerConfig{BaseURL: srv.URL, Path: "/crm/v3/properties/contacts"}).All(context.Background())
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestPagerPageStyle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("per_page"))
		switch r.URL.Query().Get("page") {
		case "1":
			fmt.Fprint(w, `{"data":[{"id":1},{"id":2}],"metadata":{"paging":{"next_page":2}}}`)
		case "2":
			fmt.Fprint(w, `{"data":[{"id":3}],"metadata":{"paging":{"next_page":null}}}`)
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
		}
	}))
	defer srv.Close()

	p := NewPager(srv.Client(), PagerConfig{
		BaseURL:     srv.URL,
		Path:        "/v2/conversations",
		PageSize:    2,
		Style:       StylePage,
		ResultsPath: "data",
	})
	recs, err := p.All(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "3", recs[2].ID())
}

func TestPagerNoneStyleArrayBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("limit"))
		fmt.Fprint(w, `[{"id":"a"},{"id":"b"}]`)
	}))
	defer srv.Close()

	recs, err := NewPager(nil, PagerConfig{BaseURL: srv.URL, Style: StyleNone}).All(context.Background())
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestPagerStopsOnErrorWithPartialResults(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/emails", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results":[{"id":"1"}],"paging":{"next":{"link":"/broken"}}}`)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"message":"boom"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewPager(srv.Client(), PagerConfig{BaseURL: srv.URL, Path: "/emails"})
	recs, err := p.All(context.Background())
	require.Error(t, err)
	assert.Len(t, recs, 1)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusInternalServerError, fe.Status)
	assert.Contains(t, fe.Body, "boom")

	rec, err := p.Next(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, rec)
}

func TestPagerUnparsableBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>not json</html>`)
	}))
	defer srv.Close()

	_, err := NewPager(srv.Client(), PagerConfig{BaseURL: srv.URL}).All(context.Background())
	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusOK, fe.Status)
	assert.Error(t, fe.Err)
}

func TestPagerRequiresBaseURL(t *testing.T) {
	_, err := NewPager(nil, PagerConfig{}).Next(context.Background())
	assert.Error(t, err)
}
