package content

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"hifz-quiz-service/internal/domain"
)

const pageBody = `{"code":200,"status":"OK","data":{"number":%d,"ayahs":[
 {"number":1,"text":"bismillah","numberInSurah":1,"juz":1,"page":%d,"surah":{"number":1,"name":"الفاتحة","englishName":"Al-Faatiha"}},
 {"number":2,"text":"alhamdulillah","numberInSurah":2,"juz":1,"surah":{"number":1,"name":"الفاتحة","englishName":"Al-Faatiha"}}
]}}`

func TestClientLoadPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/page/1/quran-uthmani" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprintf(w, pageBody, 1, 1)
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/v1/", "", time.Second)
	ayahs, err := c.LoadPage(context.Background(), 1)
	if err != nil {
		t.Fatalf("load page: %v", err)
	}
	if len(ayahs) != 2 {
		t.Fatalf("expected 2 ayahs, got %d", len(ayahs))
	}
	if ayahs[0].Surah.EnglishName != "Al-Faatiha" || ayahs[1].NumberInSurah != 2 {
		t.Fatalf("unexpected ayahs %+v", ayahs)
	}
	if ayahs[1].Page != 1 {
		t.Fatalf("expected missing page to default to the requested one, got %d", ayahs[1].Page)
	}
}

func TestClientRejectsBadStatusAndEmptyPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/page/2/quran-uthmani" {
			fmt.Fprint(w, `{"code":200,"data":{"ayahs":[]}}`)
			return
		}
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	if _, err := c.LoadPage(context.Background(), 1); err == nil {
		t.Fatalf("expected error on bad status")
	}
	if _, err := c.LoadPage(context.Background(), 2); !errors.Is(err, domain.ErrContentUnavailable) {
		t.Fatalf("expected content unavailable, got %v", err)
	}
}

type pageFunc func(ctx context.Context, page int) ([]domain.Ayah, error)

func (f pageFunc) LoadPage(ctx context.Context, page int) ([]domain.Ayah, error) { return f(ctx, page) }

func TestFetchPagesKeepsOrderAndSkipsFailures(t *testing.T) {
	var calls int32
	loader := pageFunc(func(_ context.Context, page int) ([]domain.Ayah, error) {
		atomic.AddInt32(&calls, 1)
		if page == 3 {
			return nil, errors.New("boom")
		}
		// Later pages answer first to exercise ordering.
		time.Sleep(time.Duration(10-page) * time.Millisecond)
		return []domain.Ayah{{Number: page * 100, Page: page}}, nil
	})

	got := FetchPages(context.Background(), loader, []int{1, 2, 3, 4})
	if atomic.LoadInt32(&calls) != 4 {
		t.Fatalf("expected 4 loads, got %d", calls)
	}
	want := []int{1, 2, 4}
	if len(got) != len(want) {
		t.Fatalf("expected %d ayahs, got %d", len(want), len(got))
	}
	for i, p := range want {
		if got[i].Page != p {
			t.Fatalf("position %d: expected page %d, got %d", i, p, got[i].Page)
		}
	}
}
