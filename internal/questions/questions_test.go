package questions

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"

	"hifz-quiz-service/internal/domain"
)

func samplePage() []domain.Ayah {
	fatiha := domain.Surah{Number: 1, Name: "الفاتحة", EnglishName: "Al-Faatiha"}
	texts := []string{
		"bismillah",
		"alhamdulillah",
		"ar-rahman ar-rahim",
		"maliki yawmi ad-din",
		"iyyaka na'budu",
		"ihdina as-sirat",
		"sirat alladhina",
	}
	out := make([]domain.Ayah, len(texts))
	for i, t := range texts {
		out[i] = domain.Ayah{Number: i + 1, Text: t, NumberInSurah: i + 1, Surah: fatiha, Page: 1}
	}
	return out
}

func TestBuiltInGeneratorsProduceAnswerableQuestions(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	reg := DefaultRegistry()
	page := samplePage()

	for _, id := range []string{NextAyahID, PreviousAyahID, AyahPositionID, ListenAndChooseID} {
		q := reg[id].Generate(page, "ar.husary", 4, rng)
		if q == nil {
			t.Fatalf("%s: expected a question", id)
		}
		if len(q.Options) != 4 {
			t.Fatalf("%s: expected 4 options, got %d", id, len(q.Options))
		}
		correct, ok := q.Check(q.CorrectOptionID)
		if !ok || !correct {
			t.Fatalf("%s: correct option not accepted", id)
		}
		found := false
		for _, o := range q.Options {
			if o.Text == q.CorrectAnswerText {
				found = true
			}
		}
		if !found {
			t.Fatalf("%s: correct answer text missing from options", id)
		}
	}
}

func TestListenAndChooseUsesNarratorAudio(t *testing.T) {
	q := listenAndChoose{}.Generate(samplePage(), "ar.minshawi", 3, rand.New(rand.NewSource(1)))
	if q == nil {
		t.Fatalf("expected question")
	}
	if !strings.Contains(q.AudioURL, "/ar.minshawi/") || !strings.HasSuffix(q.AudioURL, ".mp3") {
		t.Fatalf("unexpected audio url %q", q.AudioURL)
	}
}

func TestGeneratorsReturnNilOnInsufficientContent(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	reg := DefaultRegistry()
	single := samplePage()[:1]

	for _, id := range []string{NextAyahID, PreviousAyahID, SurahOfAyahID, ListenAndChooseID} {
		if q := reg[id].Generate(single, "", 4, rng); q != nil {
			t.Fatalf("%s: expected nil for single-ayah content", id)
		}
	}
	if q := reg[AyahPositionID].Generate(nil, "", 4, rng); q != nil {
		t.Fatalf("expected nil for empty content")
	}
}

func TestCheckRejectsUnknownOption(t *testing.T) {
	q := &Question{Options: []Option{{ID: "o1"}, {ID: "o2"}}, CorrectOptionID: "o2"}
	if _, ok := q.Check("o9"); ok {
		t.Fatalf("expected unknown option to be rejected")
	}
	if correct, ok := q.Check("o1"); !ok || correct {
		t.Fatalf("expected o1 to be a wrong answer")
	}
}

type staticSource struct {
	configs []domain.QuestionConfig
	err     error
}

func (s staticSource) LoadQuestions(_ context.Context) ([]domain.QuestionConfig, error) {
	return s.configs, s.err
}

func TestCatalogSkipsUnknownGenerators(t *testing.T) {
	c := NewCatalog(DefaultRegistry())
	c.Load(context.Background(), staticSource{configs: []domain.QuestionConfig{
		{ID: NextAyahID, LevelRequired: 1, OptionsCount: 4},
		{ID: "drag_and_drop", LevelRequired: 1, OptionsCount: 4},
		{ID: AyahPositionID, LevelRequired: 3, OptionsCount: 3},
	}})

	entries := c.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ID != NextAyahID || entries[0].Generator == nil {
		t.Fatalf("unexpected first entry %+v", entries[0])
	}
}

func TestCatalogLoadFailureLeavesEmpty(t *testing.T) {
	c := NewCatalog(DefaultRegistry())
	c.Load(context.Background(), staticSource{err: errors.New("down")})
	if len(c.Entries()) != 0 {
		t.Fatalf("expected empty catalog")
	}
}

func TestAvailableGatesByLevel(t *testing.T) {
	c := NewCatalog(DefaultRegistry())
	c.Set([]domain.QuestionConfig{
		{ID: NextAyahID, LevelRequired: 1},
		{ID: AyahPositionID, LevelRequired: 3},
		{ID: ListenAndChooseID, LevelRequired: 5},
	})

	if got := Available(c.Entries(), 0); len(got) != 0 {
		t.Fatalf("expected none at level 0, got %d", len(got))
	}
	if got := Available(c.Entries(), 3); len(got) != 2 {
		t.Fatalf("expected 2 at level 3, got %d", len(got))
	}
	if got := Available(c.Entries(), 9); len(got) != 3 {
		t.Fatalf("expected 3 at level 9, got %d", len(got))
	}
}

func TestRestrictByRecipe(t *testing.T) {
	c := NewCatalog(DefaultRegistry())
	c.Set([]domain.QuestionConfig{{ID: NextAyahID}, {ID: AyahPositionID}})

	if got := Restrict(c.Entries(), nil); len(got) != 2 {
		t.Fatalf("empty recipe should keep all, got %d", len(got))
	}
	got := Restrict(c.Entries(), []string{AyahPositionID, "unknown"})
	if len(got) != 1 || got[0].ID != AyahPositionID {
		t.Fatalf("unexpected restricted entries %+v", got)
	}
}
