package questions

import (
	"fmt"
	"math/rand"
	"strconv"

	"hifz-quiz-service/internal/domain"
)

// Built-in generator ids as referenced by the questions config table.
const (
	NextAyahID        = "next_ayah"
	PreviousAyahID    = "previous_ayah"
	AyahPositionID    = "ayah_position"
	SurahOfAyahID     = "surah_of_ayah"
	ListenAndChooseID = "listen_and_choose"
)

// AudioBaseURL serves per-ayah recitations as {base}/{narrator}/{ayah number}.mp3.
var AudioBaseURL = "https://cdn.islamic.network/quran/audio/128"

// Registry maps generator ids to strategies.
type Registry map[string]Generator

// DefaultRegistry returns every built-in generator.
func DefaultRegistry() Registry {
	reg := Registry{}
	for _, g := range []Generator{
		neighbourAyah{id: NextAyahID, offset: 1},
		neighbourAyah{id: PreviousAyahID, offset: -1},
		ayahPosition{},
		surahOfAyah{},
		listenAndChoose{},
	} {
		reg[g.ID()] = g
	}
	return reg
}

// neighbourAyah asks for the ayah that follows (offset 1) or precedes (-1) a
// shown ayah within the same surah.
type neighbourAyah struct {
	id     string
	offset int
}

func (g neighbourAyah) ID() string { return g.id }

func (g neighbourAyah) Generate(content []domain.Ayah, _ string, optionsCount int, rng *rand.Rand) *Question {
	var anchors []int
	for i := range content {
		j := i + g.offset
		if j < 0 || j >= len(content) || content[j].Surah.Number != content[i].Surah.Number {
			continue
		}
		anchors = append(anchors, i)
	}
	if len(anchors) == 0 {
		return nil
	}
	i := anchors[rng.Intn(len(anchors))]
	target := content[i+g.offset]

	opts, correctID := buildOptions(target.Text, ayahTexts(content, i, i+g.offset), optionsCount, rng)
	if opts == nil {
		return nil
	}
	prompt := "Which ayah comes after this one?"
	if g.offset < 0 {
		prompt = "Which ayah comes before this one?"
	}
	return &Question{
		Type:              g.id,
		Prompt:            prompt,
		Reference:         content[i].Text,
		Options:           opts,
		CorrectOptionID:   correctID,
		CorrectAnswerText: target.Text,
	}
}

// ayahPosition asks for the number of an ayah within its surah.
type ayahPosition struct{}

func (ayahPosition) ID() string { return AyahPositionID }

func (ayahPosition) Generate(content []domain.Ayah, _ string, optionsCount int, rng *rand.Rand) *Question {
	if len(content) == 0 {
		return nil
	}
	a := content[rng.Intn(len(content))]
	if a.NumberInSurah <= 0 {
		return nil
	}
	if optionsCount < 2 {
		optionsCount = 2
	}

	lo := a.NumberInSurah - optionsCount
	if lo < 1 {
		lo = 1
	}
	var pool []string
	for n := lo; n <= a.NumberInSurah+optionsCount; n++ {
		if n != a.NumberInSurah {
			pool = append(pool, strconv.Itoa(n))
		}
	}
	correct := strconv.Itoa(a.NumberInSurah)
	opts, correctID := buildOptions(correct, pool, optionsCount, rng)
	if opts == nil {
		return nil
	}
	return &Question{
		Type:              AyahPositionID,
		Prompt:            fmt.Sprintf("What is the number of this ayah in Surah %s?", surahLabel(a.Surah)),
		Reference:         a.Text,
		Options:           opts,
		CorrectOptionID:   correctID,
		CorrectAnswerText: correct,
	}
}

// surahOfAyah asks which surah an ayah belongs to. Only pages that span
// enough surahs can support it.
type surahOfAyah struct{}

func (surahOfAyah) ID() string { return SurahOfAyahID }

func (surahOfAyah) Generate(content []domain.Ayah, _ string, optionsCount int, rng *rand.Rand) *Question {
	if len(content) == 0 {
		return nil
	}
	a := content[rng.Intn(len(content))]
	var pool []string
	for _, other := range content {
		if other.Surah.Number != a.Surah.Number {
			pool = append(pool, surahLabel(other.Surah))
		}
	}
	correct := surahLabel(a.Surah)
	opts, correctID := buildOptions(correct, pool, optionsCount, rng)
	if opts == nil {
		return nil
	}
	return &Question{
		Type:              SurahOfAyahID,
		Prompt:            "Which surah is this ayah from?",
		Reference:         a.Text,
		Options:           opts,
		CorrectOptionID:   correctID,
		CorrectAnswerText: correct,
	}
}

// listenAndChoose plays a recitation and asks for the matching text.
type listenAndChoose struct{}

func (listenAndChoose) ID() string { return ListenAndChooseID }

func (listenAndChoose) Generate(content []domain.Ayah, narrator string, optionsCount int, rng *rand.Rand) *Question {
	if len(content) == 0 {
		return nil
	}
	if narrator == "" {
		narrator = domain.DefaultNarrator
	}
	i := rng.Intn(len(content))
	a := content[i]
	opts, correctID := buildOptions(a.Text, ayahTexts(content, i), optionsCount, rng)
	if opts == nil {
		return nil
	}
	return &Question{
		Type:              ListenAndChooseID,
		Prompt:            "Listen to the recitation and choose the ayah you heard.",
		AudioURL:          fmt.Sprintf("%s/%s/%d.mp3", AudioBaseURL, narrator, a.Number),
		Options:           opts,
		CorrectOptionID:   correctID,
		CorrectAnswerText: a.Text,
	}
}

func surahLabel(s domain.Surah) string {
	if s.EnglishName != "" {
		return s.EnglishName
	}
	if s.Name != "" {
		return s.Name
	}
	return strconv.Itoa(s.Number)
}
