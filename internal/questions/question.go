package questions

import (
	"math/rand"
	"strconv"
	"strings"

	"hifz-quiz-service/internal/domain"
)

// Option is one selectable answer.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Question is a renderable question instance built from page content.
type Question struct {
	Type              string   `json:"type"`
	Prompt            string   `json:"prompt"`
	Reference         string   `json:"reference,omitempty"`
	AudioURL          string   `json:"audioUrl,omitempty"`
	Options           []Option `json:"options"`
	CorrectOptionID   string   `json:"-"`
	CorrectAnswerText string   `json:"-"`
}

// Snapshot renders the question as stored in the error log.
func (q *Question) Snapshot() string {
	var b strings.Builder
	b.WriteString(q.Prompt)
	if q.Reference != "" {
		b.WriteString("\n")
		b.WriteString(q.Reference)
	}
	for _, o := range q.Options {
		b.WriteString("\n- ")
		b.WriteString(o.Text)
	}
	return b.String()
}

// Check reports whether optionID is the correct answer. ok is false for an
// option the question does not offer.
func (q *Question) Check(optionID string) (correct bool, ok bool) {
	for _, o := range q.Options {
		if o.ID == optionID {
			return o.ID == q.CorrectOptionID, true
		}
	}
	return false, false
}

// Generator builds one question from page content. It returns nil when the
// content cannot support the question type.
type Generator interface {
	ID() string
	Generate(content []domain.Ayah, narrator string, optionsCount int, rng *rand.Rand) *Question
}

// buildOptions shuffles the correct answer among distinct distractors. It
// returns nil when fewer than count distinct texts are available.
func buildOptions(correct string, pool []string, count int, rng *rand.Rand) ([]Option, string) {
	if count < 2 {
		count = 2
	}
	seen := map[string]struct{}{correct: {}}
	texts := []string{correct}
	for _, i := range rng.Perm(len(pool)) {
		if len(texts) == count {
			break
		}
		t := pool[i]
		if _, dup := seen[t]; dup || t == "" {
			continue
		}
		seen[t] = struct{}{}
		texts = append(texts, t)
	}
	if len(texts) < count {
		return nil, ""
	}

	rng.Shuffle(len(texts), func(i, j int) { texts[i], texts[j] = texts[j], texts[i] })
	opts := make([]Option, len(texts))
	correctID := ""
	for i, t := range texts {
		opts[i] = Option{ID: "o" + strconv.Itoa(i+1), Text: t}
		if t == correct {
			correctID = opts[i].ID
		}
	}
	return opts, correctID
}

func ayahTexts(content []domain.Ayah, skip ...int) []string {
	out := make([]string, 0, len(content))
outer:
	for i, a := range content {
		for _, s := range skip {
			if i == s {
				continue outer
			}
		}
		out = append(out, a.Text)
	}
	return out
}
