package progression

const (
	// BaseQuestions is the session length every level is allowed.
	BaseQuestions = 5
	// QuestionCountStep is the spacing of the offered session lengths.
	QuestionCountStep = 5
	// DefaultQuestionCount is preselected when offered.
	DefaultQuestionCount = 10
)

// MaxQuestionsForLevel returns the longest session a player at level may start.
// Rules apply in ascending level order; cumulative rules add to the running
// total, non-cumulative rules replace it.
func (e *Engine) MaxQuestionsForLevel(level int) int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.initialized || len(e.rewards) == 0 {
		return BaseQuestions
	}

	extra := 0
	for _, r := range e.rewards {
		if level < r.Level {
			continue
		}
		if r.IsCumulative {
			extra += r.QuestionsToAdd
		} else {
			extra = r.QuestionsToAdd
		}
	}
	return BaseQuestions + extra
}

// QuestionCountOptions lists the selectable session lengths up to max.
func QuestionCountOptions(max int) []int {
	var opts []int
	for n := QuestionCountStep; n <= max; n += QuestionCountStep {
		opts = append(opts, n)
	}
	return opts
}

// DefaultCount picks the preselected session length from opts.
func DefaultCount(opts []int) int {
	if len(opts) == 0 {
		return BaseQuestions
	}
	for _, n := range opts {
		if n == DefaultQuestionCount {
			return n
		}
	}
	return opts[len(opts)-1]
}
