package domain

import "time"

// Level is one row of the progression table.
type Level struct {
	Level          int    `json:"level" yaml:"level"`
	Title          string `json:"title" yaml:"title"`
	XPRequired     int    `json:"xp_required" yaml:"xp_required"`
	DiamondsReward int    `json:"diamonds_reward" yaml:"diamonds_reward"`
}

// QuestionCountReward raises the per-session question cap once a level is reached.
type QuestionCountReward struct {
	Level          int  `json:"level" yaml:"level"`
	QuestionsToAdd int  `json:"questions_to_add" yaml:"questions_to_add"`
	IsCumulative   bool `json:"is_cumulative" yaml:"is_cumulative"`
}

// ProgressionSettings is the wire form of the progression config row.
type ProgressionSettings struct {
	Levels             []Level               `json:"levels" yaml:"levels"`
	QuestionRewards    []QuestionCountReward `json:"question_rewards" yaml:"question_rewards"`
	XPPerCorrectAnswer int                   `json:"xp_per_correct_answer" yaml:"xp_per_correct_answer"`
	XPBonusAllCorrect  int                   `json:"xp_bonus_all_correct" yaml:"xp_bonus_all_correct"`
}

// LevelInfo is derived from an XP value on demand and never persisted.
type LevelInfo struct {
	Level           int     `json:"level"`
	Title           string  `json:"title"`
	ProgressPercent float64 `json:"progress"`
	CurrentLevelXP  int     `json:"currentLevelXp"`
	NextLevelXP     int     `json:"nextLevelXp"`
}

// LevelUpEvent reports the level reached and the diamonds it grants.
type LevelUpEvent struct {
	LevelInfo
	DiamondReward int `json:"reward"`
}

// QuestionConfig is one row of the questions config table.
type QuestionConfig struct {
	ID            string `json:"id" yaml:"id"`
	LevelRequired int    `json:"level_required" yaml:"level_required"`
	OptionsCount  int    `json:"options_count" yaml:"options_count"`
}

// Surah identifies the chapter an ayah belongs to.
type Surah struct {
	Number      int    `json:"number"`
	Name        string `json:"name"`
	EnglishName string `json:"englishName"`
}

// Ayah is a single verse used as question material.
type Ayah struct {
	Number        int    `json:"number"`
	Text          string `json:"text"`
	NumberInSurah int    `json:"numberInSurah"`
	Surah         Surah  `json:"surah"`
	Page          int    `json:"page"`
	Juz           int    `json:"juz"`
}

// LiveEvent is a time-boxed challenge spanning a page range.
type LiveEvent struct {
	ID              string   `json:"id" yaml:"id"`
	Title           string   `json:"title" yaml:"title"`
	Description     string   `json:"description" yaml:"description"`
	RewardDiamonds  int      `json:"reward_diamonds" yaml:"reward_diamonds"`
	QuestionsCount  int      `json:"questions_count" yaml:"questions_count"`
	StartPage       int      `json:"start_page" yaml:"start_page"`
	EndPage         int      `json:"end_page" yaml:"end_page"`
	QuestionsRecipe []string `json:"questions_recipe,omitempty" yaml:"questions_recipe"`
}

// Pages lists the pages covered by the event in order.
func (e LiveEvent) Pages() []int {
	if e.EndPage < e.StartPage {
		return []int{e.StartPage}
	}
	pages := make([]int, 0, e.EndPage-e.StartPage+1)
	for p := e.StartPage; p <= e.EndPage; p++ {
		pages = append(pages, p)
	}
	return pages
}

// Quest event tags emitted by the finalizer.
const (
	EventQuizCompleted = "quiz_completed"
	EventMasteryCheck  = "mastery_check"
)

// Quest is a daily quest assigned to a player.
type Quest struct {
	ID              string     `json:"id"`
	PlayerID        string     `json:"playerId"`
	Title           string     `json:"title"`
	EventTag        string     `json:"eventTag"`
	Target          int        `json:"target"`
	Progress        int        `json:"progress"`
	Completed       bool       `json:"completed"`
	RewardDiamonds  int        `json:"rewardDiamonds"`
	QuestionsRecipe []string   `json:"questionsRecipe,omitempty"`
	AssignedOn      time.Time  `json:"assignedOn"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
}

// Player is the persisted profile aggregate.
type Player struct {
	ID                     string    `json:"id"`
	Username               string    `json:"username"`
	XP                     int       `json:"xp"`
	Diamonds               int       `json:"diamonds"`
	Inventory              []string  `json:"inventory"`
	TotalQuizzesCompleted  int       `json:"totalQuizzesCompleted"`
	TotalPlayTimeSeconds   int       `json:"totalPlayTimeSeconds"`
	TotalCorrectAnswers    int       `json:"totalCorrectAnswers"`
	TotalQuestionsAnswered int       `json:"totalQuestionsAnswered"`
	CreatedAt              time.Time `json:"createdAt"`
	UpdatedAt              time.Time `json:"updatedAt"`
}

// Accuracy returns the rounded percentage of correct answers.
func (p Player) Accuracy() int {
	if p.TotalQuestionsAnswered <= 0 {
		return 0
	}
	return (p.TotalCorrectAnswers*100 + p.TotalQuestionsAnswered/2) / p.TotalQuestionsAnswered
}

// Owns reports whether an inventory item has been acquired.
func (p Player) Owns(itemID string) bool {
	for _, id := range p.Inventory {
		if id == itemID {
			return true
		}
	}
	return false
}

// StatisticsDelta is the increment a finished session contributes to a player.
type StatisticsDelta struct {
	QuizzesCompleted  int `json:"quizzesCompleted"`
	PlayTimeSeconds   int `json:"playTimeSeconds"`
	CorrectAnswers    int `json:"correctAnswers"`
	QuestionsAnswered int `json:"questionsAnswered"`
	XPEarned          int `json:"xpEarned"`
	DiamondsEarned    int `json:"diamondsEarned"`
}

// Apply returns a copy of p with the delta added.
func (p Player) Apply(d StatisticsDelta) Player {
	p.TotalQuizzesCompleted += d.QuizzesCompleted
	p.TotalPlayTimeSeconds += d.PlayTimeSeconds
	p.TotalCorrectAnswers += d.CorrectAnswers
	p.TotalQuestionsAnswered += d.QuestionsAnswered
	p.XP += d.XPEarned
	p.Diamonds += d.DiamondsEarned
	return p
}

// ErrorEntry records a question the player got wrong.
type ErrorEntry struct {
	QuestionSnapshot  string `json:"questionSnapshot"`
	CorrectAnswerText string `json:"correctAnswer"`
}

// QuizResult is the persisted record of a completed attempt.
type QuizResult struct {
	ID              string       `json:"id"`
	SessionID       string       `json:"sessionId"`
	PlayerID        string       `json:"playerId"`
	UserName        string       `json:"userName"`
	PageNumber      int          `json:"pageNumber"`
	Narrator        string       `json:"narrator"`
	Score           int          `json:"score"`
	TotalQuestions  int          `json:"totalQuestions"`
	XPEarned        int          `json:"xpEarned"`
	DurationSeconds int          `json:"durationSeconds"`
	Perfect         bool         `json:"perfect"`
	LiveEventID     string       `json:"liveEventId,omitempty"`
	QuestID         string       `json:"questId,omitempty"`
	Errors          []ErrorEntry `json:"errors"`
	CompletedAt     time.Time    `json:"completedAt"`
}

// LeaderboardEntry is a ranked view of a player's XP.
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"playerId"`
	Username string `json:"username"`
	XP       int    `json:"xp"`
}

// Leaderboard captures the ordered top players.
type Leaderboard struct {
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// Achievement is an unlocked milestone.
type Achievement struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	UnlockedAt  time.Time `json:"unlockedAt"`
}
