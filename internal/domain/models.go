package domain

import "time"

// Default point values applied when a level has no score config in the store.
const (
	DefaultLevelScore = 100
	DefaultBonusScore = 10
)

// Pair identifies one level/model combination.
type Pair struct {
	Level string `json:"level"`
	Model string `json:"model"`
}

// String renders the pair in its store form, e.g. "intro:gpt-4o".
func (p Pair) String() string {
	return p.Level + ":" + p.Model
}

// Submission is one recorded attempt: a prompt sent to a model for a level,
// plus the response it produced. Submissions are immutable once written.
type Submission struct {
	Username           string    `json:"username"`
	Level              string    `json:"level"`
	Model              string    `json:"model"`
	Prompt             string    `json:"prompt"`
	Response           string    `json:"response"`
	ExpectedCompletion string    `json:"expectedCompletion"`
	SubmittedAt        time.Time `json:"submittedAt"`
}

// LevelConfig holds the point values for a level. Score is split evenly among
// everyone who cleared the level; Bonus goes to the shortest prompt.
type LevelConfig struct {
	Score int `json:"score"`
	Bonus int `json:"bonus"`
}

// ShortestSubmission records the winner of the shortest-prompt search for one
// level/model pair. PromptLength counts characters, not bytes.
type ShortestSubmission struct {
	Username     string `json:"username"`
	PromptLength int    `json:"promptLength"`
	Key          string `json:"key"`
}

// LeaderboardEntry is one ranked row of the leaderboard.
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Medal       string `json:"medal"`
	Score       int    `json:"score"`
	Cleared     []Pair `json:"cleared"`
	Bonus       []Pair `json:"bonus"`
}

// Credential is a participant login printed by the credentials command.
type Credential struct {
	Username string
	Password string
}
