package upload

import (
	"time"

	"github.com/resultcap/platform/internal/geometry"
)

// Auth identifies the user to the result backend.
type Auth struct {
	UserID string
	Token  string
}

// Header returns the Authorization header value, or "" when unauthenticated.
func (a Auth) Header() string {
	if a.UserID == "" || a.Token == "" {
		return ""
	}
	return a.UserID + "|" + a.Token
}

// VersusEntry is one player row of a versus result.
type VersusEntry struct {
	Nickname string  `json:"nickname"`
	Score    float64 `json:"score"`
	Rank     int     `json:"rank"`
	MaxCombo bool    `json:"maxCombo"`
}

// PlayData is the backend's authoritative reading of an uploaded screen.
type PlayData struct {
	IsVerified bool          `json:"isVerified"`
	ScreenType string        `json:"screenType"`
	SongID     int           `json:"songId"`
	SongTitle  string        `json:"songTitle"`
	Button     int           `json:"button"`
	Pattern    string        `json:"pattern"`
	Level      int           `json:"level"`
	Score      float64       `json:"score"`
	MaxCombo   bool          `json:"maxCombo"`
	Versus     []VersusEntry `json:"versus,omitempty"`
}

// Kind maps the backend screen type onto the local enum. Unknown values map
// to None.
func (p *PlayData) Kind() geometry.ScreenType {
	st, err := geometry.ParseScreenType(p.ScreenType)
	if err != nil {
		return geometry.None
	}
	return st
}

// Comparable reports whether the result is a single chart play that has a
// personal best to compare against.
func (p *PlayData) Comparable() bool {
	if !p.IsVerified || p.SongID == 0 {
		return false
	}
	switch p.Kind() {
	case geometry.Versus, geometry.Collection:
		return false
	default:
		return true
	}
}

// Best is the user's previous best on a chart.
type Best struct {
	Score     float64   `json:"score"`
	MaxCombo  bool      `json:"maxCombo"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Outcome is the result of one upload. Exactly one of PlayData and
// Unverified is set.
type Outcome struct {
	PlayData   *PlayData
	Unverified bool
	Previous   *Best
}

// Improvement returns the score delta against the previous best, and false
// when there is nothing to compare with.
func (o Outcome) Improvement() (float64, bool) {
	if o.PlayData == nil || o.Previous == nil {
		return 0, false
	}
	return o.PlayData.Score - o.Previous.Score, true
}

type uploadResponse struct {
	PlayData *PlayData `json:"playData"`
}

type bestResponse struct {
	Best *Best `json:"best"`
}
