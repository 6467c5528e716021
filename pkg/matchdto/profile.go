package matchdto

import "time"

// RatingProfile is the external view of a participant's standing in one
// sport category.
type RatingProfile struct {
	ParticipantID string    `json:"participant_id"`
	Category      string    `json:"category"`
	Rating        float64   `json:"rating"`
	GamesPlayed   int       `json:"games_played"`
	Wins          int       `json:"wins"`
	Losses        int       `json:"losses"`
	Draws         int       `json:"draws"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type ProfileResponse struct {
	Profile *RatingProfile `json:"profile"`
}
