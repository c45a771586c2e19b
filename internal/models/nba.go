package models

import "time"

// GameStatusFinal marks a completed game
const GameStatusFinal = "Final"

// Team is an NBA franchise, keyed by its balldontlie id
type Team struct {
	ID           int    `json:"id"`
	Abbreviation string `json:"abbreviation"`
	City         string `json:"city"`
	Conference   string `json:"conference"`
	Division     string `json:"division"`
	FullName     string `json:"full_name"`
	Name         string `json:"name"`
}

// Game is a single NBA game. Date is the UTC calendar date of the slate it
// belongs to. Status is "Final" once the game is over; otherwise it holds a
// tip-off time or the live period description.
type Game struct {
	ID               int       `json:"id"`
	Date             time.Time `json:"date"`
	Season           int       `json:"season"`
	Status           string    `json:"status"`
	Period           int       `json:"period"`
	Clock            string    `json:"time"`
	Postseason       bool      `json:"postseason"`
	HomeTeamID       int       `json:"home_team_id"`
	VisitorTeamID    int       `json:"visitor_team_id"`
	HomeTeamAbbr     string    `json:"home_team_abbreviation"`
	VisitorTeamAbbr  string    `json:"visitor_team_abbreviation"`
	HomeTeamScore    int       `json:"home_team_score"`
	VisitorTeamScore int       `json:"visitor_team_score"`
}

// IsFinal reports whether the game has a terminal status
func (g *Game) IsFinal() bool {
	return g.Status == GameStatusFinal
}

// HasStarted reports whether the game has tipped off. Scheduled games carry a
// tip-off time ("7:30 pm ET") and postponed ones start with "P".
func (g *Game) HasStarted() bool {
	if g.Status == "" {
		return false
	}
	c := g.Status[0]
	return !(c >= '0' && c <= '9') && c != 'P'
}
