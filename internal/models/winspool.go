package models

import "time"

// WinsPoolTeam records that a user drafted an NBA team in a guild's wins pool.
// A team belongs to at most one user per guild.
type WinsPoolTeam struct {
	ID           int64     `json:"id"`
	GuildID      string    `json:"guild_id"`
	UserID       string    `json:"user_id"`
	TeamID       int       `json:"team_id"` // balldontlie team id
	TeamName     string    `json:"team_name"`
	AuctionPrice int       `json:"auction_price"`
	CreatedAt    time.Time `json:"created_at"`
}
