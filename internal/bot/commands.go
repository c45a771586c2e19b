package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/weastcoast/weastcoastbot/internal/coingecko"
	"github.com/weastcoast/weastcoastbot/internal/fitbot"
	"github.com/weastcoast/weastcoastbot/internal/models"
	"github.com/weastcoast/weastcoastbot/internal/omdb"
	"github.com/weastcoast/weastcoastbot/internal/reminder"
	"github.com/weastcoast/weastcoastbot/internal/stonk"
	"github.com/weastcoast/weastcoastbot/internal/winspool"
)

// Reminders schedules and lists reminders; *reminder.Scheduler implements it
type Reminders interface {
	ScheduleText(ctx context.Context, req reminder.ScheduleRequest, timeText string) (*models.Reminder, error)
	ListForOwner(ctx context.Context, userID, channelID string) ([]*models.Reminder, error)
	Cancel(ctx context.Context, id uuid.UUID, userID string) error
}

// WinsPool answers NBA wins pool commands; *winspool.Service implements it
type WinsPool interface {
	GuildStandings(ctx context.Context, guildID string) (*winspool.Standings, error)
	GuildTeamBreakdown(ctx context.Context, guildID string) ([]winspool.OwnerBreakdown, error)
	DraftTeam(ctx context.Context, guildID, userID, teamQuery string, auctionPrice int) (*models.WinsPoolTeam, error)
	ReleaseTeam(ctx context.Context, guildID, teamQuery string) (*models.Team, error)
	Scoreboard(ctx context.Context) ([]winspool.ScoreLine, error)
}

// Crypto looks up coins; *coingecko.Client implements it
type Crypto interface {
	LookupCoinID(ctx context.Context, search string) (string, error)
	Coin(ctx context.Context, id string) (*coingecko.Coin, error)
	PriceHistory(ctx context.Context, id string) ([]coingecko.PricePoint, error)
}

// Stocks looks up tickers; *stonk.Client implements it
type Stocks interface {
	Stock(ctx context.Context, ticker, period, interval string) (*stonk.Stock, error)
}

// Films looks up films; *omdb.Client implements it
type Films interface {
	Find(ctx context.Context, q omdb.Query) (*omdb.Film, error)
}

// Encyclopedia finds article links; *wiki.Client implements it
type Encyclopedia interface {
	Search(ctx context.Context, text string) (string, error)
}

// Fitbit links accounts and reads activity; *fitbot.Service implements it
type Fitbit interface {
	AuthURL(ctx context.Context, userID, guildID string) (string, error)
	Register(ctx context.Context, userID, guildID, code string) error
	Disconnect(ctx context.Context, userID, guildID string) error
	MyWeeklyStats(ctx context.Context, userID, guildID string) (*fitbot.UserWeeklyStats, error)
	GuildWeeklyStats(ctx context.Context, guildID string) (*fitbot.GuildWeeklyStats, error)
}

// Directory resolves user ids to display names
type Directory interface {
	DisplayName(ctx context.Context, guildID, userID string) string
}

// Services are the collaborators behind the commands. Fitbit may be nil,
// which leaves the fitbot commands unregistered.
type Services struct {
	Reminders Reminders
	WinsPool  WinsPool
	Crypto    Crypto
	Stocks    Stocks
	Films     Films
	Wiki      Encyclopedia
	Fitbit    Fitbit
	Names     Directory

	// Location is the zone stock market times are shown in
	Location *time.Location
	// SheetURL links the wins pool standings embed to the draft sheet
	SheetURL string
}

// Command names
const (
	cmdPing             = "ping"
	cmdRemindMe         = "remind_me"
	cmdReminders        = "reminders"
	cmdReminderCancel   = "reminder_cancel"
	cmdWinsPool         = "nba_wins_pool"
	cmdTeamBreakdown    = "nba_team_breakdown"
	cmdWinsPoolDraft    = "nba_wins_pool_draft"
	cmdWinsPoolRelease  = "nba_wins_pool_release"
	cmdScoreboard       = "nba_scoreboard"
	cmdCrypto           = "crypto"
	cmdStonk            = "stonk"
	cmdIMDb             = "imdb"
	cmdWiki             = "wiki"
	cmdFitbotAuth       = "fitbot_auth"
	cmdFitbotRegister   = "fitbot_register"
	cmdFitbotDisconnect = "fitbot_disconnect"
	cmdFitbotStats      = "fitbot_stats"
)

type command struct {
	def *discordgo.ApplicationCommand
	// ephemeral replies are only shown to the invoking user
	ephemeral bool
	run       func(ctx context.Context, inv *Invocation) (*Response, error)
}

// Handlers implements every slash command on top of Services
type Handlers struct {
	services Services
	logger   *zap.Logger
	now      func() time.Time
}

// NewHandlers creates command handlers
func NewHandlers(services Services, logger *zap.Logger) *Handlers {
	if services.Location == nil {
		services.Location = time.UTC
	}
	return &Handlers{
		services: services,
		logger:   logger,
		now:      time.Now,
	}
}

// Run executes a command. A panic in the handler is returned as an error.
func (h *Handlers) Run(ctx context.Context, name string, inv *Invocation) (resp *Response, err error) {
	cmd, ok := h.commands()[name]
	if !ok {
		return nil, fmt.Errorf("unknown command %q", name)
	}
	return h.run(ctx, cmd, inv)
}

func (h *Handlers) run(ctx context.Context, cmd *command, inv *Invocation) (resp *Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("Command panicked",
				zap.String("command", cmd.def.Name),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			err = fmt.Errorf("command %s panicked: %v", cmd.def.Name, r)
		}
	}()
	return cmd.run(ctx, inv)
}

// Definitions returns the application commands to register with Discord
func (h *Handlers) Definitions() []*discordgo.ApplicationCommand {
	cmds := h.commands()
	defs := make([]*discordgo.ApplicationCommand, 0, len(cmds))
	for _, name := range h.commandOrder() {
		if cmd, ok := cmds[name]; ok {
			defs = append(defs, cmd.def)
		}
	}
	return defs
}

func (h *Handlers) commandOrder() []string {
	return []string{
		cmdPing,
		cmdRemindMe, cmdReminders, cmdReminderCancel,
		cmdWinsPool, cmdTeamBreakdown, cmdWinsPoolDraft, cmdWinsPoolRelease, cmdScoreboard,
		cmdCrypto, cmdStonk, cmdIMDb, cmdWiki,
		cmdFitbotAuth, cmdFitbotRegister, cmdFitbotDisconnect, cmdFitbotStats,
	}
}

func stringOption(name, description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        name,
		Description: description,
		Required:    required,
	}
}

func choices(values []string) []*discordgo.ApplicationCommandOptionChoice {
	out := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(values))
	for _, v := range values {
		out = append(out, &discordgo.ApplicationCommandOptionChoice{Name: v, Value: v})
	}
	return out
}

func (h *Handlers) commands() map[string]*command {
	zero := float64(0)

	cmds := []*command{
		{
			def: &discordgo.ApplicationCommand{Name: cmdPing, Description: "Check that the bot is alive"},
			run: h.ping,
		},
		{
			def: &discordgo.ApplicationCommand{
				Name:        cmdRemindMe,
				Description: "Set reminders - recommended to specify timezone",
				Options: []*discordgo.ApplicationCommandOption{
					stringOption("time", "When to remind you, e.g. 'in 2 hours' or 'tomorrow 9am PST'", true),
					stringOption("message", "Optional message to send in reminder", false),
				},
			},
			run: h.remindMe,
		},
		{
			def: &discordgo.ApplicationCommand{
				Name:        cmdReminders,
				Description: "List your pending reminders",
				Options: []*discordgo.ApplicationCommandOption{{
					Type:        discordgo.ApplicationCommandOptionBoolean,
					Name:        "all_channels",
					Description: "Include reminders from every channel",
				}},
			},
			ephemeral: true,
			run:       h.listReminders,
		},
		{
			def: &discordgo.ApplicationCommand{
				Name:        cmdReminderCancel,
				Description: "Cancel one of your pending reminders",
				Options: []*discordgo.ApplicationCommandOption{
					stringOption("id", "Reminder id from /reminders", true),
				},
			},
			ephemeral: true,
			run:       h.cancelReminder,
		},
		{
			def: &discordgo.ApplicationCommand{Name: cmdWinsPool, Description: "NBA wins pool standings for this server"},
			run: h.winsPoolStandings,
		},
		{
			def: &discordgo.ApplicationCommand{Name: cmdTeamBreakdown, Description: "Each wins pool owner's teams and records"},
			run: h.teamBreakdown,
		},
		{
			def: &discordgo.ApplicationCommand{
				Name:        cmdWinsPoolDraft,
				Description: "Draft an NBA team into this server's wins pool",
				Options: []*discordgo.ApplicationCommandOption{
					stringOption("team", "Team name, city or abbreviation", true),
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "price",
						Description: "Auction price paid",
						Required:    true,
						MinValue:    &zero,
					},
					{
						Type:        discordgo.ApplicationCommandOptionUser,
						Name:        "owner",
						Description: "Who drafted the team (defaults to you)",
					},
				},
			},
			run: h.draftTeam,
		},
		{
			def: &discordgo.ApplicationCommand{
				Name:        cmdWinsPoolRelease,
				Description: "Remove a drafted team from this server's wins pool",
				Options: []*discordgo.ApplicationCommandOption{
					stringOption("team", "Team name, city or abbreviation", true),
				},
			},
			run: h.releaseTeam,
		},
		{
			def: &discordgo.ApplicationCommand{Name: cmdScoreboard, Description: "Today's NBA scores"},
			run: h.scoreboard,
		},
		{
			def: &discordgo.ApplicationCommand{
				Name:        cmdCrypto,
				Description: "Crypto coin price summary over the last 24hrs",
				Options: []*discordgo.ApplicationCommandOption{
					stringOption("coin", "Coin id or symbol, e.g. bitcoin or btc", true),
				},
			},
			run: h.crypto,
		},
		{
			def: &discordgo.ApplicationCommand{
				Name:        cmdStonk,
				Description: "Stock price summary for a given period",
				Options: []*discordgo.ApplicationCommandOption{
					stringOption("ticker", "Ticker symbol, e.g. AAPL", true),
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "period",
						Description: "Period to summarise (default " + stonk.DefaultPeriod + ")",
						Choices:     choices(stonk.Periods),
					},
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "interval",
						Description: "Sample interval (default " + stonk.DefaultInterval + ")",
						Choices:     choices(stonk.Intervals),
					},
				},
			},
			run: h.stonk,
		},
		{
			def: &discordgo.ApplicationCommand{
				Name:        cmdIMDb,
				Description: "Search IMDB by film title",
				Options: []*discordgo.ApplicationCommandOption{
					stringOption("title", "Title search term", false),
					stringOption("imdb_id", "IMDb ID", false),
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "year",
						Description: "Year",
					},
				},
			},
			run: h.imdb,
		},
		{
			def: &discordgo.ApplicationCommand{
				Name:        cmdWiki,
				Description: "Search for wikipedia links",
				Options: []*discordgo.ApplicationCommandOption{
					stringOption("search", "What to look up", true),
				},
			},
			run: h.wiki,
		},
	}

	if h.services.Fitbit != nil {
		cmds = append(cmds,
			&command{
				def:       &discordgo.ApplicationCommand{Name: cmdFitbotAuth, Description: "Instructions to authorize fitbot"},
				ephemeral: true,
				run:       h.fitbotAuth,
			},
			&command{
				def: &discordgo.ApplicationCommand{
					Name:        cmdFitbotRegister,
					Description: "Link Fitbit to Fitbot with a code from /fitbot_auth",
					Options: []*discordgo.ApplicationCommandOption{
						stringOption("code", "The code value from the Fitbit redirect URL", true),
					},
				},
				ephemeral: true,
				run:       h.fitbotRegister,
			},
			&command{
				def:       &discordgo.ApplicationCommand{Name: cmdFitbotDisconnect, Description: "Disconnect Fitbit from Fitbot"},
				ephemeral: true,
				run:       h.fitbotDisconnect,
			},
			&command{
				def: &discordgo.ApplicationCommand{
					Name:        cmdFitbotStats,
					Description: "Weekly Fitbit leaderboards",
					Options: []*discordgo.ApplicationCommandOption{{
						Type:        discordgo.ApplicationCommandOptionBoolean,
						Name:        "mine",
						Description: "Show only your own week",
					}},
				},
				run: h.fitbotStats,
			},
		)
	}

	byName := make(map[string]*command, len(cmds))
	for _, c := range cmds {
		byName[c.def.Name] = c
	}
	return byName
}

func (h *Handlers) ping(ctx context.Context, inv *Invocation) (*Response, error) {
	return textResponse(":ping_pong: pong :ping_pong:"), nil
}
