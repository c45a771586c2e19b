package bot

import (
	"bytes"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/weastcoast/weastcoastbot/internal/apperrors"
	"github.com/weastcoast/weastcoastbot/internal/render"
)

// Embed colors
const (
	colorOrange     = 0xE67E22
	colorGreen      = 0x2ECC71
	colorRed        = 0xE74C3C
	colorFitbitBlue = 0x00B0B9
)

const chartFileName = "chart.png"

// Response is the reply to a command
type Response struct {
	Content string
	Embeds  []*discordgo.MessageEmbed
	Files   []*discordgo.File
}

func textResponse(content string) *Response {
	return &Response{Content: content}
}

func embedResponse(embed *discordgo.MessageEmbed) *Response {
	return &Response{Embeds: []*discordgo.MessageEmbed{embed}}
}

// attachChart adds png as the embed's image
func (r *Response) attachChart(embed *discordgo.MessageEmbed, png []byte) {
	r.Files = append(r.Files, &discordgo.File{
		Name:        chartFileName,
		ContentType: "image/png",
		Reader:      bytes.NewReader(png),
	})
	embed.Image = &discordgo.MessageEmbedImage{URL: "attachment://" + chartFileName}
}

func embedFields(fields []render.Field) []*discordgo.MessageEmbedField {
	out := make([]*discordgo.MessageEmbedField, 0, len(fields))
	for _, f := range fields {
		value := f.Value
		if value == "" {
			value = "N/A"
		}
		out = append(out, &discordgo.MessageEmbedField{Name: f.Name, Value: value, Inline: f.Inline})
	}
	return out
}

// errorText is what the invoking user sees when a command fails. Operator
// errors are not shown verbatim.
func errorText(command string, err error) string {
	msg, ok := apperrors.UserMessage(err)
	if !ok {
		return fmt.Sprintf("Sorry, something went wrong running /%s.", command)
	}
	if command == cmdRemindMe {
		return "Sorry, couldn't process reminder: " + msg
	}
	return msg
}

// Invocation is a parsed slash command call
type Invocation struct {
	UserID    string
	ChannelID string
	GuildID   string

	options           map[string]*discordgo.ApplicationCommandInteractionDataOption
	responseMessageID func() string
}

// NewInvocation indexes the command options by name
func NewInvocation(userID, channelID, guildID string, opts []*discordgo.ApplicationCommandInteractionDataOption) *Invocation {
	inv := &Invocation{
		UserID:    userID,
		ChannelID: channelID,
		GuildID:   guildID,
		options:   make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts)),
	}
	for _, o := range opts {
		inv.options[o.Name] = o
	}
	return inv
}

// String returns a string option, or "" when it was not given
func (inv *Invocation) String(name string) string {
	if o, ok := inv.options[name]; ok {
		return o.StringValue()
	}
	return ""
}

// Int returns an integer option and whether it was given
func (inv *Invocation) Int(name string) (int64, bool) {
	if o, ok := inv.options[name]; ok {
		return o.IntValue(), true
	}
	return 0, false
}

// Bool returns a boolean option, false when it was not given
func (inv *Invocation) Bool(name string) bool {
	if o, ok := inv.options[name]; ok {
		return o.BoolValue()
	}
	return false
}

// User returns the id of a user option, or "" when it was not given
func (inv *Invocation) User(name string) string {
	if o, ok := inv.options[name]; ok {
		return o.UserValue(nil).ID
	}
	return ""
}

// ResponseMessageID returns the id of the message holding the reply, or ""
// when it cannot be resolved.
func (inv *Invocation) ResponseMessageID() string {
	if inv.responseMessageID == nil {
		return ""
	}
	return inv.responseMessageID()
}
