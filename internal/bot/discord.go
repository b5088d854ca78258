package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/vbonduro/lootbot/internal/domain"
)

// messageTimeout bounds the work done for one inbound message.
const messageTimeout = 2 * time.Minute

// Discord connects a Handler to the Discord gateway.
type Discord struct {
	session *discordgo.Session
	logger  *slog.Logger
}

func NewDiscord(token string, logger *slog.Logger) (*Discord, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentMessageContent
	return &Discord{session: s, logger: logger}, nil
}

func (d *Discord) Send(ctx context.Context, channelID, text string) error {
	if _, err := d.session.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// Run dispatches messages to h until ctx is cancelled. discordgo calls each
// event handler on its own goroutine.
func (d *Discord) Run(ctx context.Context, h *Handler) error {
	d.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		d.logger.Info("connected to discord", "user", r.User.Username, "guilds", len(r.Guilds))
	})
	d.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil {
			return
		}
		msgCtx, cancel := context.WithTimeout(ctx, messageTimeout)
		defer cancel()
		h.HandleMessage(msgCtx, toMessage(m, d.channelName(m.ChannelID), d.selfID()))
	})

	if err := d.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	<-ctx.Done()
	if err := d.session.Close(); err != nil {
		return fmt.Errorf("failed to close discord session: %w", err)
	}
	return nil
}

func (d *Discord) selfID() string {
	if d.session.State == nil || d.session.State.User == nil {
		return ""
	}
	return d.session.State.User.ID
}

// channelName looks the channel up in the state cache first and falls back
// to the REST API.
func (d *Discord) channelName(channelID string) string {
	if d.session.State != nil {
		if ch, err := d.session.State.Channel(channelID); err == nil {
			return ch.Name
		}
	}
	ch, err := d.session.Channel(channelID)
	if err != nil {
		d.logger.Warn("failed to look up channel", "channel_id", channelID, "error", err)
		return ""
	}
	return ch.Name
}

func toMessage(m *discordgo.MessageCreate, channelName, selfID string) Message {
	msg := Message{
		ChannelID:   m.ChannelID,
		ChannelName: channelName,
		Author:      displayName(m),
		FromBot:     m.Author.Bot || (selfID != "" && m.Author.ID == selfID),
		Content:     m.Content,
		Attachments: make([]domain.Attachment, 0, len(m.Attachments)),
	}
	for _, a := range m.Attachments {
		msg.Attachments = append(msg.Attachments, domain.Attachment{
			Filename:    a.Filename,
			URL:         a.URL,
			ContentType: a.ContentType,
			Size:        a.Size,
		})
	}
	return msg
}

// displayName prefers the guild nickname, then the global display name.
func displayName(m *discordgo.MessageCreate) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	if m.Author.GlobalName != "" {
		return m.Author.GlobalName
	}
	return m.Author.Username
}
