// Package bot turns chat messages into loot replies.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vbonduro/lootbot/internal/domain"
	"github.com/vbonduro/lootbot/internal/service"
)

const (
	inventoryCommand = "inventory"

	noAttachmentMessage = "Please attach an image containing the inventory."
	genericErrorMessage = "Error processing the image. Please try again later."
)

func unreadableImageMessage(user string) string {
	return fmt.Sprintf("I couldn't read that image, %s. Is it a valid PNG or JPEG?", user)
}

// Message is an inbound chat message, independent of the chat platform.
type Message struct {
	ChannelID   string
	ChannelName string
	Author      string
	FromBot     bool
	Content     string
	Attachments []domain.Attachment
}

// Sender delivers a reply to a channel.
type Sender interface {
	Send(ctx context.Context, channelID, text string) error
}

// lootService is the subset of service.LootService that Handler requires.
type lootService interface {
	BragReply(ctx context.Context, user string, att domain.Attachment) (string, error)
	InventoryReport(ctx context.Context, att domain.Attachment) (string, error)
}

type Handler struct {
	svc         lootService
	sender      Sender
	bragChannel string
	prefix      string
	logger      *slog.Logger
}

func NewHandler(svc lootService, sender Sender, bragChannel, prefix string, logger *slog.Logger) *Handler {
	return &Handler{
		svc:         svc,
		sender:      sender,
		bragChannel: bragChannel,
		prefix:      prefix,
		logger:      logger,
	}
}

// HandleMessage routes one message. Failures become chat replies; nothing
// is returned to the caller.
func (h *Handler) HandleMessage(ctx context.Context, msg Message) {
	if msg.FromBot {
		return
	}

	if cmd, ok := h.command(msg.Content); ok {
		if cmd == inventoryCommand {
			h.inventory(ctx, msg)
			return
		}
		h.logger.Debug("ignoring unknown command", "command", cmd, "channel", msg.ChannelName)
	}

	if msg.ChannelName == h.bragChannel && len(msg.Attachments) > 0 {
		h.brag(ctx, msg)
	}
}

// command returns the command word of content when it starts with the
// prefix.
func (h *Handler) command(content string) (string, bool) {
	fields := strings.Fields(content)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], h.prefix) {
		return "", false
	}
	cmd := strings.TrimPrefix(fields[0], h.prefix)
	if cmd == "" {
		return "", false
	}
	return strings.ToLower(cmd), true
}

func (h *Handler) inventory(ctx context.Context, msg Message) {
	if len(msg.Attachments) == 0 {
		h.send(ctx, msg.ChannelID, noAttachmentMessage)
		return
	}
	for _, att := range msg.Attachments {
		text, err := h.svc.InventoryReport(ctx, att)
		if err != nil {
			text = h.errorReply(msg, att, err)
		}
		h.send(ctx, msg.ChannelID, text)
	}
}

func (h *Handler) brag(ctx context.Context, msg Message) {
	for _, att := range msg.Attachments {
		text, err := h.svc.BragReply(ctx, msg.Author, att)
		if err != nil {
			text = h.errorReply(msg, att, err)
		}
		h.send(ctx, msg.ChannelID, text)
	}
}

func (h *Handler) errorReply(msg Message, att domain.Attachment, err error) string {
	if service.IsInputError(err) {
		h.logger.Warn("rejected attachment", "user", msg.Author, "attachment", att.Filename, "error", err)
		return unreadableImageMessage(msg.Author)
	}
	h.logger.Error("failed to process attachment", "user", msg.Author, "attachment", att.Filename, "error", err)
	return genericErrorMessage
}

func (h *Handler) send(ctx context.Context, channelID, text string) {
	if err := h.sender.Send(ctx, channelID, text); err != nil {
		h.logger.Error("failed to send reply", "channel_id", channelID, "error", err)
	}
}
