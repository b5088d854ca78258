package bot

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"

	"github.com/vbonduro/lootbot/internal/domain"
)

func messageCreate(author *discordgo.User, member *discordgo.Member) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{Message: &discordgo.Message{
		ChannelID: "chan-1",
		Content:   "look at this",
		Author:    author,
		Member:    member,
		Attachments: []*discordgo.MessageAttachment{{
			ID:          "att-1",
			Filename:    "loot.png",
			URL:         "https://cdn.discordapp.com/loot.png",
			ContentType: "image/png",
			Size:        2048,
		}},
	}}
}

func TestToMessage(t *testing.T) {
	m := messageCreate(&discordgo.User{ID: "u1", Username: "rook_42"}, nil)

	msg := toMessage(m, "loot-brags", "bot-id")

	assert.Equal(t, Message{
		ChannelID:   "chan-1",
		ChannelName: "loot-brags",
		Author:      "rook_42",
		Content:     "look at this",
		Attachments: []domain.Attachment{{
			Filename:    "loot.png",
			URL:         "https://cdn.discordapp.com/loot.png",
			ContentType: "image/png",
			Size:        2048,
		}},
	}, msg)
}

func TestToMessageFromBot(t *testing.T) {
	other := toMessage(messageCreate(&discordgo.User{ID: "u2", Username: "otherbot", Bot: true}, nil), "", "bot-id")
	self := toMessage(messageCreate(&discordgo.User{ID: "bot-id", Username: "lootbot"}, nil), "", "bot-id")
	human := toMessage(messageCreate(&discordgo.User{ID: "u1", Username: "rook"}, nil), "", "")

	assert.True(t, other.FromBot)
	assert.True(t, self.FromBot)
	assert.False(t, human.FromBot)
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name     string
		author   *discordgo.User
		member   *discordgo.Member
		expected string
	}{
		{
			name:     "nickname wins",
			author:   &discordgo.User{Username: "rook_42", GlobalName: "Rook"},
			member:   &discordgo.Member{Nick: "Raid Boss"},
			expected: "Raid Boss",
		},
		{
			name:     "global name without nickname",
			author:   &discordgo.User{Username: "rook_42", GlobalName: "Rook"},
			member:   &discordgo.Member{},
			expected: "Rook",
		},
		{
			name:     "username fallback",
			author:   &discordgo.User{Username: "rook_42"},
			expected: "rook_42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, displayName(messageCreate(tt.author, tt.member)))
		})
	}
}
