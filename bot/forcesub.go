package bot

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"teraleech/internal"
)

// CheckSubCallback is the callback data on the "check again" button
const CheckSubCallback = "checksub"

// Gate enforces channel membership before a user may start transfers.
// Channels are public usernames ("@channel") or raw chat IDs
// ("-1001234567890"). With no channels configured the gate is open.
type Gate struct {
	api      *tgbotapi.BotAPI
	channels []string
	ownerID  int64
}

// NewGate creates a membership gate
func NewGate(api *tgbotapi.BotAPI, channels []string, ownerID int64) *Gate {
	return &Gate{api: api, channels: channels, ownerID: ownerID}
}

// Allowed reports whether the user may proceed and which channels they
// still have to join. Membership lookups that fail (bot not admin,
// channel deleted) fail open: a misconfigured gate must not brick the
// bot.
func (g *Gate) Allowed(userID int64) (bool, []string) {
	if len(g.channels) == 0 || userID == g.ownerID {
		return true, nil
	}

	var missing []string
	for _, channel := range g.channels {
		member, err := g.api.GetChatMember(memberConfig(channel, userID))
		if err != nil {
			internal.LogWarn("Membership check failed for %s: %v", channel, err)
			continue
		}

		switch member.Status {
		case "left", "kicked":
			missing = append(missing, channel)
		}
	}

	return len(missing) == 0, missing
}

// memberConfig builds a GetChatMember request for either channel form
func memberConfig(channel string, userID int64) tgbotapi.GetChatMemberConfig {
	cfg := tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{UserID: userID},
	}
	if chatID, err := strconv.ParseInt(channel, 10, 64); err == nil {
		cfg.ChatID = chatID
	} else {
		cfg.SuperGroupUsername = ensureAtPrefix(channel)
	}
	return cfg
}

// JoinPrompt builds the join-channels message with inline buttons: one
// URL button per public channel plus a "check again" callback.
func (g *Gate) JoinPrompt(chatID int64, missing []string) tgbotapi.MessageConfig {
	var rows [][]tgbotapi.InlineKeyboardButton

	for _, channel := range missing {
		if strings.HasPrefix(ensureAtPrefix(channel), "@") && !isNumericID(channel) {
			username := strings.TrimPrefix(ensureAtPrefix(channel), "@")
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonURL(
					fmt.Sprintf("Join @%s", username),
					fmt.Sprintf("https://t.me/%s", username),
				),
			))
		}
	}

	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("✅ I joined, check again", CheckSubCallback),
	))

	msg := tgbotapi.NewMessage(chatID, "🔒 You must join the channel(s) below to use this bot.")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	return msg
}

func ensureAtPrefix(channel string) string {
	if strings.HasPrefix(channel, "@") || isNumericID(channel) {
		return channel
	}
	return "@" + channel
}

func isNumericID(channel string) bool {
	_, err := strconv.ParseInt(channel, 10, 64)
	return err == nil
}
