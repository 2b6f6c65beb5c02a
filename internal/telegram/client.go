// Package telegram delivers StockPulse alerts through the Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"stockpulse/internal/anomaly"
	"stockpulse/internal/models"
)

// Client posts MarkdownV2 messages to a single chat.
type Client struct {
	bot        *tgbotapi.BotAPI
	chatID     int64
	maxRetries int
	retryDelay time.Duration

	// StatusFunc, when set, supplies the reply for the /status command.
	StatusFunc func() string
}

// NewClient builds a client for the given bot token and chat.
// The chat ID is validated before any network call is made.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID %q: %w", chatID, err)
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:        bot,
		chatID:     id,
		maxRetries: maxRetries,
		retryDelay: retryDelayBase,
	}, nil
}

// ListenForCommands handles bot commands in a background goroutine until ctx
// is cancelled. Supported commands: /ping, /status.
func (c *Client) ListenForCommands(ctx context.Context) {
	params := tgbotapi.NewUpdate(0)
	params.Timeout = 60
	updates := c.bot.GetUpdatesChan(params)

	go func() {
		defer c.bot.StopReceivingUpdates()
		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message == nil || !update.Message.IsCommand() {
					continue
				}
				c.handleCommand(update.Message)
			}
		}
	}()
}

func (c *Client) handleCommand(msg *tgbotapi.Message) {
	var reply string
	switch msg.Command() {
	case "ping":
		reply = "Pong"
	case "status":
		if c.StatusFunc != nil {
			reply = c.StatusFunc()
		} else {
			reply = "Running"
		}
	default:
		return
	}
	c.bot.Send(tgbotapi.NewMessage(msg.Chat.ID, reply)) //nolint:errcheck
}

// sendMarkdownV2 sends one MarkdownV2 message, retrying with a linearly
// growing delay between attempts.
func (c *Client) sendMarkdownV2(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(c.retryDelay * time.Duration(attempt))
		}
		if _, lastErr = c.bot.Send(msg); lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("telegram send failed after %d attempts: %w", c.maxRetries, lastErr)
}

// SendStartup announces that the service came up.
func (c *Client) SendStartup(subreddits []string, windowMinutes int) error {
	subs := escapeMarkdownV2("r/" + strings.Join(subreddits, ", r/"))
	text := fmt.Sprintf("📡 *StockPulse started*\nWatching %s \\(%d minute window\\)", subs, windowMinutes)
	return c.sendMarkdownV2(text)
}

// SendError reports a failed polling cycle. The monitor calls this once per
// failure streak, not on every failed cycle.
func (c *Client) SendError(cycleErr error) error {
	text := "⚠️ *Polling error*\n`" + escapeMarkdownV2(cycleErr.Error()) + "`"
	return c.sendMarkdownV2(text)
}

// SendRecovery reports that polling succeeded again after failures.
func (c *Client) SendRecovery(failureCount int) error {
	text := fmt.Sprintf("✅ *Polling recovered* after %d failed cycle\\(s\\)", failureCount)
	return c.sendMarkdownV2(text)
}

// SendAnomalyAlert sends a notification for unusual mention activity.
// prices may hold a latest quote per ticker; tickers without one are
// reported without the price line.
func (c *Client) SendAnomalyAlert(anomalies []anomaly.Result, prices map[string]*models.PriceQuote) error {
	return c.sendMarkdownV2(c.formatAnomalyMessage(anomalies, prices))
}

// formatAnomalyMessage formats anomalies into a Telegram MarkdownV2 message.
func (c *Client) formatAnomalyMessage(anomalies []anomaly.Result, prices map[string]*models.PriceQuote) string {
	message := "🚨 *Unusual Mention Activity*\n\n"

	dateStr := escapeMarkdownV2(time.Now().UTC().Format("2006-01-02 15:04:05"))
	message += fmt.Sprintf("📅 Detected: %s UTC\n\n", dateStr)

	for i, res := range anomalies {
		directionEmoji := "🚀"
		if res.Direction == anomaly.DirectionDrop {
			directionEmoji = "📉"
		}

		zStr := escapeMarkdownV2(fmt.Sprintf("%.2f", res.ZScore))
		message += fmt.Sprintf("%d\\. %s *%s* %s\n", i+1, directionEmoji,
			escapeMarkdownV2(res.Ticker), escapeMarkdownV2(res.Direction))
		message += fmt.Sprintf("   %d mentions this window \\(z\\-score %s\\)\n", res.MentionCount, zStr)

		if q, ok := prices[res.Ticker]; ok && q != nil {
			priceStr := escapeMarkdownV2(fmt.Sprintf("$%.2f", q.Price))
			changeStr := escapeMarkdownV2(fmt.Sprintf("%+.1f%%", q.ChangePct))
			message += fmt.Sprintf("   💵 %s \\(%s prev close\\)\n", priceStr, changeStr)
		}

		message += "\n"
	}

	return message
}

// markdownEscaper escapes every character MarkdownV2 treats as syntax.
var markdownEscaper = strings.NewReplacer(
	"_", "\\_", "*", "\\*", "[", "\\[", "]", "\\]", "(", "\\(", ")", "\\)",
	"~", "\\~", "`", "\\`", ">", "\\>", "#", "\\#", "+", "\\+", "-", "\\-",
	"=", "\\=", "|", "\\|", "{", "\\{", "}", "\\}", ".", "\\.", "!", "\\!",
)

func escapeMarkdownV2(text string) string {
	return markdownEscaper.Replace(text)
}
