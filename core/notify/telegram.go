package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"GuildFM/logger"
	"GuildFM/model"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// telegramSender *tgbotapi.BotAPI 满足此接口
type telegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram 把通知渲染成 MarkdownV2 文本发送到 Telegram 会话
type Telegram struct {
	bot telegramSender
}

// NewTelegram 使用 bot token 创建 Telegram 通知后端
func NewTelegram(token string) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	logger.Info("Telegram bot initialized", logger.String("username", bot.Self.UserName))
	return &Telegram{bot: bot}, nil
}

func (t *Telegram) Notify(ctx context.Context, target string, n model.Notification) error {
	chatID, err := ParseChatID(target)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(chatID, RenderMarkdown(n))
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

// ParseChatID 解析 "tg:<chatID>"
func ParseChatID(target string) (int64, error) {
	raw, ok := strings.CutPrefix(target, TelegramPrefix)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTarget, target)
	}
	chatID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTarget, target)
	}
	return chatID, nil
}

// RenderMarkdown renders plain content followed by the embed, if any, as Telegram MarkdownV2.
// All user-supplied text is escaped. When the notification carries a track, the track
// line is rendered from it instead of the Discord-flavored embed description.
func RenderMarkdown(n model.Notification) string {
	var b strings.Builder
	if n.Content != "" {
		b.WriteString(escape(n.Content))
	}
	if e := n.Embed; e != nil {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		if e.Title != "" {
			fmt.Fprintf(&b, "*%s*\n", escape(e.Title))
		}
		switch {
		case n.Track != nil:
			b.WriteString(trackMarkdown(*n.Track))
			b.WriteString("\n")
		case e.Description != "":
			b.WriteString(escape(e.Description))
			b.WriteString("\n")
		}
		for _, f := range e.Fields {
			fmt.Fprintf(&b, "_%s_: %s\n", escape(f.Name), escape(f.Value))
		}
		if e.Footer != "" {
			b.WriteString(escape(e.Footer))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func trackMarkdown(track model.Track) string {
	title := escape(track.DisplayTitle())
	if track.Info.URI != "" {
		title = fmt.Sprintf("[%s](%s)", title, linkEscaper.Replace(track.Info.URI))
	}
	return fmt.Sprintf("%s\nBy *%s*", title, escape(track.DisplayAuthor()))
}

// 链接地址内只需转义 ) 和 \
var linkEscaper = strings.NewReplacer(`\`, `\\`, `)`, `\)`)

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, strings.ReplaceAll(s, `\`, `\\`))
}
