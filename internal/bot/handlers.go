package bot

import (
	"context"
	"errors"
	"strings"

	"github.com/wilicw/daaninfobot/internal/mention"
	"github.com/wilicw/daaninfobot/internal/selector"
	"github.com/wilicw/daaninfobot/internal/telegram"
	"github.com/wilicw/daaninfobot/internal/title"
)

const helpText = `\#歡迎光臨洗手室
/help \- 檢視說明
/roll \- 擲骰子
/title *@user* *string* \- 變更使用者標籤
/untitle *@user* \- 清除使用者標籤
/dinner *options\.\.\.* \- 晚餐吃什麼
    e\.g\. ` + "`/dinner 八方雲集 Sukiya 臺鐵便當 元氣`"

const (
	titleUsage   = "請輸入選項 e.g. /title @user string"
	untitleUsage = "請輸入選項 e.g. /untitle @user"
)

func replyOptions(msg *telegram.Message) telegram.SendOptions {
	return telegram.SendOptions{
		ReplyToMessageID:    msg.MessageID,
		DisableNotification: true,
	}
}

func reply(ctx context.Context, d *Deps, msg *telegram.Message, text string) error {
	return d.Messenger.SendMessage(ctx, msg.Chat.ID, text, replyOptions(msg))
}

func handleHelp(ctx context.Context, d *Deps, req Request) error {
	opts := replyOptions(req.Message)
	opts.ParseMode = telegram.ParseModeMarkdownV2
	return d.Messenger.SendMessage(ctx, req.Message.Chat.ID, helpText, opts)
}

func handleRoll(ctx context.Context, d *Deps, req Request) error {
	msg := req.Message
	if selector.Roll(d.Rand) == selector.OutcomeNovelty && strings.TrimSpace(d.RollAnimation) != "" {
		err := d.Messenger.SendAnimation(ctx, msg.Chat.ID, d.RollAnimation, replyOptions(msg))
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		req.logger().Warn("bot_roll_animation_error", "path", d.RollAnimation, "error", err.Error())
	}
	_, err := d.Messenger.SendDice(ctx, msg.Chat.ID, replyOptions(msg))
	return err
}

func handleDinner(ctx context.Context, d *Deps, req Request) error {
	choice, _ := selector.Dinner(d.Rand, selector.Candidates(req.Args))
	return reply(ctx, d, req.Message, choice)
}

func handleTitle(ctx context.Context, d *Deps, req Request) error {
	return applyTitle(ctx, d, req, false)
}

func handleUntitle(ctx context.Context, d *Deps, req Request) error {
	return applyTitle(ctx, d, req, true)
}

func applyTitle(ctx context.Context, d *Deps, req Request, clearing bool) error {
	msg := req.Message
	mode, usage := mention.TitleRequired, titleUsage
	if clearing {
		mode, usage = mention.TitleIgnored, untitleUsage
	}

	found, err := d.Extractor.Extract(ctx, msg.Text, mention.EntitiesFromTelegram(msg.Entities), mode)
	if err != nil {
		var resErr *mention.ResolutionError
		switch {
		case errors.Is(err, mention.ErrNoMention), errors.Is(err, mention.ErrMissingTitle):
			return reply(ctx, d, msg, usage)
		case errors.As(err, &resErr):
			req.logger().Warn("bot_mention_unresolved", "username", resErr.Username, "error", err.Error())
			return reply(ctx, d, msg, title.FailureReply(resErr.Username, clearing, ""))
		default:
			return err
		}
	}

	res := d.Workflow.Apply(ctx, title.Request{
		ChatID: msg.Chat.ID,
		Target: found.Target,
		Title:  found.Title,
		Clear:  clearing,
	})
	return reply(ctx, d, msg, res.Reply)
}
