package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"teraleech/downloader"
	"teraleech/internal"
	"teraleech/utils"
)

// Bot wires the Telegram update loop to the transfer pipeline
type Bot struct {
	api        *tgbotapi.BotAPI
	cfg        *internal.Config
	registry   *Registry
	gate       *Gate
	uploader   *Uploader
	resolver   internal.LinkResolver
	validator  *utils.LinkValidator
	fileOps    *utils.FileOperations
	httpClient *utils.HTTPClient
	rateLimit  int64
}

// New connects to the Telegram API and assembles the pipeline
func New(cfg *internal.Config) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("connecting to Telegram: %w", err)
	}

	internal.LogInfo("Authorized as @%s", api.Self.UserName)

	httpClient := utils.NewHTTPClientWithConfig(&utils.HTTPClientConfig{
		Timeout:  time.Duration(cfg.DefaultTimeout) * time.Second,
		ProxyURL: cfg.ProxyURL,
	})

	rateLimit, err := cfg.RateLimitBytes()
	if err != nil {
		return nil, err
	}

	return &Bot{
		api:        api,
		cfg:        cfg,
		registry:   NewRegistry(),
		gate:       NewGate(api, cfg.ForceSubChannels, cfg.OwnerID),
		uploader:   NewUploader(api, cfg.MaxFileSize),
		resolver:   downloader.NewResolverClientWithHTTP(cfg.ResolverEndpoints, httpClient),
		validator:  utils.NewLinkValidator(),
		fileOps:    utils.NewFileOperations(),
		httpClient: httpClient,
		rateLimit:  rateLimit,
	}, nil
}

// Registry exposes the session registry for the health endpoint
func (b *Bot) Registry() *Registry {
	return b.registry
}

// Run processes updates until the context is cancelled
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	internal.LogInfo("Listening for updates")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.dispatch(update)
		}
	}
}

// dispatch routes one update. Transfers run in their own goroutine so
// the loop never blocks behind a download.
func (b *Bot) dispatch(update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		b.handleCallback(update.CallbackQuery)
		return
	}

	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	if msg.IsCommand() {
		b.handleCommand(msg)
		return
	}

	if msg.Text == "" {
		return
	}

	go b.handleTransfer(msg)
}

func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		b.reply(msg, "👋 Send me a Terabox share link and I will fetch the file for you.\n\n"+
			"/cancel stops your running download.\n"+
			"/stats shows what the bot is doing.")
	case "help":
		b.reply(msg, "Send a Terabox link (terabox.com, 1024terabox.com, 4funbox.com, "+
			"mirrobox.com, nephobox.com and friends).\n\n"+
			"One download at a time per user. Files over "+
			humanize.IBytes(uint64(b.cfg.MaxFileSize))+" cannot be sent.\n\n"+
			"/cancel — stop your running download\n"+
			"/stats — active transfers")
	case "cancel":
		if b.registry.Cancel(msg.From.ID) {
			b.reply(msg, "🚫 Cancelling your download...")
		} else {
			b.reply(msg, "Nothing to cancel.")
		}
	case "stats":
		b.reply(msg, b.statsText())
	default:
		b.reply(msg, "Unknown command. Send a Terabox link or /help.")
	}
}

func (b *Bot) statsText() string {
	sessions := b.registry.Snapshot()
	if len(sessions) == 0 {
		return "📊 No active transfers."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 %d active transfer(s):\n", len(sessions))
	for _, s := range sessions {
		name := s.Filename()
		if name == "" {
			name = "(resolving)"
		}
		fmt.Fprintf(&sb, "• %s — running %s\n", name, time.Since(s.StartedAt).Round(time.Second))
	}
	return sb.String()
}

func (b *Bot) handleCallback(query *tgbotapi.CallbackQuery) {
	if query.Data != CheckSubCallback || query.From == nil {
		return
	}

	allowed, _ := b.gate.Allowed(query.From.ID)

	text := "Still missing a channel. Join and try again."
	if allowed {
		text = "✅ You're in! Send your link."
	}

	if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, text)); err != nil {
		internal.LogWarn("Callback answer failed: %v", err)
	}

	if allowed && query.Message != nil {
		edit := tgbotapi.NewEditMessageText(query.Message.Chat.ID, query.Message.MessageID,
			"✅ Subscription confirmed. Send me a Terabox link.")
		if _, err := b.api.Send(edit); err != nil {
			internal.LogWarn("Edit after callback failed: %v", err)
		}
	}
}

// handleTransfer runs the full pipeline for one message:
// validate, gate, register, resolve, download, upload, cleanup.
func (b *Bot) handleTransfer(msg *tgbotapi.Message) {
	userID := msg.From.ID
	chatID := msg.Chat.ID

	link, err := b.validator.ExtractShareLink(msg.Text)
	if err != nil {
		b.reply(msg, internal.AsLeechError(err).UserMessage())
		return
	}

	if allowed, missing := b.gate.Allowed(userID); !allowed {
		if _, err := b.api.Send(b.gate.JoinPrompt(chatID, missing)); err != nil {
			internal.LogWarn("Join prompt failed: %v", err)
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session, err := b.registry.Begin(userID, chatID, cancel)
	if err != nil {
		b.reply(msg, internal.AsLeechError(err).UserMessage())
		return
	}
	defer b.registry.Finish(userID)

	statusID := b.sendStatus(msg, "🔎 Resolving link...")
	session.StatusMessageID = statusID

	workDir, err := b.fileOps.UniqueWorkDir(b.cfg.DownloadDir)
	if err != nil {
		internal.LogError("Work dir creation failed: %v", err)
		b.editStatus(chatID, statusID, "❌ Server storage error. Try again later.")
		return
	}
	session.SetWorkDir(workDir)

	target, err := b.resolver.Resolve(ctx, link)
	if err != nil {
		b.finishWithError(chatID, statusID, session, err)
		return
	}
	session.SetFilename(target.Filename)

	if target.HasKnownSize() && target.Size > b.cfg.MaxFileSize {
		// Declared sizes are rounded display strings; warn but let the
		// real size on disk decide.
		internal.LogWarn("Declared size %s exceeds upload ceiling, downloading anyway", target.SizeText)
	}

	b.editStatus(chatID, statusID, fmt.Sprintf("⬇️ Downloading %s (%s)...", target.Filename, sizeLabel(target)))

	engine := downloader.NewEngineWithHTTP(b.httpClient)
	engine.SetReporter(utils.NewThrottledReporter(internal.StatusEditInterval, 256*1024, func(downloaded, total int64) {
		b.editStatus(chatID, statusID, progressText(target.Filename, downloaded, total))
	}))

	path, err := engine.Download(ctx, target, &internal.TransferOptions{
		OutputDir: workDir,
		RateLimit: b.rateLimit,
	})
	if err != nil {
		b.finishWithError(chatID, statusID, session, err)
		return
	}

	b.editStatus(chatID, statusID, fmt.Sprintf("📤 Uploading %s...", target.Filename))

	if err := b.uploader.Upload(chatID, path, target.Filename); err != nil {
		b.finishWithError(chatID, statusID, session, err)
		return
	}

	b.editStatus(chatID, statusID, fmt.Sprintf("✅ Sent %s", target.Filename))
	internal.LogInfo("Transfer complete for user %d: %s", userID, target.Filename)
}

// finishWithError writes the terminal status line for a failed or
// cancelled transfer
func (b *Bot) finishWithError(chatID int64, statusID int, session *Session, err error) {
	le := internal.AsLeechError(err)
	if le.Type == internal.ErrCancelled || session.State() == StateCancelled {
		b.editStatus(chatID, statusID, "🚫 Download cancelled.")
		return
	}
	internal.LogLeechError(le)
	b.editStatus(chatID, statusID, le.UserMessage())
}

func progressText(filename string, downloaded, total int64) string {
	if total > 0 {
		percent := float64(downloaded) / float64(total) * 100
		return fmt.Sprintf("⬇️ Downloading %s\n%s / %s (%.0f%%)",
			filename, humanize.IBytes(uint64(downloaded)), humanize.IBytes(uint64(total)), percent)
	}
	return fmt.Sprintf("⬇️ Downloading %s\n%s", filename, humanize.IBytes(uint64(downloaded)))
}

func sizeLabel(target *internal.ResolvedTarget) string {
	if target.SizeText != "" {
		return target.SizeText
	}
	return "size unknown"
}

// reply sends a message quoting the user's message
func (b *Bot) reply(msg *tgbotapi.Message, text string) {
	out := tgbotapi.NewMessage(msg.Chat.ID, text)
	out.ReplyToMessageID = msg.MessageID
	if _, err := b.api.Send(out); err != nil {
		internal.LogWarn("Reply failed: %v", err)
	}
}

// sendStatus sends the transfer's status message and returns its ID
func (b *Bot) sendStatus(msg *tgbotapi.Message, text string) int {
	out := tgbotapi.NewMessage(msg.Chat.ID, text)
	out.ReplyToMessageID = msg.MessageID
	sent, err := b.api.Send(out)
	if err != nil {
		internal.LogWarn("Status message failed: %v", err)
		return 0
	}
	return sent.MessageID
}

// editStatus updates the transfer's status message in place
func (b *Bot) editStatus(chatID int64, messageID int, text string) {
	if messageID == 0 {
		return
	}
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	if _, err := b.api.Send(edit); err != nil {
		// Edits race with Telegram's flood control; a lost status
		// update is not worth failing the transfer over.
		internal.LogDebug("Status edit failed: %v", err)
	}
}
