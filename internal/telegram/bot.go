package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/digkill/prelook/internal/config"
	"github.com/digkill/prelook/internal/gateway"
	"github.com/digkill/prelook/internal/models"
	"github.com/digkill/prelook/internal/prompt"
	"github.com/digkill/prelook/internal/service"
	"github.com/digkill/prelook/internal/storage"
	"github.com/digkill/prelook/internal/studio"
)

const historyPageSize = 5

var errNotImage = errors.New("not an image")

type Bot struct {
	cfg        config.Config
	api        *tgbotapi.BotAPI
	log        *slog.Logger
	accounts   *service.AccountService
	plans      *service.PlanService
	walkIns    *service.WalkInService
	payments   *service.PaymentService
	history    *service.HistoryService
	studio     *studio.Orchestrator
	chats      *ChatManager
	httpClient *http.Client
	inflight   sync.WaitGroup
}

type Deps struct {
	Accounts *service.AccountService
	Plans    *service.PlanService
	WalkIns  *service.WalkInService
	Payments *service.PaymentService
	History  *service.HistoryService
	Studio   *studio.Orchestrator
}

func NewBot(cfg config.Config, api *tgbotapi.BotAPI, log *slog.Logger, d Deps) *Bot {
	return &Bot{
		cfg:        cfg,
		api:        api,
		log:        log,
		accounts:   d.Accounts,
		plans:      d.Plans,
		walkIns:    d.WalkIns,
		payments:   d.Payments,
		history:    d.History,
		studio:     d.Studio,
		chats:      NewChatManager(),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Run polls for updates until ctx is done. Each update is handled on its own
// goroutine because a generation holds its chat for up to GENERATION_TIMEOUT.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.log.Info("telegram bot started")

	for {
		select {
		case update := <-updates:
			b.inflight.Add(1)
			go func() {
				defer b.inflight.Done()
				b.handleUpdate(ctx, update)
			}()
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.inflight.Wait()
			return ctx.Err()
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.PreCheckoutQuery != nil:
		if err := b.payments.HandlePreCheckout(b.api, update.PreCheckoutQuery); err != nil {
			b.log.Error("pre-checkout failed", "err", err)
		}
	}
}

// Broadcast sends text to every chat linked to an account.
func (b *Bot) Broadcast(ctx context.Context, text string) (int, int, error) {
	ids, err := b.accounts.ListTelegramIDs(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list telegram ids: %w", err)
	}
	sent := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		if _, err := b.api.Send(tgbotapi.NewMessage(id, text)); err != nil {
			b.log.Error("send broadcast", "chat", id, "err", err)
			continue
		}
		sent++
	}
	return sent, len(ids), nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.SuccessfulPayment != nil {
		b.handleSuccessfulPayment(ctx, msg)
		return
	}

	if len(msg.Photo) > 0 || msg.Document != nil {
		b.handlePhoto(ctx, msg)
		return
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	chat := b.chats.Get(msg.Chat.ID)
	switch chat.State {
	case StateAwaitingEmail:
		b.login(ctx, msg, msg.Text)
	case StateAwaitingWalkIn:
		b.applyWalkIn(ctx, msg, msg.Text)
	default:
		b.sendText(msg.Chat.ID, "Send me a selfie to start, or /help for commands.")
	}
}

func (b *Bot) handleSuccessfulPayment(ctx context.Context, msg *tgbotapi.Message) {
	account, ok := b.requireAccount(ctx, msg.Chat.ID, msg.From)
	if !ok {
		b.log.Error("payment from unlinked chat", "chat", msg.Chat.ID)
		return
	}
	updated, err := b.payments.HandleSuccessfulPayment(ctx, account, msg.SuccessfulPayment)
	if err != nil {
		b.log.Error("process successful payment", "err", err)
		b.sendText(msg.Chat.ID, "Payment received but the upgrade failed. Support has been notified.")
		return
	}
	b.sendText(msg.Chat.ID, fmt.Sprintf("Payment received! You are on %s with %d credits.", updated.Tier, updated.Credits))
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	args := strings.TrimSpace(msg.CommandArguments())
	switch msg.Command() {
	case "start", "help":
		b.handleStart(ctx, msg)
	case "login":
		if args == "" {
			b.chats.SetState(msg.Chat.ID, StateAwaitingEmail)
			b.sendText(msg.Chat.ID, "What is your email?")
			return
		}
		b.login(ctx, msg, args)
	case "balance":
		b.handleBalance(ctx, msg)
	case "history":
		b.handleHistory(ctx, msg)
	case "walkin":
		if args == "" {
			b.chats.SetState(msg.Chat.ID, StateAwaitingWalkIn)
			b.sendText(msg.Chat.ID, "Send the walk-in code from the salon counter.")
			return
		}
		b.applyWalkIn(ctx, msg, args)
	case "buy":
		b.handleBuy(ctx, msg)
	case "reset":
		account, ok := b.requireAccount(ctx, msg.Chat.ID, msg.From)
		if !ok {
			return
		}
		if err := b.studio.Reset(ctx, account.Email); err != nil {
			b.reportError(msg.Chat.ID, err)
			return
		}
		b.sendText(msg.Chat.ID, "Studio cleared. Send a new selfie.")
	default:
		b.sendText(msg.Chat.ID, "Unknown command. Try /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	text := "Welcome to the hairstyle studio!\n\n" +
		"Send a selfie, pick a look and see it on you. " +
		fmt.Sprintf("The front view costs %d credit(s), the other three angles cost %d more.\n\n", b.cfg.FrontViewCost, b.cfg.UnlockCost) +
		"Commands:\n" +
		"/login <email> - link your studio account\n" +
		"/balance - credits and plan\n" +
		"/history - your saved looks\n" +
		"/walkin <code> - redeem salon walk-in perks\n" +
		"/buy - upgrade your plan\n" +
		"/reset - clear the studio"
	b.sendText(msg.Chat.ID, text)
	if _, err := b.linkedAccount(ctx, msg.From); err != nil {
		b.chats.SetState(msg.Chat.ID, StateAwaitingEmail)
		b.sendText(msg.Chat.ID, "First, what is your email?")
	}
}

func (b *Bot) login(ctx context.Context, msg *tgbotapi.Message, email string) {
	name := ""
	if msg.From != nil {
		name = strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName)
	}
	res, err := b.accounts.Login(ctx, service.LoginInput{Name: name, Email: email})
	if err != nil {
		if errors.Is(err, service.ErrInvalidEmail) {
			b.sendText(msg.Chat.ID, "That does not look like an email. Try again.")
			return
		}
		b.log.Error("telegram login", "err", err)
		b.sendText(msg.Chat.ID, "Could not sign you in, please try later.")
		return
	}
	if _, err := b.accounts.LinkTelegram(ctx, res.Account.Email, telegramID(msg.Chat.ID, msg.From)); err != nil {
		b.log.Error("link telegram", "err", err)
		b.sendText(msg.Chat.ID, "Could not link this chat, please try later.")
		return
	}
	b.chats.Bind(msg.Chat.ID, res.Account.Email)
	b.sendText(msg.Chat.ID, fmt.Sprintf("Signed in as %s. Balance: %d credits. Send a selfie to begin.", res.Account.Email, res.Account.Credits))
}

func (b *Bot) handleBalance(ctx context.Context, msg *tgbotapi.Message) {
	account, ok := b.requireAccount(ctx, msg.Chat.ID, msg.From)
	if !ok {
		return
	}
	b.sendText(msg.Chat.ID, fmt.Sprintf("Plan: %s\nCredits: %d", account.Tier, account.Credits))
}

func (b *Bot) handleHistory(ctx context.Context, msg *tgbotapi.Message) {
	account, ok := b.requireAccount(ctx, msg.Chat.ID, msg.From)
	if !ok {
		return
	}
	sessions, err := b.history.List(ctx, account.Email)
	if err != nil {
		b.log.Error("list history", "err", err)
		b.sendText(msg.Chat.ID, "Could not load your history.")
		return
	}
	if len(sessions) == 0 {
		b.sendText(msg.Chat.ID, "No saved looks yet.")
		return
	}
	if len(sessions) > historyPageSize {
		sessions = sessions[:historyPageSize]
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(sessions))
	for _, s := range sessions {
		label := fmt.Sprintf("%s · %s", s.Timestamp.Format("Jan 2 15:04"), prompt.Summary(s.Config))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(label, "open:"+s.ID)))
	}
	out := tgbotapi.NewMessage(msg.Chat.ID, "Your recent looks:")
	out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	b.send(out)
}

func (b *Bot) applyWalkIn(ctx context.Context, msg *tgbotapi.Message, code string) {
	account, ok := b.requireAccount(ctx, msg.Chat.ID, msg.From)
	if !ok {
		return
	}
	b.chats.SetState(msg.Chat.ID, StateIdle)
	updated, err := b.walkIns.Apply(ctx, account.Email, code)
	switch {
	case errors.Is(err, service.ErrWalkInInvalid):
		b.sendText(msg.Chat.ID, "That walk-in code is not valid.")
	case errors.Is(err, service.ErrWalkInAlreadyRedeemed):
		b.sendText(msg.Chat.ID, "You already redeemed this code.")
	case errors.Is(err, service.ErrWalkInExhausted):
		b.sendText(msg.Chat.ID, "This code has been used up.")
	case err != nil:
		b.log.Error("apply walk-in", "err", err)
		b.sendText(msg.Chat.ID, "Could not apply the code, please try later.")
	default:
		b.sendText(msg.Chat.ID, fmt.Sprintf("Walk-in perks applied! You are on %s with %d credits.", updated.Tier, updated.Credits))
	}
}

func (b *Bot) handleBuy(ctx context.Context, msg *tgbotapi.Message) {
	if _, ok := b.requireAccount(ctx, msg.Chat.ID, msg.From); !ok {
		return
	}
	plans, err := b.plans.List(ctx)
	if err != nil {
		b.log.Error("list plans", "err", err)
		b.sendText(msg.Chat.ID, "Could not load plans.")
		return
	}
	out := tgbotapi.NewMessage(msg.Chat.ID, "Pick a plan:")
	out.ReplyMarkup = planKeyboard(plans)
	b.send(out)
}

func planKeyboard(plans []models.TierPlan) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(plans))
	for _, p := range plans {
		if !p.IsActive || p.PriceMinorUnits <= 0 {
			continue
		}
		label := fmt.Sprintf("%s · %d credits · %.2f %s", p.Title, p.Credits, float64(p.PriceMinorUnits)/100, p.Currency)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(label, "buy:"+string(p.Tier))))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func presetKeyboard() tgbotapi.InlineKeyboardMarkup {
	presets := prompt.Presets()
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(presets)/2+2)
	var row []tgbotapi.InlineKeyboardButton
	for _, p := range presets {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(p.Label, "preset:"+p.ID))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Surprise me", "suggest")))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func resultKeyboard(st *studio.State) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	if st.CanUnlock {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Unlock 360°", "unlock")))
	}
	var nav []tgbotapi.InlineKeyboardButton
	if st.CanUndo {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("Undo", "undo"))
	}
	if st.CanRedo {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("Redo", "redo"))
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Try another look", "looks")))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (b *Bot) handlePhoto(ctx context.Context, msg *tgbotapi.Message) {
	account, ok := b.requireAccount(ctx, msg.Chat.ID, msg.From)
	if !ok {
		return
	}
	var fileID string
	switch {
	case len(msg.Photo) > 0:
		fileID = msg.Photo[len(msg.Photo)-1].FileID
	case msg.Document != nil:
		if mt := strings.ToLower(msg.Document.MimeType); mt != "" && !strings.HasPrefix(mt, "image/") {
			b.sendText(msg.Chat.ID, "That is not an image. Send a photo.")
			return
		}
		fileID = msg.Document.FileID
	}

	data, contentType, err := b.downloadFile(ctx, fileID)
	if err != nil {
		if errors.Is(err, errNotImage) {
			b.sendText(msg.Chat.ID, "That is not an image. Send a photo.")
			return
		}
		b.log.Error("download photo", "err", err)
		b.sendText(msg.Chat.ID, "Could not read the photo, please try again.")
		return
	}
	if _, err := b.studio.SelectPhoto(ctx, account.Email, data, contentType); err != nil {
		b.reportError(msg.Chat.ID, err)
		return
	}
	out := tgbotapi.NewMessage(msg.Chat.ID, "Nice photo! Pick a look:")
	out.ReplyMarkup = presetKeyboard()
	b.send(out)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID
	b.ack(cb.ID, "")

	account, ok := b.requireAccount(ctx, chatID, cb.From)
	if !ok {
		return
	}
	action, arg, _ := strings.Cut(cb.Data, ":")
	switch action {
	case "preset":
		preset, ok := prompt.PresetByID(arg)
		if !ok {
			b.sendText(chatID, "That look is no longer available.")
			return
		}
		b.generate(ctx, chatID, account.Email, preset.Config())
	case "suggest":
		rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		b.generate(ctx, chatID, account.Email, prompt.Suggest(rng))
	case "looks":
		out := tgbotapi.NewMessage(chatID, "Pick a look:")
		out.ReplyMarkup = presetKeyboard()
		b.send(out)
	case "unlock":
		b.sendText(chatID, "Rendering the side and back views...")
		images, err := b.studio.UnlockRemainingViews(ctx, account.Email)
		if err != nil {
			b.reportError(chatID, err)
			return
		}
		b.sendViews(chatID, images)
		b.sendResultControls(ctx, chatID, account.Email)
	case "undo", "redo":
		move := b.studio.Undo
		if action == "redo" {
			move = b.studio.Redo
		}
		images, moved := move(ctx, account.Email)
		if !moved {
			b.sendText(chatID, "Nothing to "+action+".")
			return
		}
		b.sendFront(chatID, images)
		b.sendResultControls(ctx, chatID, account.Email)
	case "open":
		session, err := b.studio.LoadSession(ctx, account.Email, arg)
		if err != nil {
			b.reportError(chatID, err)
			return
		}
		if session.UnlockedAngles {
			b.sendViews(chatID, session.ResultImages)
		} else {
			b.sendFront(chatID, session.ResultImages)
		}
		b.sendResultControls(ctx, chatID, account.Email)
	case "buy":
		if err := b.payments.SendInvoice(ctx, b.api, account, chatID, models.Tier(arg)); err != nil {
			b.log.Error("send invoice", "err", err)
			b.sendText(chatID, "Could not start the payment, please try later.")
		}
	default:
		b.log.Warn("unknown callback", "data", cb.Data)
	}
}

func (b *Bot) generate(ctx context.Context, chatID int64, email string, cfg models.GenerationConfig) {
	b.sendText(chatID, fmt.Sprintf("Styling: %s. This can take up to a minute.", prompt.Summary(cfg)))
	images, err := b.studio.GenerateFrontView(ctx, email, cfg)
	if err != nil {
		b.reportError(chatID, err)
		return
	}
	b.sendFront(chatID, images)
	b.sendResultControls(ctx, chatID, email)
}

func (b *Bot) sendResultControls(ctx context.Context, chatID int64, email string) {
	st, err := b.studio.State(ctx, email)
	if err != nil {
		b.log.Error("studio state", "err", err)
		return
	}
	text := fmt.Sprintf("%s\nCredits left: %d", st.PromptSummary, st.Credits)
	if len(st.MissingAngles) > 0 {
		text += fmt.Sprintf("\nSome views could not be rendered: %s", joinAngles(st.MissingAngles))
	}
	out := tgbotapi.NewMessage(chatID, text)
	out.ReplyMarkup = resultKeyboard(st)
	b.send(out)
}

func (b *Bot) sendFront(chatID int64, images models.GeneratedImages) {
	if images.Front == nil {
		b.sendText(chatID, "No image to show.")
		return
	}
	file, err := photoFile(*images.Front, "front")
	if err != nil {
		b.log.Error("front image", "err", err)
		b.sendText(chatID, "Could not send the image.")
		return
	}
	b.send(tgbotapi.NewPhoto(chatID, file))
}

func (b *Bot) sendViews(chatID int64, images models.GeneratedImages) {
	var media []any
	for _, angle := range append([]models.Angle{models.AngleFront}, models.RemainingAngles...) {
		ref := images.Get(angle)
		if ref == nil {
			continue
		}
		file, err := photoFile(*ref, string(angle))
		if err != nil {
			b.log.Error("view image", "angle", angle, "err", err)
			continue
		}
		photo := tgbotapi.NewInputMediaPhoto(file)
		photo.Caption = gateway.AngleLabel(angle)
		media = append(media, photo)
	}
	if len(media) == 0 {
		b.sendText(chatID, "No images to show.")
		return
	}
	if _, err := b.api.SendMediaGroup(tgbotapi.NewMediaGroup(chatID, media)); err != nil {
		b.log.Error("send media group", "err", err)
	}
}

// photoFile turns an image reference into something the Bot API can upload.
func photoFile(ref, name string) (tgbotapi.RequestFileData, error) {
	if strings.HasPrefix(ref, "data:") {
		data, contentType, err := storage.ParseDataURI(ref)
		if err != nil {
			return nil, err
		}
		ext := "png"
		if contentType == "image/jpeg" {
			ext = "jpg"
		}
		return tgbotapi.FileBytes{Name: name + "." + ext, Bytes: data}, nil
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return tgbotapi.FileURL(ref), nil
	}
	return nil, fmt.Errorf("unsupported image reference")
}

func joinAngles(angles []models.Angle) string {
	labels := make([]string, 0, len(angles))
	for _, a := range angles {
		labels = append(labels, strings.ToLower(gateway.AngleLabel(a)))
	}
	return strings.Join(labels, ", ")
}

// userMessage maps a studio failure to chat copy.
func userMessage(err error) string {
	var genErr *studio.GenerationError
	switch {
	case errors.Is(err, service.ErrInsufficientCredits):
		return "Not enough credits. Use /buy to upgrade or /walkin to redeem a salon code."
	case errors.As(err, &genErr):
		return genErr.Message
	case errors.Is(err, studio.ErrBusy):
		return "Still working on your last request."
	case errors.Is(err, studio.ErrNoSourceImage):
		return "Send a selfie first."
	case errors.Is(err, studio.ErrNoActiveSession):
		return "Generate a look first."
	case errors.Is(err, studio.ErrAlreadyUnlocked):
		return "All views are already unlocked."
	case errors.Is(err, service.ErrSessionNotFound):
		return "That look is no longer in your history."
	case errors.Is(err, storage.ErrEmptyImage), errors.Is(err, storage.ErrInvalidImage):
		return "That is not an image. Send a photo."
	}
	return ""
}

func (b *Bot) reportError(chatID int64, err error) {
	text := userMessage(err)
	if text == "" {
		b.log.Error("studio request", "chat", chatID, "err", err)
		text = "Something went wrong, please try again."
	}
	b.sendText(chatID, text)
}

func (b *Bot) linkedAccount(ctx context.Context, from *tgbotapi.User) (*models.Account, error) {
	if from == nil {
		return nil, service.ErrAccountNotFound
	}
	account, err := b.accounts.FindByTelegramID(ctx, from.ID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, service.ErrAccountNotFound
	}
	return account, nil
}

func (b *Bot) requireAccount(ctx context.Context, chatID int64, from *tgbotapi.User) (*models.Account, bool) {
	account, err := b.linkedAccount(ctx, from)
	if err == nil {
		return account, true
	}
	if !errors.Is(err, service.ErrAccountNotFound) {
		b.log.Error("find linked account", "err", err)
	}
	b.chats.SetState(chatID, StateAwaitingEmail)
	b.sendText(chatID, "Link your account first: send your email or use /login <email>.")
	return nil, false
}

func telegramID(chatID int64, from *tgbotapi.User) int64 {
	if from != nil {
		return from.ID
	}
	return chatID
}

func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, string, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, "", fmt.Errorf("get file: %w", err)
	}
	if file.FilePath == "" {
		return nil, "", fmt.Errorf("file path empty")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(b.api.Token), nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("telegram file status: %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read file body: %w", err)
	}
	ct, err := normalizeImageContentType(resp.Header.Get("Content-Type"), body)
	if err != nil {
		return nil, "", err
	}
	return body, ct, nil
}

func (b *Bot) ack(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.log.Error("callback ack", "err", err)
	}
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		b.log.Error("send message", "err", err)
	}
}

func (b *Bot) sendText(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

func normalizeImageContentType(headerCT string, data []byte) (string, error) {
	ct := strings.ToLower(strings.TrimSpace(headerCT))
	if idx := strings.Index(ct, ";"); idx > 0 {
		ct = ct[:idx]
	}
	if ct == "" || ct == "application/octet-stream" || !strings.HasPrefix(ct, "image/") {
		if len(data) > 0 {
			ct = http.DetectContentType(data)
			if idx := strings.Index(ct, ";"); idx > 0 {
				ct = ct[:idx]
			}
		}
	}

	switch ct {
	case "image/jpeg", "image/jpg":
		return "image/jpeg", nil
	case "image/png":
		return "image/png", nil
	case "image/webp":
		return "image/webp", nil
	default:
		return "", errNotImage
	}
}
