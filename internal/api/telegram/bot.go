package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	app "tube-counter/internal/application"
	"tube-counter/internal/domain/entity"
	"tube-counter/internal/infrastructure/overlay"
)

const (
	msgStart = `👋 Hi! I count tubes on photos of tube bundles.

📸 Send me a photo and I will mark every tube I find.

📋 Commands:
/tap x y — add a missing tube or remove a wrong one
/undo — remove the last marker
/clear — remove all markers
/rescan — detect again with current sensitivity
/count — show the current image and total
/sensitivity N — detection sensitivity 1..100
/size N — marker size 5..50
/color #rrggbb — marker color
/banded — toggle color bands of 20
/reset — start over
/help — this message`

	msgUploadFirst     = "📸 Please upload a photo to start counting."
	msgHelper          = "Tap image to add missing tubes or remove incorrect ones. Use /tap x y with pixel coordinates."
	msgUnknownCommand  = "❓ Unknown command. Use /help."
	msgProcessing      = "⏳ Detecting tubes..."
	msgProcessingError = "⚠️ Detection failed. Please try another photo."
	msgResetDone       = "🔄 Session cleared."
	msgDuplicate       = "Already applied."
)

// Bot второй интерфейс подсчёта: одна сессия на чат
type Bot struct {
	api      *tgbotapi.BotAPI
	counting *app.CountingService
	sessions *app.SessionService
	client   *http.Client
	log      zerolog.Logger
}

// NewBot создаёт нового бота
func NewBot(token string, counting *app.CountingService, sessions *app.SessionService, log zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log.Info().Str("account", api.Self.UserName).Msg("Authorized on telegram")

	return &Bot{
		api:      api,
		counting: counting,
		sessions: sessions,
		client:   http.DefaultClient,
		log:      log,
	}, nil
}

// Run обрабатывает сообщения до отмены ctx.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

func sessionID(chatID int64) string {
	return "tg:" + strconv.FormatInt(chatID, 10)
}

// handleMessage обрабатывает входящее сообщение
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	if len(msg.Photo) > 0 {
		photo := msg.Photo[len(msg.Photo)-1]
		b.handleUpload(ctx, msg, photo.FileID, "photo.jpg")
		return
	}

	if msg.Document != nil && isImageDocument(msg.Document) {
		b.handleUpload(ctx, msg, msg.Document.FileID, msg.Document.FileName)
		return
	}

	b.sendMessage(msg.Chat.ID, msgUploadFirst)
}

func isImageDocument(doc *tgbotapi.Document) bool {
	return doc.MimeType == "image/png" || doc.MimeType == "image/jpeg"
}

// handleCommand обрабатывает команды бота
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	id := sessionID(msg.Chat.ID)

	switch msg.Command() {
	case "start", "help":
		b.sendMessage(msg.Chat.ID, msgStart)
		return

	case "reset":
		if _, err := b.counting.Reset(ctx, id); err != nil {
			b.fail(msg.Chat.ID, err)
			return
		}
		b.sendMessage(msg.Chat.ID, msgResetDone)
		return
	}

	session, err := b.sessions.Get(ctx, id)
	if err != nil {
		b.fail(msg.Chat.ID, err)
		return
	}

	ev, err := parseCommand(msg.Command(), msg.CommandArguments(), int64(msg.MessageID), session.Settings)
	if err != nil {
		b.sendMessage(msg.Chat.ID, "⚠️ "+err.Error())
		return
	}

	if ev.Kind == entity.EventRescan {
		b.sendMessage(msg.Chat.ID, msgProcessing)
	}
	b.dispatch(ctx, msg.Chat.ID, ev)
}

// handleUpload скачивает фото и загружает его в сессию чата.
func (b *Bot) handleUpload(ctx context.Context, msg *tgbotapi.Message, fileID, name string) {
	b.sendMessage(msg.Chat.ID, msgProcessing)

	data, err := b.downloadFile(ctx, fileID)
	if err != nil {
		b.log.Error().Err(err).Int64("chat", msg.Chat.ID).Msg("Error downloading photo")
		b.sendMessage(msg.Chat.ID, msgProcessingError)
		return
	}

	b.dispatch(ctx, msg.Chat.ID, entity.Event{
		Kind:   entity.EventUpload,
		Upload: &entity.Upload{Name: name, Data: data},
	})
}

// dispatch применяет событие и отвечает картинкой с маркерами.
func (b *Bot) dispatch(ctx context.Context, chatID int64, ev entity.Event) {
	out, err := b.counting.Dispatch(ctx, sessionID(chatID), ev)
	if err != nil {
		b.fail(chatID, err)
		return
	}

	if ev.Kind == entity.EventClick && !out.Applied {
		b.sendMessage(chatID, msgDuplicate)
		return
	}

	if out.Rendered == nil {
		b.sendMessage(chatID, summary(out))
		return
	}

	data, err := overlay.EncodeJPEG(out.Rendered)
	if err != nil {
		b.fail(chatID, err)
		return
	}

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "tubes.jpg", Bytes: data})
	photo.Caption = summary(out)
	if _, err := b.api.Send(photo); err != nil {
		b.log.Error().Err(err).Int64("chat", chatID).Msg("Error sending photo")
	}
}

// summary подпись к ответу с итоговым числом трубок.
func summary(out *app.CountingOutput) string {
	if !out.Session.HasImage() {
		return msgUploadFirst
	}
	return fmt.Sprintf("Total Tubes: %d\n%s", out.Count(), msgHelper)
}

// fail отвечает пользователю. Внутренние ошибки только пишутся в лог.
func (b *Bot) fail(chatID int64, err error) {
	switch {
	case errors.Is(err, entity.ErrNoImage):
		b.sendMessage(chatID, msgUploadFirst)
	case errors.Is(err, overlay.ErrUnsupportedFormat),
		errors.Is(err, entity.ErrInvalidSensitivity),
		errors.Is(err, entity.ErrInvalidMarkerSize),
		errors.Is(err, entity.ErrInvalidColor),
		errors.Is(err, entity.ErrInvalidClick):
		b.sendMessage(chatID, "⚠️ "+err.Error())
	default:
		b.log.Error().Err(err).Int64("chat", chatID).Msg("Request failed")
		b.sendMessage(chatID, msgProcessingError)
	}
}

// downloadFile скачивает файл из Telegram
func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(b.api.Token), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}

// sendMessage отправляет текстовое сообщение
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error().Err(err).Int64("chat", chatID).Msg("Error sending message")
	}
}
