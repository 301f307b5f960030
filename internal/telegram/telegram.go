// Package telegram implements the optional Telegram frontend: users send a
// chat export as a document and receive a session ID plus a KPI summary.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"

	"github.com/duetlabs/duet/internal/chatlog"
	"github.com/duetlabs/duet/internal/database"
	"github.com/duetlabs/duet/internal/kpi"
)

const (
	downloadTimeout  = 30 * time.Second
	maxExportBytes   = 32 << 20
	welcomeMessage   = "Send me an exported chat (.txt document) and I'll compute its statistics."
	generalErrorText = "Something went wrong. Please try again later."
)

// Frontend wires the Telegram bot to the parsing and KPI pipeline.
type Frontend struct {
	token   string
	bot     *tgbot.Bot
	store   database.Store
	lexicon kpi.Lexicon
	log     *slog.Logger
}

// New creates the Telegram frontend. The token must be non-empty; callers
// skip construction entirely when the frontend is disabled.
func New(token string, store database.Store, lexicon kpi.Lexicon, log *slog.Logger) (*Frontend, error) {
	f := &Frontend{
		token:   token,
		store:   store,
		lexicon: lexicon,
		log:     log.With("component", "telegram"),
	}

	b, err := tgbot.New(token,
		tgbot.WithDefaultHandler(f.handleUpdate),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	f.bot = b
	return f, nil
}

// Run starts the long-polling listener until the context is cancelled.
func (f *Frontend) Run(ctx context.Context) error {
	f.log.Info("Starting Telegram bot listener...")
	f.bot.Start(ctx)
	f.log.Info("Telegram bot listener stopped.")

	if ctx.Err() == nil {
		return fmt.Errorf("telegram listener stopped unexpectedly")
	}
	return nil
}

func (f *Frontend) handleUpdate(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	msg := update.Message

	switch {
	case msg.Document != nil:
		f.handleDocument(ctx, b, msg)
	case strings.HasPrefix(msg.Text, "/start"):
		f.reply(ctx, b, msg.Chat.ID, welcomeMessage)
	default:
		f.reply(ctx, b, msg.Chat.ID, welcomeMessage)
	}
}

func (f *Frontend) handleDocument(ctx context.Context, b *tgbot.Bot, msg *models.Message) {
	log := f.log.With("chat_id", msg.Chat.ID)

	if ext := strings.ToLower(filepath.Ext(msg.Document.FileName)); ext != ".txt" {
		f.reply(ctx, b, msg.Chat.ID, "Please send the export as a .txt document.")
		return
	}

	data, err := f.downloadDocument(ctx, b, msg.Document.FileID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to download document", "error", err)
		f.reply(ctx, b, msg.Chat.ID, generalErrorText)
		return
	}

	msgs := chatlog.ParseExport(string(data), nil)
	if len(msgs) == 0 {
		f.reply(ctx, b, msg.Chat.ID, "I couldn't find any messages in that export.")
		return
	}

	bundle := kpi.Compute(msgs, f.lexicon)

	msgsJSON, err := json.Marshal(msgs)
	if err != nil {
		log.ErrorContext(ctx, "Failed to encode messages", "error", err)
		f.reply(ctx, b, msg.Chat.ID, generalErrorText)
		return
	}
	kpisJSON, err := json.Marshal(bundle)
	if err != nil {
		log.ErrorContext(ctx, "Failed to encode KPIs", "error", err)
		f.reply(ctx, b, msg.Chat.ID, generalErrorText)
		return
	}

	session := &database.Session{
		ID:           uuid.NewString(),
		MessageCount: len(msgs),
		Messages:     msgsJSON,
		KPIs:         kpisJSON,
	}
	if err := f.store.SaveSession(ctx, session); err != nil {
		log.ErrorContext(ctx, "Failed to save session", "error", err)
		f.reply(ctx, b, msg.Chat.ID, generalErrorText)
		return
	}

	log.InfoContext(ctx, "Session created from Telegram upload",
		"session_id", session.ID, "message_count", len(msgs))
	f.reply(ctx, b, msg.Chat.ID, summarize(session.ID, bundle))
}

// downloadDocument fetches the document bytes through the Bot API file
// endpoint.
func (f *Frontend) downloadDocument(ctx context.Context, b *tgbot.Bot, fileID string) ([]byte, error) {
	downloadCtx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	fileObj, err := b.GetFile(downloadCtx, &tgbot.GetFileParams{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	if fileObj.FilePath == "" {
		return nil, fmt.Errorf("empty file path returned from Telegram")
	}

	url := fmt.Sprintf("https://api.telegram.org/file/bot%s/%s", f.token, fileObj.FilePath)
	req, err := http.NewRequestWithContext(downloadCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxExportBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read file data: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("received empty file data")
	}
	return data, nil
}

func (f *Frontend) reply(ctx context.Context, b *tgbot.Bot, chatID int64, text string) {
	if _, err := b.SendMessage(ctx, &tgbot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		f.log.ErrorContext(ctx, "Failed to send message", "chat_id", chatID, "error", err)
	}
}

// summarize renders a compact KPI digest for the chat reply.
func summarize(sessionID string, b *kpi.Bundle) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Session %s\n", sessionID)
	fmt.Fprintf(&sb, "Messages: %d, words: %d\n", b.Totals.Messages, b.Totals.Words)
	for _, s := range b.BySender {
		fmt.Fprintf(&sb, "%s: %d messages, %d words, %d media\n", s.Sender, s.Messages, s.Words, s.Media)
	}
	fmt.Fprintf(&sb, "Questions: %d (%d unanswered within 15m)\n", b.Questions.Total, b.Questions.UnansweredIn15m)
	fmt.Fprintf(&sb, "We-ness ratio: %.2f", b.WeNessRatio)
	return sb.String()
}
