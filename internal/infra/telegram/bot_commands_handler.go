// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"github.com/mahesa005/dinacom-steikon-sub000/internal/app"
	"github.com/mahesa005/dinacom-steikon-sub000/internal/domain/schedule"
)

// ScheduleService is what the bot needs from the schedule workflow.
type ScheduleService interface {
	Today() time.Time
	EntriesOnDate(ctx context.Context, day time.Time) ([]*schedule.DueEntry, error)
	EntriesForSubject(ctx context.Context, subjectID uuid.UUID, includeCompleted bool) ([]*schedule.Entry, error)
	RegenerateAfterVisit(ctx context.Context, subjectID, completedEntryID uuid.UUID, newTier schedule.RiskTier) (*app.GenerateResult, error)
	SweepMissed(ctx context.Context, now time.Time) (int64, error)
}

// commandTimeout bounds the service calls made for a single command.
const commandTimeout = 30 * time.Second

// Handlers serves the health worker commands of the bot.
type Handlers struct {
	ctx           context.Context
	service       ScheduleService
	coordinatorID int64 // 0 means nobody may run coordinator commands
	logger        *logrus.Entry
	now           func() time.Time
}

func NewHandlers(ctx context.Context, service ScheduleService, coordinatorID int64, baseLogger *logrus.Entry) *Handlers {
	if baseLogger == nil {
		baseLogger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Handlers{
		ctx:           ctx,
		service:       service,
		coordinatorID: coordinatorID,
		logger:        baseLogger.WithField("component", "telegram_bot"),
		now:           time.Now,
	}
}

// Register binds every command to b.
func (h *Handlers) Register(b *telebot.Bot) {
	b.Handle("/start", h.handleStart)
	b.Handle("/help", h.handleHelp)
	b.Handle("/today", h.handleToday)
	b.Handle("/jadwal", h.handleSchedule)
	b.Handle("/selesai", h.handleComplete)
	b.Handle("/sweep", h.handleSweep)
}

// commandContext derives the context for one command from the bot lifetime.
func (h *Handlers) commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(h.ctx, commandTimeout)
}

func (h *Handlers) isCoordinator(c telebot.Context) bool {
	return h.coordinatorID != 0 && c.Sender() != nil && c.Sender().ID == h.coordinatorID
}

func (h *Handlers) commandLogger(c telebot.Context, command string) *logrus.Entry {
	var senderID int64
	if c.Sender() != nil {
		senderID = c.Sender().ID
	}
	return h.logger.WithFields(logrus.Fields{"command": command, "sender_id": senderID})
}

func (h *Handlers) handleStart(c telebot.Context) error {
	logCtx := h.commandLogger(c, "/start")
	logCtx.Info("Processing /start command")

	name := ""
	if c.Sender() != nil {
		name = c.Sender().FirstName
	}
	if h.isCoordinator(c) {
		return c.Send(fmt.Sprintf("Halo, Koordinator %s! Bot jadwal pemeriksaan siap. Gunakan /help untuk daftar perintah.", name))
	}
	return c.Send(fmt.Sprintf("Halo, %s! Saya bot pengingat jadwal pemeriksaan tumbuh kembang anak. Gunakan /help untuk daftar perintah.", name))
}

func (h *Handlers) handleHelp(c telebot.Context) error {
	h.commandLogger(c, "/help").Info("Processing /help command")

	var helpText strings.Builder
	helpText.WriteString("Perintah yang tersedia:\n\n")
	helpText.WriteString("`/today`\n - Daftar pemeriksaan yang jendelanya terbuka hari ini.\n\n")
	helpText.WriteString("`/jadwal <ID anak> [all]`\n - Jadwal seorang anak. 'all' juga menampilkan yang sudah selesai.\n\n")
	if h.isCoordinator(c) {
		helpText.WriteString("`/selesai <ID anak> <ID jadwal> <HIGH|MEDIUM|LOW>`\n - Catat kunjungan dan susun ulang jadwal dengan tingkat risiko baru.\n\n")
		helpText.WriteString("`/sweep`\n - Tandai jadwal yang jendelanya sudah lewat sebagai MISSED.\n\n")
	}
	helpText.WriteString("`/help`\n - Tampilkan pesan ini.")
	return c.Send(helpText.String(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
}
