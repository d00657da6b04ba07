package telegram

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"github.com/mahesa005/dinacom-steikon-sub000/internal/app"
	"github.com/mahesa005/dinacom-steikon-sub000/internal/domain/schedule"
	idb "github.com/mahesa005/dinacom-steikon-sub000/internal/infra/database"
)

const msgUnauthorized = "Error: Anda tidak berhak menjalankan perintah ini."

func (h *Handlers) handleComplete(c telebot.Context) error {
	handlerLogger := h.commandLogger(c, "/selesai")
	handlerLogger.Info("Command received")

	if !h.isCoordinator(c) {
		handlerLogger.Warn("Unauthorized access attempt")
		return c.Send(msgUnauthorized)
	}

	args := c.Args()
	// Expected format: /selesai <subjectID> <entryID> <HIGH|MEDIUM|LOW>
	if len(args) != 3 {
		handlerLogger.WithField("args_count", len(args)).Warn("Invalid command format")
		return c.Send("Format salah. Gunakan: /selesai <ID anak> <ID jadwal> <HIGH|MEDIUM|LOW>")
	}
	subjectID, err := uuid.Parse(args[0])
	if err != nil {
		return c.Send("Error: ID anak tidak valid.")
	}
	entryID, err := uuid.Parse(args[1])
	if err != nil {
		return c.Send("Error: ID jadwal tidak valid.")
	}
	tier, err := schedule.ParseRiskTier(args[2])
	if err != nil {
		return c.Send("Error: tingkat risiko harus HIGH, MEDIUM atau LOW.")
	}

	handlerLogger = handlerLogger.WithFields(logrus.Fields{
		"subject_id": subjectID,
		"entry_id":   entryID,
		"risk_tier":  tier,
	})

	ctx, cancel := h.commandContext()
	defer cancel()

	result, err := h.service.RegenerateAfterVisit(ctx, subjectID, entryID, tier)
	if err != nil {
		logWithError := handlerLogger.WithError(err)
		switch {
		case errors.Is(err, idb.ErrSubjectNotFound):
			logWithError.Warn("Subject not found")
			return c.Send(fmt.Sprintf("Anak dengan ID %s tidak ditemukan.", subjectID))
		case errors.Is(err, idb.ErrEntryNotFound), errors.Is(err, app.ErrEntrySubjectMismatch):
			logWithError.Warn("Entry not found for subject")
			return c.Send(fmt.Sprintf("Jadwal %s tidak ditemukan untuk anak ini.", entryID))
		case errors.Is(err, app.ErrEntryNotScheduled), errors.Is(err, idb.ErrStatusConflict):
			logWithError.Warn("Entry already closed")
			return c.Send("Jadwal ini sudah tidak berstatus SCHEDULED.")
		default:
			logWithError.Error("Failed to complete visit")
			return c.Send(fmt.Sprintf("Terjadi kesalahan saat mencatat kunjungan: %s", err.Error()))
		}
	}

	handlerLogger.WithField("inserted", result.Inserted).Info("Visit completed via bot")
	return c.Send(fmt.Sprintf("Kunjungan dicatat. %d jadwal baru disusun setiap %d hari mulai %s.",
		result.Inserted, result.IntervalDays, result.StartDate))
}

func (h *Handlers) handleSweep(c telebot.Context) error {
	handlerLogger := h.commandLogger(c, "/sweep")
	if !h.isCoordinator(c) {
		handlerLogger.Warn("Unauthorized access attempt")
		return c.Send(msgUnauthorized)
	}

	ctx, cancel := h.commandContext()
	defer cancel()

	n, err := h.service.SweepMissed(ctx, h.now())
	if err != nil {
		handlerLogger.WithError(err).Error("Manual sweep failed")
		return c.Send("Terjadi kesalahan saat menandai jadwal yang terlewat.")
	}
	handlerLogger.WithField("missed", n).Info("Manual sweep finished")
	return c.Send(fmt.Sprintf("%d jadwal ditandai MISSED.", n))
}
