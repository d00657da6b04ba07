package telegram

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/telebot.v3"

	"github.com/mahesa005/dinacom-steikon-sub000/internal/domain/schedule"
	idb "github.com/mahesa005/dinacom-steikon-sub000/internal/infra/database"
)

func (h *Handlers) handleToday(c telebot.Context) error {
	logCtx := h.commandLogger(c, "/today")
	today := h.service.Today()

	ctx, cancel := h.commandContext()
	defer cancel()

	due, err := h.service.EntriesOnDate(ctx, today)
	if err != nil {
		logCtx.WithError(err).Error("Failed to list entries for today")
		return c.Send("Terjadi kesalahan saat mengambil jadwal hari ini. Silakan coba lagi nanti.")
	}
	logCtx.WithField("due_count", len(due)).Info("Listed entries for today")

	if len(due) == 0 {
		return c.Send(fmt.Sprintf("Tidak ada jadwal pemeriksaan pada %s.", today.Format(schedule.DateLayout)))
	}

	var response strings.Builder
	response.WriteString(fmt.Sprintf("--- Jadwal %s ---\n", today.Format(schedule.DateLayout)))
	for _, d := range due {
		response.WriteString(fmt.Sprintf("%s (usia %d bln), jendela %s s/d %s\nAnak: %s\nJadwal: %s\n\n",
			d.SubjectName,
			d.TargetAgeMonths,
			d.WindowStart.Format(schedule.DateLayout),
			d.WindowEnd.Format(schedule.DateLayout),
			d.SubjectID,
			d.ID))
	}
	return c.Send(response.String())
}

func (h *Handlers) handleSchedule(c telebot.Context) error {
	logCtx := h.commandLogger(c, "/jadwal")

	args := c.Args()
	// Expected format: /jadwal <subjectID> [all]
	if len(args) < 1 || len(args) > 2 {
		return c.Send("Format salah. Gunakan: /jadwal <ID anak> [all]")
	}
	subjectID, err := uuid.Parse(args[0])
	if err != nil {
		return c.Send("Error: ID anak tidak valid.")
	}
	includeCompleted := len(args) == 2 && strings.EqualFold(args[1], "all")
	logCtx = logCtx.WithField("subject_id", subjectID)

	ctx, cancel := h.commandContext()
	defer cancel()

	entries, err := h.service.EntriesForSubject(ctx, subjectID, includeCompleted)
	if err != nil {
		if errors.Is(err, idb.ErrSubjectNotFound) {
			return c.Send(fmt.Sprintf("Anak dengan ID %s tidak ditemukan.", subjectID))
		}
		logCtx.WithError(err).Error("Failed to list subject schedule")
		return c.Send("Terjadi kesalahan saat mengambil jadwal. Silakan coba lagi nanti.")
	}

	if len(entries) == 0 {
		return c.Send("Belum ada jadwal untuk anak ini.")
	}

	var response strings.Builder
	response.WriteString(fmt.Sprintf("--- Jadwal %s ---\n", subjectID))
	for _, e := range entries {
		response.WriteString(fmt.Sprintf("%s  usia %d bln  %s s/d %s  [%s]\n",
			e.ID,
			e.TargetAgeMonths,
			e.WindowStart.Format(schedule.DateLayout),
			e.WindowEnd.Format(schedule.DateLayout),
			e.Status))
	}
	return c.Send(response.String())
}
