package schedule

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestEntryJSON_NotificationSentAt(t *testing.T) {
	e := Entry{
		ID:          uuid.New(),
		SubjectID:   uuid.New(),
		WindowStart: date(2025, 5, 7),
		WindowEnd:   date(2025, 5, 13),
		Status:      StatusScheduled,
	}

	raw, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"notification_sent_at":null`) {
		t.Errorf("expected null notification_sent_at before any reminder, got %s", raw)
	}

	sentAt := time.Date(2025, 5, 10, 7, 0, 0, 0, time.UTC)
	e.NotificationSent = true
	e.NotificationSentAt = &sentAt
	raw, err = json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"notification_sent_at":"2025-05-10T07:00:00Z"`) {
		t.Errorf("expected the send time in notification_sent_at, got %s", raw)
	}
}
