package services

import (
	"context"
	"testing"

	"github.com/edugradelab/gradelab-backend/internal/apierr"
	"github.com/edugradelab/gradelab-backend/internal/logger"
	"github.com/edugradelab/gradelab-backend/internal/repos"
)

func TestRecentFiltersByAction(t *testing.T) {
	db := openTestDB(t)
	log := logger.NewNop()
	audit := NewAuditService(log, repos.NewSystemLogRepo(db, log))

	userID := uint(1)
	audit.Record(context.Background(), nil, ActionLogin, &userID, nil, "1.2.3.4", "ua")
	audit.Record(context.Background(), nil, ActionLogin, &userID, nil, "1.2.3.4", "ua")
	audit.Record(context.Background(), nil, ActionFileUpload, &userID, map[string]interface{}{"uploadId": 7}, "1.2.3.4", "ua")

	entries, err := audit.Recent(context.Background(), ActionLogin, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries: want=2 got=%d", len(entries))
	}
	for _, e := range entries {
		if e.Action != ActionLogin {
			t.Fatalf("action: want=%s got=%s", ActionLogin, e.Action)
		}
	}

	if _, err := audit.Recent(context.Background(), "bogus", 10); !apierr.Is(err, apierr.CodeValidation) {
		t.Fatalf("want validation error for unknown action, got %v", err)
	}
}
