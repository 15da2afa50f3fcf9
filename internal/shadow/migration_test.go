package shadow

import (
	"testing"

	"github.com/trainlyhq/trainly-core/internal/models"
)

func TestMergeCredits(t *testing.T) {
	shadow := models.UserCredits{TotalCredits: 500, UsedCredits: 100}
	real := models.UserCredits{TotalCredits: 10000, UsedCredits: 200}

	got := MergeCredits(real, shadow)
	if got.TotalCredits != 10500 {
		t.Errorf("total = %v, want 10500", got.TotalCredits)
	}
	if got.UsedCredits != 300 {
		t.Errorf("used = %v, want 300", got.UsedCredits)
	}
}

// The step order is part of the migration contract: credits first, pure
// re-keys in the middle, audit history and file totals last.
func TestStepOrder(t *testing.T) {
	want := []string{
		"credits", "organizations", "chats", "integration_keys", "auth_tokens",
		"authorizations", "user_app_chats", "apps", "credit_transactions", "file_usage",
	}
	if len(steps) != len(want) {
		t.Fatalf("got %d steps, want %d", len(steps), len(want))
	}
	for i, s := range steps {
		if s.name != want[i] {
			t.Errorf("step[%d] = %q, want %q", i, s.name, want[i])
		}
	}
}
