package orchestration

import (
	"testing"

	"github.com/lingting/rehab-core/core/llms"
)

func TestHistoryIsIndependentOfConversation(t *testing.T) {
	c := newConversation("system")
	c.appendUser("今天天气怎么样")
	c.appendAssistant("晴天")

	history := c.History()
	if len(history) != 3 || history[0] != llms.SystemTurn("system") {
		t.Fatalf("unexpected history %+v", history)
	}

	history[1].Content = "changed"
	if again := c.History(); again[1] != llms.UserTurn("今天天气怎么样") {
		t.Fatalf("expected stored history to be unaffected, got %+v", again[1])
	}
}

func TestRollbackRemovesUserTurn(t *testing.T) {
	c := newConversation("")
	history, rollback := c.appendUser("你好")
	if len(history) != 1 || history[0] != llms.UserTurn("你好") {
		t.Fatalf("unexpected history %+v", history)
	}

	rollback()
	if c.Len() != 0 {
		t.Fatalf("expected rollback to remove the user turn, got %d turns", c.Len())
	}
}

func TestCopyTurnsOfEmptyHistory(t *testing.T) {
	copied, err := copyTurns(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(copied) != 0 {
		t.Fatalf("expected no turns, got %+v", copied)
	}
}
