package orchestration

import (
	"fmt"
	"slices"
	"sync"

	"github.com/jinzhu/copier"
	"github.com/lingting/rehab-core/core/llms"
)

// DefaultSystemPrompt steers the dialogue exercise.
const DefaultSystemPrompt = "你是一个帮助人工耳蜗术后患者恢复听力的AI,目的是训练接受过人工耳蜗植入手术的用户更好地理解和使用中文。你要说几句话，让用户重复，可以加入一些近音字，判断他们对话沟通中出现的问题(如某处对话未听清,或理解不当),如果出现答非所问或者没听清楚，请指出问题，鼓励用户多说多练习,因为是对话，你生成的文字应尽量简短,不要包含md格式和其他特殊符号。"

// conversation is the running dialogue history. The system prompt is always
// the first turn sent to the generator.
type conversation struct {
	mu           sync.RWMutex
	systemPrompt string
	turns        []llms.Turn
}

func newConversation(systemPrompt string) *conversation {
	return &conversation{systemPrompt: systemPrompt}
}

// appendUser adds the user turn and returns the history to generate from,
// plus a function that removes the turn again if generation fails.
func (c *conversation) appendUser(text string) (history []llms.Turn, rollback func()) {
	c.mu.Lock()
	c.turns = append(c.turns, llms.UserTurn(text))
	index := len(c.turns) - 1
	c.mu.Unlock()

	rollback = func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if index < len(c.turns) {
			c.turns = append(c.turns[:index], c.turns[index+1:]...)
		}
	}
	return c.History(), rollback
}

func (c *conversation) appendAssistant(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append(c.turns, llms.AssistantTurn(text))
}

// History returns a copy of the history including the system prompt.
func (c *conversation) History() []llms.Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()

	history := []llms.Turn{}
	if c.systemPrompt != "" {
		history = append(history, llms.SystemTurn(c.systemPrompt))
	}
	turns, err := copyTurns(c.turns)
	if err != nil {
		logger.Warn("failed to deep copy history, using a shallow copy", "error", err)
		turns = slices.Clone(c.turns)
	}
	return append(history, turns...)
}

func copyTurns(turns []llms.Turn) ([]llms.Turn, error) {
	var copied []llms.Turn
	if err := copier.CopyWithOption(&copied, turns, copier.Option{DeepCopy: true}); err != nil {
		return nil, fmt.Errorf("copy history: %w", err)
	}
	return copied, nil
}

func (c *conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.turns)
}
