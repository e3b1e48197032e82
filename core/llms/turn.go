package llms

import "context"

type TurnRole string

const (
	TurnRoleSystem    TurnRole = "system"
	TurnRoleUser      TurnRole = "user"
	TurnRoleAssistant TurnRole = "assistant"
)

// Turn is a single role-tagged entry of the dialogue history.
type Turn struct {
	Role    TurnRole `json:"role"`
	Content string   `json:"content"`
}

func SystemTurn(content string) Turn    { return Turn{Role: TurnRoleSystem, Content: content} }
func UserTurn(content string) Turn      { return Turn{Role: TurnRoleUser, Content: content} }
func AssistantTurn(content string) Turn { return Turn{Role: TurnRoleAssistant, Content: content} }

// Generator produces the next assistant turn for the full dialogue history.
type Generator interface {
	Generate(ctx context.Context, history []Turn) (Turn, error)
}
