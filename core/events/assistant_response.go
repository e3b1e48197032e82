package events

const KindAssistantReplyGenerated Kind = "assistant_response.reply_generated"

type AssistantReplyGenerated struct {
	Base
	Reply string
}

func NewAssistantReplyGenerated(reply string) AssistantReplyGenerated {
	return AssistantReplyGenerated{Base: NewBase(KindAssistantReplyGenerated), Reply: reply}
}
