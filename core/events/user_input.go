package events

const (
	KindUserTranscriptPartial Kind = "user_input.transcript_partial"
	KindUserSentenceEnded     Kind = "user_input.sentence_ended"
)

type UserTranscriptPartial struct {
	Base
	Transcript string
}

func NewUserTranscriptPartial(transcript string) UserTranscriptPartial {
	return UserTranscriptPartial{Base: NewBase(KindUserTranscriptPartial), Transcript: transcript}
}

type UserSentenceEnded struct {
	Base
	Transcript string
	RequestID  string
}

func NewUserSentenceEnded(transcript, requestID string) UserSentenceEnded {
	return UserSentenceEnded{Base: NewBase(KindUserSentenceEnded), Transcript: transcript, RequestID: requestID}
}
