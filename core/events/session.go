package events

const KindRecognitionFailed Kind = "session.recognition_failed"

type RecognitionFailed struct {
	Base
	Err error
}

func NewRecognitionFailed(err error) RecognitionFailed {
	return RecognitionFailed{Base: NewBase(KindRecognitionFailed), Err: err}
}
