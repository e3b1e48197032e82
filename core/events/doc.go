// Package events defines the typed events an orchestrator reports to its
// observer.
//
// Event kinds are grouped by namespace:
//
//   - user_input.*
//   - assistant_response.*
//   - turn_state.*
//   - session.*
//
// user_input events
//
//   - UserTranscriptPartial (user_input.transcript_partial): recognized text
//     that may still change.
//   - UserSentenceEnded (user_input.sentence_ended): terminal text of a
//     sentence. It is the only event that starts a turn.
//
// assistant_response events
//
//   - AssistantReplyGenerated (assistant_response.reply_generated): the reply
//     for the current turn, before it is spoken.
//
// turn_state events
//
//   - TurnStarted (turn_state.started): a queued sentence is being processed.
//   - TurnCompleted (turn_state.completed): the reply was spoken. Capture
//     resumes right after the event unless another sentence is queued.
//   - TurnFailed (turn_state.failed): generation or synthesis failed. A reply
//     that was generated but not spoken stays in the history. Capture resumes
//     after the event as it does for a completed turn.
//
// session events
//
//   - RecognitionFailed (session.recognition_failed): the recognizer failed
//     and the current run is ending.
package events
