package dashscope

const (
	eventTaskStarted     = "task-started"
	eventResultGenerated = "result-generated"
	eventTaskFinished    = "task-finished"
	eventTaskFailed      = "task-failed"
)

type clientHeader struct {
	Action    string `json:"action"`
	TaskID    string `json:"task_id"`
	Streaming string `json:"streaming"`
}

type runTaskParameters struct {
	Format                     string `json:"format"`
	SampleRate                 int    `json:"sample_rate"`
	SemanticPunctuationEnabled bool   `json:"semantic_punctuation_enabled"`
}

type runTaskPayload struct {
	TaskGroup  string            `json:"task_group"`
	Task       string            `json:"task"`
	Function   string            `json:"function"`
	Model      string            `json:"model"`
	Parameters runTaskParameters `json:"parameters"`
	Input      struct{}          `json:"input"`
}

type runTask struct {
	Header  clientHeader   `json:"header"`
	Payload runTaskPayload `json:"payload"`
}

func newRunTask(taskID, model string, sampleRate int) runTask {
	return runTask{
		Header: clientHeader{Action: "run-task", TaskID: taskID, Streaming: "duplex"},
		Payload: runTaskPayload{
			TaskGroup: "audio",
			Task:      "asr",
			Function:  "recognition",
			Model:     model,
			Parameters: runTaskParameters{
				Format:     "pcm",
				SampleRate: sampleRate,
			},
		},
	}
}

type finishTask struct {
	Header  clientHeader `json:"header"`
	Payload struct {
		Input struct{} `json:"input"`
	} `json:"payload"`
}

func newFinishTask(taskID string) finishTask {
	return finishTask{Header: clientHeader{Action: "finish-task", TaskID: taskID, Streaming: "duplex"}}
}

type sentence struct {
	BeginTime   int64  `json:"begin_time"`
	EndTime     *int64 `json:"end_time"`
	Text        string `json:"text"`
	SentenceEnd bool   `json:"sentence_end"`
}

type serverEvent struct {
	Header struct {
		TaskID       string `json:"task_id"`
		Event        string `json:"event"`
		ErrorCode    string `json:"error_code"`
		ErrorMessage string `json:"error_message"`
	} `json:"header"`
	Payload struct {
		Output struct {
			Sentence *sentence `json:"sentence"`
		} `json:"output"`
	} `json:"payload"`
}
