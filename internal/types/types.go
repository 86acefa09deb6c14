package types

import "time"

type Transcript struct {
	Segments []Segment `json:"segments"`
}

type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// KeyMoment is a timestamp in the video judged important enough to
// illustrate with a screenshot. Rank is 1 for the highest-scoring moment.
type KeyMoment struct {
	ID        string
	Timestamp float64
	Rank      int
}

// CandidateFrame is one of several frames grabbed around a key moment.
// Index orders candidates by time around the moment (0 = earliest).
type CandidateFrame struct {
	MomentID string
	Index    int
	Path     string
}

// MomentCandidates pairs a moment with its candidate frames.
type MomentCandidates struct {
	Moment KeyMoment
	Frames []CandidateFrame
}

type OCRResult struct {
	Text       string
	Confidence float64
}

type Method string

const (
	MethodVision   Method = "vision"
	MethodOCR      Method = "ocr"
	MethodFallback Method = "fallback"
)

// SelectionResult records the frame chosen for one moment. A failed moment
// has FrameIndex -1 and a non-empty Err; other moments are unaffected.
type SelectionResult struct {
	MomentID   string
	FrameIndex int
	Method     Method
	Err        string
}

func (r SelectionResult) Failed() bool { return r.Err != "" }

type TaskStatus string

const (
	TaskRunning   TaskStatus = "running"
	TaskSucceeded TaskStatus = "succeeded"
	TaskFailed    TaskStatus = "failed"
)

// Task is one pipeline run recorded in the history database.
type Task struct {
	ID         string
	Source     string
	Status     TaskStatus
	Reason     string
	NotePath   string
	CreatedAt  time.Time
	FinishedAt time.Time
}
