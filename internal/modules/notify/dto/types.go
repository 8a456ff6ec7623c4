package dto

const (
	KindStarted   = "started"
	KindCompleted = "completed"
	KindError     = "error"
)

type NotifyInput struct {
	Kind           string
	SessionID      string
	TaskRef        string
	TargetSeconds  int64
	ElapsedSeconds int64
	Detail         string
}

type NotifierOutput struct {
	Name  string
	Type  string
	Kinds []string
}
