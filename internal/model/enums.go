package model

// JobState is the normalized lifecycle state of a generation job
type JobState string

const (
	JobStateQueued    JobState = "QUEUED"
	JobStateRunning   JobState = "RUNNING"
	JobStateSucceeded JobState = "SUCCEEDED"
	JobStateFailed    JobState = "FAILED"
)

var ValidJobStates = []JobState{
	JobStateQueued, JobStateRunning, JobStateSucceeded, JobStateFailed,
}

// IsTerminal reports whether no further transitions are expected
func (s JobState) IsTerminal() bool {
	return s == JobStateSucceeded || s == JobStateFailed
}

// IsValid reports whether s is one of the four normalized states
func (s JobState) IsValid() bool {
	for _, v := range ValidJobStates {
		if s == v {
			return true
		}
	}
	return false
}

// Supported source image content types
const (
	ContentTypeJPEG = "image/jpeg"
	ContentTypeJPG  = "image/jpg"
	ContentTypePNG  = "image/png"
	ContentTypeGIF  = "image/gif"
	ContentTypeWebP = "image/webp"
)

var ValidImageContentTypes = []string{
	ContentTypeJPEG, ContentTypeJPG, ContentTypePNG, ContentTypeGIF, ContentTypeWebP,
}
