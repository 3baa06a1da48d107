package entities

// InputSource is what a learner submitted for one exchange: either typed
// text or a recorded clip that still needs transcription.
type InputSource interface {
	isInputSource()
}

// TypedInput is text entered directly by the learner
type TypedInput struct {
	Text string
}

// RecordedInput is a captured clip of the learner speaking
type RecordedInput struct {
	Clip AudioClip
}

func (TypedInput) isInputSource()    {}
func (RecordedInput) isInputSource() {}
