package channel

// state is the sum type backing a Channel's lifecycle (DESIGN NOTES §9,
// "From opaque validity tag to typed lifecycle"): a Channel is always in
// exactly one of these variants, and every operation type-switches on it
// instead of checking a magic-number tag.
type state interface {
	isState()
}

type uninitState struct{}

func (uninitState) isState() {}

type openState struct {
	backend Backend
	mode    Mode
}

func (openState) isState() {}

type closedState struct{}

func (closedState) isState() {}
