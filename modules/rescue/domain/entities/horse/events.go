package horse

import "context"

type IntakeEvent struct {
	Result *Horse
}

func NewIntakeEvent(_ context.Context, result *Horse) *IntakeEvent {
	return &IntakeEvent{Result: result}
}
