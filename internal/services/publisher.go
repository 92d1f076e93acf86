package services

// Publisher is the broadcast port the mutation services publish through.
// Implemented by realtime.Bus; tests substitute a capturing fake. Services
// must only call Publish from a UnitOfWork after-commit hook so that no
// subscriber ever sees uncommitted state.
type Publisher interface {
	Publish(topic string, payload any)
}
