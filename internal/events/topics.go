package events

// Topics emitted by the booking aggregate engine.
const (
	TopicBookingCreated = "booking.created"
	TopicBookingUpdated = "booking.updated"
	TopicBookingDeleted = "booking.deleted"
)
