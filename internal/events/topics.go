package events

// Topic constants for domain events emitted by the checkout.
const (
	TopicOrderSubmitted   = "order.submitted"
	TopicCheckoutOpened   = "checkout.opened"
	TopicCheckoutCanceled = "checkout.canceled"
)
