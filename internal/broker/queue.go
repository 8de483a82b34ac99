package broker

// Delivery is one unacked message pulled from the inbound queue.
type Delivery struct {
	Tag  uint64
	Body []byte
}

// MessageQueue is the slice of the message-queue connection the dispatch
// loop needs. internal/queue implements it over AMQP; tests use a fake.
type MessageQueue interface {
	// Declare creates the named queue if it does not exist yet.
	Declare(name string) error
	// Publish sends a JSON body to the named queue.
	Publish(name string, body []byte) error
	// Ack acknowledges a delivery.
	Ack(tag uint64) error
	// Nack rejects a delivery, optionally requeueing it.
	Nack(tag uint64, requeue bool) error
}
