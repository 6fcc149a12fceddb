package engine

import "errors"

const (
	// QueueCapacity is the most vehicles one lane can hold. Arrivals
	// beyond this are rejected and never enter the intersection.
	QueueCapacity = 50

	// MaxVehicleIDLen is the longest vehicle ID the controller keeps.
	// IDs travel in fixed 32-byte buffers with a terminating NUL, so
	// 31 bytes survive; longer IDs are truncated on enqueue.
	MaxVehicleIDLen = 31
)

var (
	ErrQueueFull  = errors.New("lane queue full")
	ErrQueueEmpty = errors.New("lane queue empty")
	ErrBadRoute   = errors.New("invalid route")
)

// Vehicle is one queued arrival: who, where from, where to, and the
// tick it joined the queue.
type Vehicle struct {
	ID      string
	Start   Direction
	End     Direction
	Arrival uint32
}

// LaneQueue is a fixed-capacity FIFO of vehicles waiting in one lane,
// backed by a ring buffer. It also tracks the longest wait any vehicle
// has experienced leaving this lane. The zero value is an empty queue.
type LaneQueue struct {
	vehicles [QueueCapacity]Vehicle
	head     int
	tail     int
	count    int
	maxWait  uint32
}

// Enqueue appends v to the back of the queue, truncating its ID to
// MaxVehicleIDLen bytes. Returns ErrQueueFull when the lane is at
// capacity, leaving the queue untouched.
func (q *LaneQueue) Enqueue(v Vehicle) error {
	if q.count >= QueueCapacity {
		return ErrQueueFull
	}
	if len(v.ID) > MaxVehicleIDLen {
		v.ID = v.ID[:MaxVehicleIDLen]
	}
	q.vehicles[q.tail] = v
	q.tail = (q.tail + 1) % QueueCapacity
	q.count++
	return nil
}

// Dequeue removes and returns the front vehicle along with its wait
// time in ticks (now minus arrival, clamped at zero). The lane's
// max-wait statistic is updated. Returns ErrQueueEmpty when there is
// nothing to remove.
func (q *LaneQueue) Dequeue(now uint32) (Vehicle, uint32, error) {
	if q.count == 0 {
		return Vehicle{}, 0, ErrQueueEmpty
	}
	v := q.vehicles[q.head]
	var wait uint32
	if now >= v.Arrival {
		wait = now - v.Arrival
	}
	if wait > q.maxWait {
		q.maxWait = wait
	}
	q.head = (q.head + 1) % QueueCapacity
	q.count--
	return v, wait, nil
}

// Peek returns the front vehicle without removing it.
func (q *LaneQueue) Peek() (Vehicle, error) {
	if q.count == 0 {
		return Vehicle{}, ErrQueueEmpty
	}
	return q.vehicles[q.head], nil
}

// Len returns the number of queued vehicles.
func (q *LaneQueue) Len() int {
	return q.count
}

// Empty reports whether the lane holds no vehicles.
func (q *LaneQueue) Empty() bool {
	return q.count == 0
}

// MaxWait returns the longest wait observed by any vehicle dequeued
// from this lane so far.
func (q *LaneQueue) MaxWait() uint32 {
	return q.maxWait
}
