package parallel

import "fmt"

// MailBox provides buffered point-to-point message exchange between the ranks
// of a Group. The usage pattern is: every rank Posts its outgoing messages,
// calls Deliver, synchronizes on a group barrier, then Receives. Skipping the
// barrier between Deliver and Receive loses messages.
type MailBox[T any] struct {
	NP           int
	MessageChans []chan []T    // One per rank
	PostQs       []map[int][]T // One per rank, key is the target rank
}

func NewMailBox[T any](NP int) *MailBox[T] {
	mb := &MailBox[T]{
		NP:           NP,
		MessageChans: make([]chan []T, NP),
		PostQs:       make([]map[int][]T, NP),
	}
	for n := 0; n < NP; n++ {
		mb.MessageChans[n] = make(chan []T, NP) // Worst case is all-to-all
		mb.PostQs[n] = make(map[int][]T)
	}
	return mb
}

func (mb *MailBox[T]) Post(myRank, targetRank int, msg T) {
	if targetRank < 0 || targetRank > mb.NP-1 {
		panic(fmt.Sprintf("target rank %d out of bounds", targetRank))
	}
	mb.PostQs[myRank][targetRank] = append(mb.PostQs[myRank][targetRank], msg)
}

func (mb *MailBox[T]) PostToAll(myRank int, msg T) {
	for k := 0; k < mb.NP; k++ {
		if k != myRank {
			mb.Post(myRank, k, msg)
		}
	}
}

// Deliver flushes this rank's outboxes into the target ranks' channels.
func (mb *MailBox[T]) Deliver(myRank int) {
	for targetRank, msgs := range mb.PostQs[myRank] {
		mb.MessageChans[targetRank] <- msgs
		delete(mb.PostQs[myRank], targetRank)
	}
}

// Receive drains everything delivered to this rank so far.
func (mb *MailBox[T]) Receive(myRank int) (msgs []T) {
	for {
		select {
		case batch := <-mb.MessageChans[myRank]:
			msgs = append(msgs, batch...)
		default:
			return
		}
	}
}
