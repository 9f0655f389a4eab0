package app

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	KickMember
)

// Policy decides what happens to a member whose send queue is full.
type Policy interface {
	OnBackpressure(roomID, username string) BackpressureAction
}

// SimplePolicy kicks slow consumers: a member that cannot drain its
// queue would otherwise stall behind an ever-growing backlog.
type SimplePolicy struct{}

func (SimplePolicy) OnBackpressure(roomID, username string) BackpressureAction {
	return KickMember
}
