package cartsync

// Status is the lifecycle of the synchronizer's remote requests.
type Status string

const (
	StatusIdle      Status = "IDLE"
	StatusLoading   Status = "LOADING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
)

// Source tells where the lines and total of a View come from.
type Source string

const (
	SourceLocal  Source = "local"
	SourceServer Source = "server"
)

var statusTransitions = map[Status][]Status{
	StatusIdle:      {StatusLoading},
	StatusLoading:   {StatusLoading, StatusSucceeded, StatusFailed},
	StatusSucceeded: {StatusLoading},
	StatusFailed:    {StatusLoading},
}

func canMove(from, to Status) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// lifecycle tracks overlapping requests. The status stays Loading while any
// request is in flight and then reflects the last one to finish.
type lifecycle struct {
	status   Status
	inflight int
	lastErr  error
}

func (l *lifecycle) begin() {
	l.inflight++
	l.move(StatusLoading)
}

func (l *lifecycle) end(err error) {
	if l.inflight > 0 {
		l.inflight--
	}
	l.lastErr = err
	if l.inflight > 0 {
		return
	}
	if err != nil {
		l.move(StatusFailed)
		return
	}
	l.move(StatusSucceeded)
}

func (l *lifecycle) move(to Status) {
	if l.status == "" {
		l.status = StatusIdle
	}
	if canMove(l.status, to) {
		l.status = to
	}
}

func (l *lifecycle) reset() {
	*l = lifecycle{status: StatusIdle}
}
