package enum

// SubmitStatus tags an order submission event on the bus.
type SubmitStatus uint8

const (
	_submit_status_beg SubmitStatus = iota
	SubmitStatusSim
	SubmitStatusLive
	SubmitStatusFail
	_submit_status_end
)

func (s SubmitStatus) IsAvailable() bool {
	return s > _submit_status_beg && s < _submit_status_end
}

func (s SubmitStatus) String() string {
	switch s {
	case SubmitStatusSim:
		return "SIM_SUBMIT"
	case SubmitStatusLive:
		return "LIVE_SUBMIT"
	case SubmitStatusFail:
		return "FAIL"
	default:
		return "unknown"
	}
}
