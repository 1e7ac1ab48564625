package store

// SystemStartRequest opens a request span. Every client request wraps
// its mutations in a start/stop pair so snapshots observed outside a
// span are always fully settled.
type SystemStartRequest struct {
	Tag string
}

func (SystemStartRequest) Name() string { return "systemStartRequest" }
func (SystemStartRequest) isSystem()    {}

func (a SystemStartRequest) apply(ac *applyCtx) error {
	ac.st.System.RequestRunning = true
	ac.st.System.RequestRunningNonce++
	return nil
}

// SystemStopRequest closes the span opened with the same tag.
type SystemStopRequest struct {
	Tag string
}

func (SystemStopRequest) Name() string { return "systemStopRequest" }
func (SystemStopRequest) isSystem()    {}

func (a SystemStopRequest) apply(ac *applyCtx) error {
	ac.st.System.RequestRunning = false
	ac.st.System.RequestRunningNonce++
	return nil
}
