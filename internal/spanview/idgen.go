package spanview

// IDSource hands out the monotonic ids that make instances, messages, and
// tools addressable by the editing UI. It is deliberately not ambient
// state: callers inject one and may Reset it for deterministic tests.
//
// The playground core is single-threaded, so IDSource does no locking.
type IDSource struct {
	instance int
	message  int
	tool     int
}

// NewIDSource returns a fresh source with all counters at zero.
func NewIDSource() *IDSource {
	return &IDSource{}
}

// NextInstanceID returns the next prompt-instance id.
func (s *IDSource) NextInstanceID() int {
	id := s.instance
	s.instance++
	return id
}

// NextMessageID returns the next message id.
func (s *IDSource) NextMessageID() int {
	id := s.message
	s.message++
	return id
}

// NextToolID returns the next tool id.
func (s *IDSource) NextToolID() int {
	id := s.tool
	s.tool++
	return id
}

// Reset rewinds all counters to zero.
func (s *IDSource) Reset() {
	s.instance = 0
	s.message = 0
	s.tool = 0
}
