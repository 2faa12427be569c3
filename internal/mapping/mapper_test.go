package mapping

// recordingBackend captures every call the mapping layer makes so
// tests can assert on emitted values without a real output backend.
type recordingBackend struct {
	digital    []digitalCall
	analog     []analogCall
	continuous []continuousCall
}

type digitalCall struct {
	pinIndex  int
	value     bool
	timestamp uint32
}

type analogCall struct {
	pinIndex  int
	value     float64
	timestamp uint32
}

type continuousCall struct {
	pinIndex  int
	value     float64
	timestamp uint32
}

func (b *recordingBackend) SendDigital(pinIndex int, value bool, timestamp uint32) {
	b.digital = append(b.digital, digitalCall{pinIndex, value, timestamp})
}

func (b *recordingBackend) SendAnalog(pinIndex int, value float64, timestamp uint32) {
	b.analog = append(b.analog, analogCall{pinIndex, value, timestamp})
}

func (b *recordingBackend) SendContinuous(pinIndex int, value float64, timestamp uint32) {
	b.continuous = append(b.continuous, continuousCall{pinIndex, value, timestamp})
}

func (b *recordingBackend) Close() error { return nil }
