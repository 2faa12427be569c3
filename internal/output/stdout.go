package output

import "go.uber.org/zap"

// StdoutBackend logs every sample through zap at Info level, matching
// the teacher's structured-logging idiom rather than reaching for
// fmt.Println for a production sink.
type StdoutBackend struct {
	log *zap.Logger
}

func NewStdoutBackend(log *zap.Logger) *StdoutBackend {
	return &StdoutBackend{log: log.Named("output.stdout")}
}

func (b *StdoutBackend) SendDigital(pinIndex int, value bool, timestamp uint32) {
	b.log.Info("digital value",
		zap.Int("pin_index", pinIndex),
		zap.Bool("value", value),
		zap.Uint32("timestamp", timestamp))
}

func (b *StdoutBackend) SendAnalog(pinIndex int, value float64, timestamp uint32) {
	b.log.Info("analog value",
		zap.Int("pin_index", pinIndex),
		zap.Float64("value", value),
		zap.Uint32("timestamp", timestamp))
}

func (b *StdoutBackend) SendContinuous(pinIndex int, value float64, timestamp uint32) {
	b.log.Info("continuous value",
		zap.Int("pin_index", pinIndex),
		zap.Float64("value", value),
		zap.Uint32("timestamp", timestamp))
}

func (b *StdoutBackend) Close() error { return nil }
