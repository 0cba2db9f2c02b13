// Package pipeline holds the producer-side stages that turn the raw BVP
// stream into fixed-size batches. Both stages are owned by the goroutine
// delivering sensor callbacks and are not safe for concurrent use.
package pipeline

// CalibrationFilter drops BVP readings until the sensor's pulse detector
// has locked on, i.e. until the first non-zero reading arrives.
type CalibrationFilter struct {
	locked bool
}

func NewCalibrationFilter() *CalibrationFilter { return &CalibrationFilter{} }

// Observe reports whether value should be forwarded downstream.
// The reading that triggers the lock is forwarded too.
func (f *CalibrationFilter) Observe(value float64) bool {
	if f.locked {
		return true
	}
	if value == 0 {
		return false
	}
	f.locked = true
	return true
}

// Reset clears the lock. Call once per accepted device connection.
func (f *CalibrationFilter) Reset() { f.locked = false }

func (f *CalibrationFilter) Locked() bool { return f.locked }
