package models

import "fmt"

// SampleKind tags the variant carried by a SensorSample.
type SampleKind int

const (
	SampleTemperature SampleKind = iota
	SampleGSR
	SampleBattery
	SampleAcceleration
	SampleIBI
	SampleBVP
)

var sampleKindNames = [...]string{"temperature", "gsr", "battery", "acceleration", "ibi", "bvp"}

func (k SampleKind) String() string {
	if k < 0 || int(k) >= len(sampleKindNames) {
		return fmt.Sprintf("sample_kind(%d)", int(k))
	}
	return sampleKindNames[k]
}

// SensorSample is one reading delivered by the sensor SDK.
// Value is used by every kind except SampleAcceleration, which carries X/Y/Z.
type SensorSample struct {
	Kind      SampleKind
	Value     float64
	X, Y, Z   int
	Timestamp float64 // seconds, as reported by the device
}

func BVP(v, ts float64) SensorSample { return SensorSample{Kind: SampleBVP, Value: v, Timestamp: ts} }

// Battery builds a battery sample; level is a 0..1 fraction.
func Battery(level, ts float64) SensorSample {
	return SensorSample{Kind: SampleBattery, Value: level, Timestamp: ts}
}

func Acceleration(x, y, z int, ts float64) SensorSample {
	return SensorSample{Kind: SampleAcceleration, X: x, Y: y, Z: z, Timestamp: ts}
}
