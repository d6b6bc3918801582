// Package electric holds the arithmetic conversions between power,
// current, and phase count that the template reconciler and
// smart-charging resolver both need. No electrical simulation fidelity
// is attempted beyond these conversions (see spec.md Non-goals).
package electric

// CurrentType distinguishes AC from DC station output.
type CurrentType string

const (
	CurrentTypeAC CurrentType = "AC"
	CurrentTypeDC CurrentType = "DC"
)

// AmperageFromPower derives the maximum amperage a station can draw given
// its maximum power, phase count, nominal voltage and current type. Used
// by the template reconciler (spec §4.1 step 5).
func AmperageFromPower(maximumPowerWatts float64, numberOfPhases int, voltage float64, currentType CurrentType) float64 {
	if voltage <= 0 {
		return 0
	}
	if currentType == CurrentTypeDC {
		return maximumPowerWatts / voltage
	}
	phases := numberOfPhases
	if phases <= 0 {
		phases = 1
	}
	return maximumPowerWatts / (voltage * float64(phases))
}

// PowerFromAmperage converts a current-unit charging limit to Watts,
// used by the smart-charging resolver (spec §4.5 step 5).
func PowerFromAmperage(amps, voltage float64, numberOfPhases int, currentType CurrentType) float64 {
	if currentType == CurrentTypeDC {
		return amps * voltage
	}
	phases := numberOfPhases
	if phases <= 0 {
		phases = 1
	}
	return amps * voltage * float64(phases)
}
