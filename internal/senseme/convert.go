package senseme

// Raw device scales.
const (
	// SpeedMin and SpeedMax bound the fan's raw rotation-speed scale.
	SpeedMin = 0
	SpeedMax = 7

	// LightMin and LightMax bound the light's raw brightness scale.
	LightMin = 0
	LightMax = 16

	// PercentMax is the upper bound of the normalized percentage scale.
	PercentMax = 100
)

// Percentage conversions.
//
// All four functions use integer round-half-up arithmetic so repeated
// conversions never accumulate floating-point drift. The constants are
// tuned so the common raw values land on round percentages; the
// mappings are NOT exact inverses for every input (for example raw
// speed 0 maps to 0% but every percentage up to 7 maps back to raw 0).
// Callers must validate ranges before handing raw values to device
// setters; these functions do not.

// RawSpeedFromPercent converts a 0-100 percentage to the raw 0-7 fan
// speed scale.
func RawSpeedFromPercent(percent int) int {
	return (percent*SpeedMax + PercentMax/2) / PercentMax
}

// PercentFromRawSpeed converts a raw 0-7 fan speed to a 0-100
// percentage.
func PercentFromRawSpeed(raw int) int {
	return (raw*PercentMax + SpeedMax/2) / SpeedMax
}

// RawLightFromPercent converts a 0-100 percentage to the raw 0-16
// light level scale.
func RawLightFromPercent(percent int) int {
	return (percent*LightMax + PercentMax/2) / PercentMax
}

// PercentFromRawLight converts a raw 0-16 light level to a 0-100
// percentage.
func PercentFromRawLight(raw int) int {
	return (raw*PercentMax + LightMax/2) / LightMax
}
