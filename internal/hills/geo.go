package hills

import "math"

// earthCircumference is the equatorial circumference in meters.
const earthCircumference = 40075016.686

// latUnitDistance is the ground distance in meters covered by one grid
// step at the given latitude.
func latUnitDistance(latitude float64, axisLen int) float64 {
	return earthCircumference / 360 * math.Cos(latitude*math.Pi/180) / float64(axisLen)
}
