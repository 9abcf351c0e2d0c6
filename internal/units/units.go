// Package units holds the pure numeric conversions used across the
// ingestion pipeline: the FIT semicircle angle encoding, distance and
// speed unit conversions, and duration splitting.
package units

import (
	"fmt"
	"time"
)

// Semicircles are the FIT native angle encoding: a signed 32 bit value
// covering -180..180 degrees.
const (
	semicirclesToDegreesScale = 180.0 / 2147483648.0 // 180 / 2^31
	degreesToSemicirclesScale = 2147483648.0 / 180.0 // 2^31 / 180

	milesPerKm = 0.62137119

	mpsToKmphScale = 3.6
	kmphToMpsScale = 0.277778
)

func SemicirclesToDegrees(semicircles float64) float64 {
	return semicircles * semicirclesToDegreesScale
}

func DegreesToSemicircles(degrees float64) float64 {
	return degrees * degreesToSemicirclesScale
}

func MilesToKms(miles float64) float64 {
	return miles / milesPerKm
}

func KmsToMiles(kms float64) float64 {
	return kms * milesPerKm
}

func MetersToKms(meters float64) float64 {
	return meters / 1000
}

func KmsToMeters(kms float64) float64 {
	return kms * 1000
}

func MpsToKmph(mps float64) float64 {
	return mps * mpsToKmphScale
}

func KmphToMps(kmph float64) float64 {
	return kmph * kmphToMpsScale
}

// DurationToHMS splits a duration into whole hours, minutes and seconds.
// Hours are not wrapped at 24, so multi-day durations split correctly.
func DurationToHMS(d time.Duration) (int, int, int, error) {
	if d < 0 {
		return 0, 0, 0, fmt.Errorf("cannot split negative duration %s", d)
	}
	total := int(d.Seconds())
	hours := total / 3600
	remainder := total % 3600
	return hours, remainder / 60, remainder % 60, nil
}
