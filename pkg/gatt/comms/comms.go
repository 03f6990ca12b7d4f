// Package comms provides the wire details of the motion reporter service:
// attribute UUIDs, the attribute table and the binary payload formats.
package comms

import "tinygo.org/x/bluetooth"

// FirmwareVersion is served by the read-only firmware version attribute.
const FirmwareVersion = "v1.0.0"

var (
	ServiceUUID, _ = bluetooth.ParseUUID("12345678-1234-5678-1234-56789abcdef0")

	FirmwareVersionUUID, _          = bluetooth.ParseUUID("12345678-1234-5678-1234-56789abcdeff")
	AccelUUID, _                    = bluetooth.ParseUUID("12345678-1234-5678-1234-56789abcdef1")
	GyroUUID, _                     = bluetooth.ParseUUID("12345678-1234-5678-1234-56789abcdef2")
	ContinuousSampleIntervalUUID, _ = bluetooth.ParseUUID("12345678-1234-5678-1234-56789abcdef3")
	MotionReadDurationUUID, _       = bluetooth.ParseUUID("12345678-1234-5678-1234-56789abcdef4")
	PlaySoundUUID, _                = bluetooth.ParseUUID("12345678-1234-5678-1234-56789abcdef5")
	MotionSampleIntervalUUID, _     = bluetooth.ParseUUID("12345678-1234-5678-1234-56789abcdef6")
	AccelScaleUUID, _               = bluetooth.ParseUUID("12345678-1234-5678-1234-56789abcdef7")
	GyroScaleUUID, _                = bluetooth.ParseUUID("12345678-1234-5678-1234-56789abcdef8")
	BuzzModeUUID, _                 = bluetooth.ParseUUID("12345678-1234-5678-1234-56789abcdef9")
	MinBuzzUUID, _                  = bluetooth.ParseUUID("12345678-1234-5678-1234-56789abcdefa")
	MaxBuzzUUID, _                  = bluetooth.ParseUUID("12345678-1234-5678-1234-56789abcdefb")
	FilterUUID, _                   = bluetooth.ParseUUID("12345678-1234-5678-1234-56789abcdefc")
	ManualReadUUID, _               = bluetooth.ParseUUID("12345678-1234-5678-1234-56789abcdefd")
	MarkEpochUUID, _                = bluetooth.ParseUUID("12345678-1234-5678-1234-56789abcdefe")
	MotionDetectionUUID, _          = bluetooth.ParseUUID("12345678-1234-5678-1234-56789abcdf00")
)
