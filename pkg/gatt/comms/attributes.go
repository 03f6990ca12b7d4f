package comms

import (
	"fmt"

	"tinygo.org/x/bluetooth"

	"github.com/mlsorensen/gomotion"
	"github.com/mlsorensen/gomotion/pkg/state"
)

// Attribute identifies a characteristic of the service. It is the stable
// local handle used for write dispatch and notifications.
type Attribute uint8

const (
	AttrFirmwareVersion Attribute = iota
	AttrAccel
	AttrGyro
	AttrContinuousSampleInterval
	AttrMotionReadDuration
	AttrMotionSampleInterval
	AttrAccelScale
	AttrGyroScale
	AttrBuzzMode
	AttrMinBuzz
	AttrMaxBuzz
	AttrFilter
	AttrPlaySound
	AttrManualRead
	AttrMotionDetection
	AttrMarkEpoch
)

// Kind is the wire type of an attribute value.
type Kind uint8

const (
	KindString Kind = iota
	KindBatch
	KindU8
	KindU16
	KindU64
	KindF32
	KindBool
	KindTrigger // one byte, any nonzero value fires once
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindBatch:
		return "batch"
	case KindU8:
		return "u8"
	case KindU16:
		return "u16"
	case KindU64:
		return "u64"
	case KindF32:
		return "f32"
	case KindBool:
		return "bool"
	case KindTrigger:
		return "trigger"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Width is the exact payload size in bytes, or 0 for variable size kinds.
func (k Kind) Width() int {
	switch k {
	case KindU8, KindBool, KindTrigger:
		return 1
	case KindU16:
		return 2
	case KindF32:
		return 4
	case KindU64:
		return 8
	}
	return 0
}

// Permission bits of an attribute.
type Permission uint8

const (
	Read Permission = 1 << iota
	Write
	Notify
)

// AttributeInfo describes one characteristic.
type AttributeInfo struct {
	ID      Attribute
	Name    string
	UUID    bluetooth.UUID
	Kind    Kind
	Perm    Permission
	Default []byte
}

func (a AttributeInfo) Readable() bool { return a.Perm&Read != 0 }
func (a AttributeInfo) Writable() bool { return a.Perm&Write != 0 }
func (a AttributeInfo) Notifies() bool { return a.Perm&Notify != 0 }

// Attributes is the service table, in declaration order.
var Attributes = []AttributeInfo{
	{AttrFirmwareVersion, "firmware-version", FirmwareVersionUUID, KindString, Read, []byte(FirmwareVersion)},
	{AttrAccel, "accel", AccelUUID, KindBatch, Read | Notify, make([]byte, EntrySize)},
	{AttrGyro, "gyro", GyroUUID, KindBatch, Read | Notify, make([]byte, EntrySize)},
	{AttrContinuousSampleInterval, "continuous-sample-interval", ContinuousSampleIntervalUUID, KindU64, Read | Write, EncodeU64(state.DefaultContinuousSampleIntervalMS)},
	{AttrMotionReadDuration, "motion-read-duration", MotionReadDurationUUID, KindU16, Read | Write, EncodeU16(state.DefaultMotionReadDurationS)},
	{AttrMotionSampleInterval, "motion-sample-interval", MotionSampleIntervalUUID, KindU64, Read | Write, EncodeU64(state.DefaultMotionSampleIntervalMS)},
	{AttrAccelScale, "accel-scale", AccelScaleUUID, KindU8, Read | Write, EncodeU8(uint8(gomotion.DefaultAccelScale))},
	{AttrGyroScale, "gyro-scale", GyroScaleUUID, KindU8, Read | Write, EncodeU8(uint8(gomotion.DefaultGyroScale))},
	{AttrBuzzMode, "buzz-mode", BuzzModeUUID, KindU8, Read | Write, EncodeU8(0)},
	{AttrMinBuzz, "min-buzz", MinBuzzUUID, KindF32, Read | Write, EncodeF32(state.DefaultMinBuzz)},
	{AttrMaxBuzz, "max-buzz", MaxBuzzUUID, KindF32, Read | Write, EncodeF32(state.DefaultMaxBuzz)},
	{AttrFilter, "filter", FilterUUID, KindU8, Read | Write, EncodeU8(uint8(gomotion.DefaultFilter))},
	{AttrPlaySound, "play-sound", PlaySoundUUID, KindBool, Read | Write, EncodeBool(false)},
	{AttrManualRead, "manual-read", ManualReadUUID, KindBool, Read | Write, EncodeBool(false)},
	{AttrMotionDetection, "motion-detection", MotionDetectionUUID, KindBool, Read | Write, EncodeBool(true)},
	{AttrMarkEpoch, "mark-epoch", MarkEpochUUID, KindTrigger, Write, EncodeU8(0)},
}

// Lookup returns the table entry for id.
func Lookup(id Attribute) (AttributeInfo, bool) {
	if int(id) < len(Attributes) && Attributes[id].ID == id {
		return Attributes[id], true
	}
	for _, a := range Attributes {
		if a.ID == id {
			return a, true
		}
	}
	return AttributeInfo{}, false
}

// LookupName finds an attribute by its table name.
func LookupName(name string) (AttributeInfo, bool) {
	for _, a := range Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return AttributeInfo{}, false
}

// LookupUUID finds an attribute by characteristic UUID.
func LookupUUID(uuid bluetooth.UUID) (AttributeInfo, bool) {
	for _, a := range Attributes {
		if a.UUID == uuid {
			return a, true
		}
	}
	return AttributeInfo{}, false
}

func (id Attribute) String() string {
	if a, ok := Lookup(id); ok {
		return a.Name
	}
	return fmt.Sprintf("Attribute(%d)", uint8(id))
}
