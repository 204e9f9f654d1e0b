package meter

// Register map of the transformer monitoring meter.
// Note: Modbus address = Register number - 1
//
// All values are read in one contiguous block starting at RegBlockStart.

const (
	RegBlockStart = 0

	RegPrimaryVoltage   = 0 // 1, U16, 0.1V
	RegSecondaryVoltage = 1 // 2, U16, 0.1V
	RegFrequency        = 2 // 3, U16, 0.01Hz
	RegPrimaryCurrent   = 3 // 4, U16, 0.01A
	RegActivePower      = 4 // 5-6, U32, W (low word first)
	RegWindingTemp      = 6 // 7, S16, 0.1°C
	RegStatus           = 7 // 8, U16

	RegBlockLength = 8
)

const (
	StatusNormal  = 0
	StatusWarning = 1
	StatusAlarm   = 2
	StatusTripped = 3
)

func GetStatusString(status uint16) string {
	switch status {
	case StatusNormal:
		return "Normal"
	case StatusWarning:
		return "Warning"
	case StatusAlarm:
		return "Alarm"
	case StatusTripped:
		return "Tripped"
	default:
		return "Unknown"
	}
}
