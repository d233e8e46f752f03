package master

import (
	"fmt"
	"strings"
)

// MasterErrorType classifies an error-information frame
type MasterErrorType string

const (
	ErrorTypeOutput                MasterErrorType = "OUTPUT_ERROR"
	ErrorTypeInput                 MasterErrorType = "INPUT_ERROR"
	ErrorTypeSensor                MasterErrorType = "SENSOR_ERROR"
	ErrorTypeDefaultSwitchCase     MasterErrorType = "DEFAULT_SWITCH_CASE_TRIGGERED"
	ErrorTypeI2C                   MasterErrorType = "I2C_ERROR"
	ErrorTypeUART                  MasterErrorType = "UART_ERROR"
	ErrorTypeSMUpdateTimeDate      MasterErrorType = "SM_UPDATE_TIME_DATE"
	ErrorTypeSMImmediateQueue      MasterErrorType = "SM_IMMEDIATE_QUEUE"
	ErrorTypeSMGroupQueue          MasterErrorType = "SM_GROUP_QUEUE"
	ErrorTypeSMTimer               MasterErrorType = "SM_TIMER"
	ErrorTypeSMEepromActivateState MasterErrorType = "SM_EEPROM_ACTIVATE_STATE"
	ErrorTypeSMPerformEeprom       MasterErrorType = "SM_PERFORM_EEPROM_ACTIVATE"
	ErrorTypeSMCLIPrint            MasterErrorType = "SM_CLI_PRINT"
	ErrorTypeSMCANQueue            MasterErrorType = "SM_CAN_QUEUE"
	ErrorTypeSMCAN                 MasterErrorType = "SM_CAN"
	ErrorTypeSMExecuteEveryMinute  MasterErrorType = "SM_EXECUTE_EVERY_MINUTE"
	ErrorTypeSMExecuteGroupAction  MasterErrorType = "SM_EXECUTE_GROUP_ACTION"
	ErrorTypeSMGroupDelayQueue     MasterErrorType = "SM_GROUP_DELAY_QUEUE"
	ErrorTypeSMCANTxQueue          MasterErrorType = "SM_CAN_TX_QUEUE"
	ErrorTypeUCANWatchdogReset     MasterErrorType = "MICRO_CAN_WATCHDOG_RESET"
	ErrorTypeUCANWarmReset         MasterErrorType = "MICRO_CAN_WARM_RESET"
	ErrorTypeMissingEndif          MasterErrorType = "MISSING_ENDIF"
	ErrorTypeCommand               MasterErrorType = "COMMAND_ERROR"
	ErrorTypeUnknown               MasterErrorType = "UNKNOWN"
)

var masterErrorTypes = map[int]MasterErrorType{
	0: ErrorTypeOutput, 1: ErrorTypeInput, 2: ErrorTypeSensor,
	3: ErrorTypeDefaultSwitchCase, 4: ErrorTypeI2C, 5: ErrorTypeUART,
	6: ErrorTypeSMUpdateTimeDate, 7: ErrorTypeSMImmediateQueue, 8: ErrorTypeSMGroupQueue,
	9: ErrorTypeSMTimer, 10: ErrorTypeSMEepromActivateState, 11: ErrorTypeSMPerformEeprom,
	12: ErrorTypeSMCLIPrint, 13: ErrorTypeSMCANQueue, 14: ErrorTypeUCANWatchdogReset,
	15: ErrorTypeUCANWarmReset, 16: ErrorTypeSMCAN, 17: ErrorTypeSMExecuteEveryMinute,
	18: ErrorTypeSMExecuteGroupAction, 19: ErrorTypeMissingEndif, 20: ErrorTypeSMGroupDelayQueue,
	21: ErrorTypeSMCANTxQueue, 254: ErrorTypeCommand,
}

// MasterError is a decoded error-information frame reported by the Master
type MasterError struct {
	rawType    int
	ParameterA int
	ParameterB int
	ParameterC int
}

// DecodeMasterError interprets the fields of an error-information response
func DecodeMasterError(fields map[string]any) *MasterError {
	masterError := &MasterError{}
	masterError.rawType, _ = fields["type"].(int)
	masterError.ParameterA, _ = fields["parameter_a"].(int)
	masterError.ParameterB, _ = fields["parameter_b"].(int)
	masterError.ParameterC, _ = fields["parameter_c"].(int)
	return masterError
}

func (masterError *MasterError) Type() MasterErrorType {
	if errorType, ok := masterErrorTypes[masterError.rawType]; ok {
		return errorType
	}
	return ErrorTypeUnknown
}

// Description renders a human readable explanation of the error
func (masterError *MasterError) Description() string {
	a, b, c := masterError.ParameterA, masterError.ParameterB, masterError.ParameterC
	errorType := masterError.Type()
	switch errorType {
	case ErrorTypeOutput:
		switch a {
		case 0:
			return fmt.Sprintf("Output module %d is not responding", b)
		case 1:
			return fmt.Sprintf("Address conflict during initialisation on %s", decodeErrorAddress(b, c))
		case 2:
			return fmt.Sprintf("Tried to switch output %d ON while paired output %d was already ON. Both will be switched OFF", b, c)
		}
	case ErrorTypeInput:
		switch a {
		case 0:
			return fmt.Sprintf("Input module %d is not responding", b)
		case 1:
			return fmt.Sprintf("Address conflict during initialisation on %s", decodeErrorAddress(b, c))
		}
	case ErrorTypeSensor:
		switch a {
		case 0:
			return fmt.Sprintf("Sensor module %d is not responding", b)
		case 1:
			return fmt.Sprintf("Address conflict during initialisation on %s", decodeErrorAddress(b, c))
		case 2:
			return fmt.Sprintf("Configured sensor %d did not update value in the last 2 minutes", b)
		}
	case ErrorTypeDefaultSwitchCase:
		return fmt.Sprintf("Default switch/case triggered. Parameters %d / %d / %d", a, b, c)
	case ErrorTypeI2C:
		return fmt.Sprintf("Detected %d I2C error(s) on state machine phase %d on port %d", c, a, b)
	case ErrorTypeUART:
		return fmt.Sprintf("UART receiving error detected on state machine phase %d on port %d", a, b)
	case ErrorTypeUCANWatchdogReset:
		return fmt.Sprintf("Watchdog reset on uCAN. Parameters %d / %d / %d", a, b, c)
	case ErrorTypeUCANWarmReset:
		return fmt.Sprintf("Warm reset on uCAN. Parameters %d / %d / %d", a, b, c)
	case ErrorTypeCommand:
		if a == 0 {
			return fmt.Sprintf("CRC error: an API instruction %s has generated a CRC error and has not been interpreted", extractErrorCommand(b))
		}
		return fmt.Sprintf("API parameters sent on instruction %s not in range to be an acceptable value", extractErrorCommand(b))
	}
	if strings.HasPrefix(string(errorType), "SM_") {
		return fmt.Sprintf("State machine %s blocked. Parameters %d / %d / %d",
			strings.TrimPrefix(string(errorType), "SM_"), a, b, c)
	}
	return fmt.Sprintf("Unknown error type %d. Parameters %d / %d / %d", masterError.rawType, a, b, c)
}

func extractErrorCommand(word int) string {
	characters := []byte{byte(word >> 8), byte(word)}
	var builder strings.Builder
	for _, character := range characters {
		if character > 32 && character <= 126 {
			builder.WriteByte(character)
		} else {
			builder.WriteByte('.')
		}
	}
	return builder.String()
}

func decodeErrorAddress(firstWord, secondWord int) string {
	return fmt.Sprintf("%d.%d.%d.%d", firstWord>>8&0xFF, firstWord&0xFF, secondWord>>8&0xFF, secondWord&0xFF)
}

func (masterError *MasterError) String() string {
	return fmt.Sprintf("%s (%s)", masterError.Type(), masterError.Description())
}
