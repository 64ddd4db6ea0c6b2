package proxy

import (
	"errors"
	"fmt"
	"math"

	"github.com/huttotw/kia-connect/pkg/action"
)

// ErrUnknownCommand indicates the command name in the request path is not supported.
var ErrUnknownCommand = errors.New("invalid_command")

// ParamError indicates a request body carried a missing or malformed parameter.
type ParamError struct {
	Key    string
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("%s %s param", e.Reason, e.Key)
}

func missingParamError(key string) error {
	return &ParamError{Key: key, Reason: "missing"}
}

func invalidParamError(key string) error {
	return &ParamError{Key: key, Reason: "invalid"}
}

// RequestParameters allows simple type check
type RequestParameters map[string]interface{}

// ExtractCommandAction maps a command name and its parameters onto a request. defaultTemperature
// is used by auto_conditioning_start when params has no temperature.
func ExtractCommandAction(command string, params RequestParameters, defaultTemperature string) (*action.Request, error) {
	switch command {
	case "door_lock":
		return action.Lock(), nil
	case "door_unlock":
		return action.Unlock(), nil
	case "auto_conditioning_start":
		temperature, err := params.getTemperature("temperature")
		if err != nil {
			return nil, err
		}
		if temperature == "" {
			temperature = defaultTemperature
		}
		return action.StartClimate(temperature), nil
	case "auto_conditioning_stop":
		return action.StopClimate(), nil
	default:
		return nil, ErrUnknownCommand
	}
}

func (p RequestParameters) getString(key string, required bool) (string, error) {
	value, exists := p[key]

	if exists {
		if strValue, isString := value.(string); isString {
			return strValue, nil
		}
		return "", invalidParamError(key)
	}

	if !required {
		return "", nil
	}

	return "", missingParamError(key)
}

func (p RequestParameters) getNumber(key string, required bool) (float64, error) {
	value, exists := p[key]
	if exists {
		if num, isFloat64 := value.(float64); isFloat64 {
			return num, nil
		}
		return 0, invalidParamError(key)
	}

	if !required {
		return 0, nil
	}

	return 0, missingParamError(key)
}

// getTemperature accepts a number of degrees Fahrenheit, which is clamped to the portal's range,
// or a string, which is passed through. Returns an empty string if key is absent.
func (p RequestParameters) getTemperature(key string) (string, error) {
	value, exists := p[key]
	if !exists {
		return "", nil
	}
	if _, isNumber := value.(float64); isNumber {
		degrees, err := p.getNumber(key, true)
		if err != nil {
			return "", err
		}
		return action.TemperatureF(int(math.Round(degrees))), nil
	}
	temperature, err := p.getString(key, true)
	if err != nil {
		return "", err
	}
	if temperature == "" {
		return "", invalidParamError(key)
	}
	return temperature, nil
}
