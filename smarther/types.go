package smarther

import (
	"bytes"
	"strconv"

	"github.com/cockroachdb/errors"
)

// Thermostat modes accepted by the API.
const (
	ModeAutomatic  = "automatic"
	ModeManual     = "manual"
	ModeBoost      = "boost"
	ModeOff        = "off"
	ModeProtection = "protection"
)

// Thermostat functions.
const (
	FunctionHeating = "heating"
	FunctionCooling = "cooling"
)

// TempUnitCelsius is the temperature unit used in setpoints.
const TempUnitCelsius = "C"

// Load states reported in a chronothermostat status.
const (
	LoadStateActive   = "active"
	LoadStateInactive = "inactive"
)

// DeviceTypeChronothermostat identifies thermostat modules in a topology.
const DeviceTypeChronothermostat = "chronothermostat"

// Plant is a user's top-level grouping of physical installations.
type Plant struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Country string `json:"country,omitempty"`
}

// PlantTopology is the module tree of one plant.
type PlantTopology struct {
	ID      string   `json:"id"`
	Name    string   `json:"name,omitempty"`
	Modules []Module `json:"modules,omitempty"`
}

// Module is one physical unit within a plant.
type Module struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Device string `json:"device,omitempty"`
}

// Value is a decimal that the vendor API encodes sometimes as a JSON number
// and sometimes as a quoted string. It always marshals back as a string,
// which is what the write endpoints expect.
type Value string

// UnmarshalJSON accepts both `21.5` and `"21.5"`.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	if data[0] == '"' {
		unquoted, err := strconv.Unquote(string(data))
		if err != nil {
			return errors.Wrap(err, "invalid string value")
		}
		*v = Value(unquoted)
		return nil
	}
	*v = Value(data)
	return nil
}

// MarshalJSON encodes the value as a JSON string.
func (v Value) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(string(v))), nil
}

// Float64 parses the value as a float.
func (v Value) Float64() (float64, error) {
	f, err := strconv.ParseFloat(string(v), 64)
	if err != nil {
		return 0, errors.Wrapf(err, "cannot parse value %q", string(v))
	}
	return f, nil
}

// FloatValue formats a float as a wire Value.
func FloatValue(f float64) Value {
	return Value(strconv.FormatFloat(f, 'f', -1, 64))
}

// SetPoint is a temperature target with its unit.
type SetPoint struct {
	Value Value  `json:"value"`
	Unit  string `json:"unit,omitempty"`
}

// Program is one entry of a chronothermostat's program list.
type Program struct {
	Number int    `json:"number"`
	Name   string `json:"name,omitempty"`
}

// Measure is one thermometer or hygrometer reading.
type Measure struct {
	TimeStamp string `json:"timeStamp,omitempty"`
	Value     Value  `json:"value,omitempty"`
	Unit      string `json:"unit,omitempty"`
}

// Instrument carries the readings of one sensor.
type Instrument struct {
	Measures []Measure `json:"measures,omitempty"`
}

// Latest returns the most recent reading, which the API places last.
func (i *Instrument) Latest() (Measure, bool) {
	if i == nil || len(i.Measures) == 0 {
		return Measure{}, false
	}
	return i.Measures[len(i.Measures)-1], true
}

// ChronothermostatStatus is the operating state of one thermostat module.
type ChronothermostatStatus struct {
	Function          string      `json:"function,omitempty"`
	Mode              string      `json:"mode,omitempty"`
	SetPoint          *SetPoint   `json:"setPoint,omitempty"`
	Programs          []Program   `json:"programs,omitempty"`
	TemperatureFormat string      `json:"temperatureFormat,omitempty"`
	LoadState         string      `json:"loadState,omitempty"`
	ActivationTime    string      `json:"activationTime,omitempty"`
	Time              string      `json:"time,omitempty"`
	Thermometer       *Instrument `json:"thermometer,omitempty"`
	Hygrometer        *Instrument `json:"hygrometer,omitempty"`
}

// LoadActive reports whether the thermostat is currently driving its load.
func (s *ChronothermostatStatus) LoadActive() bool {
	return s != nil && s.LoadState == LoadStateActive
}

// Measures is the measurements payload of one module. It may be empty when
// the device has not reported recent readings.
type Measures struct {
	Thermometer *Instrument `json:"thermometer,omitempty"`
	Hygrometer  *Instrument `json:"hygrometer,omitempty"`
}

// Empty reports whether the payload carries no readings at all.
func (m *Measures) Empty() bool {
	if m == nil {
		return true
	}
	_, hasTemp := m.Thermometer.Latest()
	_, hasHumidity := m.Hygrometer.Latest()
	return !hasTemp && !hasHumidity
}

// SetStatusOptions are the optional fields of a set-status write. Absent
// fields are omitted from the outgoing payload, never sent as null.
type SetStatusOptions struct {
	// SetPoint, when non-nil, is sent as the new temperature target.
	SetPoint *SetPoint

	// ProgramNumber, when non-nil, selects a program (automatic mode).
	ProgramNumber *int

	// ActivationTime, when non-empty, bounds a boost or manual override.
	ActivationTime string
}

// setStatusRequest is the wire body of a set-status write.
type setStatusRequest struct {
	Function       string    `json:"function"`
	Mode           string    `json:"mode"`
	SetPoint       *SetPoint `json:"setPoint,omitempty"`
	Programs       []Program `json:"programs,omitempty"`
	ActivationTime string    `json:"activationTime,omitempty"`
}

// Response envelopes. The API nests every payload under a resource key.
type plantsResponse struct {
	Plants []Plant `json:"plants"`
}

type topologyResponse struct {
	Plant PlantTopology `json:"plant"`
}

type chronothermostatsResponse struct {
	Chronothermostats []ChronothermostatStatus `json:"chronothermostats"`
}

type programListResponse struct {
	Chronothermostats []struct {
		Programs []Program `json:"programs"`
	} `json:"chronothermostats"`
}
