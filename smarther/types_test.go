package smarther_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berry-13/bticino-gateway-ha/smarther"
)

func TestValueUnmarshal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		json string
		want smarther.Value
	}{
		{name: "number", json: `21.5`, want: "21.5"},
		{name: "integer number", json: `21`, want: "21"},
		{name: "quoted string", json: `"21.5"`, want: "21.5"},
		{name: "null", json: `null`, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var v smarther.Value
			require.NoError(t, json.Unmarshal([]byte(tt.json), &v))
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestValueMarshalAsString(t *testing.T) {
	t.Parallel()

	sp := smarther.SetPoint{Value: smarther.FloatValue(21.5), Unit: smarther.TempUnitCelsius}
	data, err := json.Marshal(sp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"value":"21.5","unit":"C"}`, string(data))
}

func TestValueFloat64(t *testing.T) {
	t.Parallel()

	f, err := smarther.Value("21.5").Float64()
	require.NoError(t, err)
	assert.InDelta(t, 21.5, f, 0.001)

	_, err = smarther.Value("warm").Float64()
	assert.Error(t, err)
}

func TestFloatValueFormatting(t *testing.T) {
	t.Parallel()

	assert.Equal(t, smarther.Value("21.5"), smarther.FloatValue(21.5))
	assert.Equal(t, smarther.Value("21"), smarther.FloatValue(21))
	assert.Equal(t, smarther.Value("19.25"), smarther.FloatValue(19.25))
}

func TestInstrumentLatest(t *testing.T) {
	t.Parallel()

	var nilInstrument *smarther.Instrument
	_, ok := nilInstrument.Latest()
	assert.False(t, ok)

	_, ok = (&smarther.Instrument{}).Latest()
	assert.False(t, ok)

	instrument := &smarther.Instrument{Measures: []smarther.Measure{
		{TimeStamp: "2024-01-01T10:00:00", Value: "20.1", Unit: "C"},
		{TimeStamp: "2024-01-01T10:15:00", Value: "20.4", Unit: "C"},
	}}
	latest, ok := instrument.Latest()
	require.True(t, ok)
	assert.Equal(t, smarther.Value("20.4"), latest.Value)
}

func TestMeasuresEmpty(t *testing.T) {
	t.Parallel()

	var nilMeasures *smarther.Measures
	assert.True(t, nilMeasures.Empty())
	assert.True(t, (&smarther.Measures{}).Empty())

	withTemp := &smarther.Measures{
		Thermometer: &smarther.Instrument{Measures: []smarther.Measure{{Value: "20.4"}}},
	}
	assert.False(t, withTemp.Empty())

	withHumidity := &smarther.Measures{
		Hygrometer: &smarther.Instrument{Measures: []smarther.Measure{{Value: "52"}}},
	}
	assert.False(t, withHumidity.Empty())
}

func TestChronothermostatStatusLoadActive(t *testing.T) {
	t.Parallel()

	var nilStatus *smarther.ChronothermostatStatus
	assert.False(t, nilStatus.LoadActive())

	assert.True(t, (&smarther.ChronothermostatStatus{LoadState: smarther.LoadStateActive}).LoadActive())
	assert.False(t, (&smarther.ChronothermostatStatus{LoadState: smarther.LoadStateInactive}).LoadActive())
}

func TestChronothermostatStatusUnmarshal(t *testing.T) {
	t.Parallel()

	const payload = `{
		"function": "heating",
		"mode": "automatic",
		"setPoint": {"value": 21.5, "unit": "C"},
		"programs": [{"number": 1, "name": "Winter"}],
		"temperatureFormat": "C",
		"loadState": "active",
		"time": "2024-01-01T10:15:00",
		"thermometer": {"measures": [{"timeStamp": "2024-01-01T10:15:00", "value": "20.4", "unit": "C"}]},
		"hygrometer": {"measures": [{"timeStamp": "2024-01-01T10:15:00", "value": "52.3", "unit": "%"}]}
	}`

	var status smarther.ChronothermostatStatus
	require.NoError(t, json.Unmarshal([]byte(payload), &status))

	assert.Equal(t, smarther.FunctionHeating, status.Function)
	assert.Equal(t, smarther.ModeAutomatic, status.Mode)
	require.NotNil(t, status.SetPoint)
	assert.Equal(t, smarther.Value("21.5"), status.SetPoint.Value)
	require.Len(t, status.Programs, 1)
	assert.Equal(t, 1, status.Programs[0].Number)
	assert.True(t, status.LoadActive())

	temp, ok := status.Thermometer.Latest()
	require.True(t, ok)
	assert.Equal(t, smarther.Value("20.4"), temp.Value)
}
