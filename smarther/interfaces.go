package smarther

import "context"

// API defines the interface for Smarther API operations.
// This interface enables consumers to create mock implementations for
// testing; all methods mirror the corresponding methods on Client.
//
// Example usage with testify/mock:
//
//	type MockAPI struct {
//	    mock.Mock
//	}
//
//	func (m *MockAPI) ListPlants(ctx context.Context) ([]smarther.Plant, error) {
//	    args := m.Called(ctx)
//	    return args.Get(0).([]smarther.Plant), args.Error(1)
//	}
type API interface {
	// Plants operations

	// ListPlants retrieves the plants associated with the user.
	ListPlants(ctx context.Context) ([]Plant, error)

	// GetPlantTopology retrieves the complete module tree of a plant.
	GetPlantTopology(ctx context.Context, plantID string) (*PlantTopology, error)

	// Chronothermostat operations

	// GetChronothermostatStatus retrieves the complete status of a module.
	GetChronothermostatStatus(ctx context.Context, plantID, moduleID string) (*ChronothermostatStatus, error)

	// GetChronothermostatMeasures retrieves the measured temperature and humidity of a module.
	GetChronothermostatMeasures(ctx context.Context, plantID, moduleID string) (*Measures, error)

	// SetChronothermostatStatus writes a new operating state for a module.
	SetChronothermostatStatus(ctx context.Context, plantID, moduleID, function, mode string, opts *SetStatusOptions) error

	// GetChronothermostatPrograms retrieves the program list managed by a module.
	GetChronothermostatPrograms(ctx context.Context, plantID, moduleID string) ([]Program, error)
}
