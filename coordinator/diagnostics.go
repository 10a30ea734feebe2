package coordinator

import "fmt"

// Diagnostics returns a diagnostics map for one device. Plant and module
// IDs are partially redacted; tokens never appear in coordinator state.
func (c *Coordinator) Diagnostics() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	diag := map[string]any{
		"plant_id":            redactID(c.plantID),
		"module_id":           redactID(c.moduleID),
		"module_name":         c.moduleName,
		"update_interval":     c.interval.String(),
		"available":           c.available,
		"last_update_success": c.lastSuccess,
	}

	if c.errorInfo != nil {
		diag["error_info"] = map[string]any{
			"code":    c.errorInfo.Code,
			"message": c.errorInfo.Message,
		}
	}

	if c.snapshot != nil {
		snap := map[string]any{
			"fetched_at": c.snapshot.FetchedAt,
			"function":   c.snapshot.Status.Function,
			"mode":       c.snapshot.Status.Mode,
			"load_state": c.snapshot.Status.LoadState,
		}
		if temp, ok := c.snapshot.Temperature(); ok {
			snap["temperature"] = temp
		}
		if humidity, ok := c.snapshot.Humidity(); ok {
			snap["humidity"] = humidity
		}
		if target, ok := c.snapshot.TargetTemperature(); ok {
			snap["target_temperature"] = target
		}
		diag["snapshot"] = snap
	}

	return diag
}

// Diagnostics returns the diagnostics maps of every registered device.
func (r *Registry) Diagnostics() []map[string]any {
	coordinators := r.All()
	out := make([]map[string]any, 0, len(coordinators))
	for _, c := range coordinators {
		out = append(out, c.Diagnostics())
	}
	return out
}

// redactID keeps enough of an identifier to correlate reports without
// exposing it whole.
func redactID(id string) string {
	if len(id) > 12 {
		return fmt.Sprintf("%s...%s", id[:8], id[len(id)-4:])
	}
	return "**REDACTED**"
}
