// Package coordinator manages the polling lifecycle of Smarther devices.
//
// One Coordinator owns one device. It polls the API on a fixed interval,
// issuing the status and measures fetches concurrently, and folds remote
// failures into a small availability surface instead of exposing raw
// transport errors:
//
//   - success: new immutable Snapshot, Available() true, ErrorInfo() nil
//   - device offline (404): Available() false with ErrorInfo(), previous
//     snapshot retained, cycle still counts as completed
//   - vendor precondition expired (469/470): same degraded handling
//   - authentication failure: surfaced through the OnAuthError hook so the
//     process can trigger re-authorization
//   - transient failures: logged and retried on the next tick
//
// Write operations (SetTargetTemperature, SetHvacMode, SetPresetMode) issue
// one set-status call and then request an immediate refresh; the cached
// snapshot is never updated optimistically.
//
// The Registry collects the process's coordinators keyed by device and is
// passed explicitly to components that need lookup.
package coordinator
