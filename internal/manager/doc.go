// Package manager owns the lifecycle of catalog models and the single live
// inference session. It is structured into small files by concern:
//
//   - manager.go: core Manager type, snapshots and Close.
//   - config.go: ManagerConfig and package defaults; NewWithConfig applies defaults.
//   - types.go: State and the Entry snapshot.
//   - errors.go: error types and helpers (IsModelNotFound, IsNotReady).
//   - download.go: DownloadModel and the background fetch/convert task.
//   - unload.go: DeleteModel.
//   - ops.go: SelectModel.
//   - evict.go: session eviction and the idle timer.
//   - inference.go: RequestCompletion and the NDJSON Infer writer.
//   - status_report.go: Status projection for /status.
//   - sanity.go: binary discovery report.
//   - metrics.go: prometheus collectors.
//
// All state lives behind one mutex. Background work (downloads, idle timer
// callbacks, stream completion) re-enters through that mutex, so a caller
// never observes a half-applied transition.
package manager
