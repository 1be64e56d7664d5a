// Package device stores BAES units and their status timelines.
//
// The Engine is the write path for statuses. Ingest appends one status
// per reading and creates unknown units on the fly, unassigned and at
// position (0,0). Acknowledge flips the solved flag and records who did
// it. Statuses are never deduplicated.
//
// The latest status of a device is the one with the greatest timestamp;
// equal timestamps are broken by the higher id.
//
//	engine := device.NewEngine(db)
//	engine.SetLogger(log.With("component", "timeline"))
//	res, err := engine.Ingest(ctx, device.IngestRequest{DeviceID: 42, ErrorCode: device.CodeBattery})
package device
