// Package influxdb mirrors ingested BAES statuses into InfluxDB as the
// baes_status measurement (tag device_id; fields error_code, vibration,
// temperature) for long-range dashboards.
//
// SQLite stays the system of record. Writes here are batched and
// non-blocking, and failures only reach the SetOnError callback.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry export is optional
//	}
package influxdb
