package influxdb

import "errors"

// Errors returned by Connect and HealthCheck. Write failures are reported
// asynchronously through the SetOnError callback instead.
var (
	ErrDisabled         = errors.New("influxdb: disabled in configuration")
	ErrConnectionFailed = errors.New("influxdb: could not reach server")
	ErrNotConnected     = errors.New("influxdb: client closed or never connected")
)
