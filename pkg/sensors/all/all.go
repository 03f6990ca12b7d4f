// Package all is a convenience wrapper that registers every sensor driver.
// Importing this package lets gomotion.NewSensor find a driver for any
// supported sensor.
package all

// Import each implementation package for its side-effects (the init() function).
import (
	_ "github.com/mlsorensen/gomotion/pkg/sensors/mock"
	_ "github.com/mlsorensen/gomotion/pkg/sensors/mpu6050"
	// When you add a sensor, you would add this line:
	// _ "github.com/mlsorensen/gomotion/pkg/sensors/[model]"
)
