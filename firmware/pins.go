//go:build tinygo

package main

import "machine"

const (
	// Sampling configuration
	SAMPLE_INTERVAL_MS = 5 // Pin read and report interval in milliseconds

	// ADC configuration
	ADC_REFERENCE_MV = 3300 // Reference voltage in millivolts (3.3V)
	ADC_RESOLUTION   = 12   // ADC resolution in bits (12-bit = 0-4095)

	// Vibration sensor output, active-low, needs the internal pull-up
	PIN_VIBRATION = machine.D2

	// Gas sensor analog output
	PIN_GAS = machine.A1

	// Serial configuration
	// Line format: "uptime_millis,level,gas\n", at most "4294967295,1,4095\n" = 18 bytes.
	// 200 lines/sec * 18 bytes = 3,600 bytes/sec; UART 8N1 needs 36,000 baud.
	// 115200 leaves ~3x headroom.
	UART_BAUD_RATE = 115200
)
