//go:build tinygo

//go:generate tinygo flash -target=xiao

package main

import (
	"machine"
	"time"
)

var (
	adcGas machine.ADC

	bootTime   time.Time
	lastSample time.Time
)

func main() {
	// Vibration sensor pulls the line low when triggered
	PIN_VIBRATION.Configure(machine.PinConfig{Mode: machine.PinInputPullup})

	machine.InitADC()
	PIN_GAS.Configure(machine.PinConfig{Mode: machine.PinInput})
	adcGas = machine.ADC{Pin: PIN_GAS}
	adcGas.Configure(machine.ADCConfig{
		Reference:  ADC_REFERENCE_MV,
		Resolution: ADC_RESOLUTION,
	})

	machine.Serial.Configure(machine.UARTConfig{
		BaudRate: UART_BAUD_RATE,
	})

	bootTime = time.Now()
	lastSample = bootTime

	for {
		now := time.Now()

		if now.Sub(lastSample) >= time.Duration(SAMPLE_INTERVAL_MS)*time.Millisecond {
			report(now)
			lastSample = now
		}

		// Small delay to prevent tight loop (but still allow precise timing)
		time.Sleep(100 * time.Microsecond)
	}
}

// report reads both pins and prints one line.
// Output format: "uptime_millis,level,gas\n"
// Example: "123456,1,3512\n"
func report(now time.Time) {
	level := PIN_VIBRATION.Get()

	// ADC.Get scales every resolution to 16 bits
	gas := adcGas.Get() >> (16 - ADC_RESOLUTION)

	print(uint32(now.Sub(bootTime).Milliseconds()))
	print(",")
	if level {
		print("1")
	} else {
		print("0")
	}
	print(",")
	print(gas)
	print("\n")
}
