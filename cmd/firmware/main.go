//go:build tinygo && stm32f103

// Command firmware runs the interrupt-driven I2C engine on a bluepill board
// (STM32F103C8, I2C1 on PB6/PB7) and prints MPU-6050 readings on the UART.
package main

import (
	"context"
	"device/stm32"
	"machine"
	"runtime/interrupt"
	"time"

	"github.com/mklimuk/f1hal"
	"github.com/mklimuk/f1hal/accel"
	"github.com/mklimuk/f1hal/i2c"
	"github.com/mklimuk/f1hal/osal"
	f1 "github.com/mklimuk/f1hal/stm32"
)

// APB1 runs at half the 72MHz system clock.
const pclk1 = 36_000_000

var (
	evt  *i2c.InterruptHandler
	errh *i2c.ErrorInterruptHandler
)

func main() {
	// pins and peripheral clock; the engine reprograms the timing below
	err := machine.I2C0.Configure(machine.I2CConfig{SCL: machine.PB6, SDA: machine.PB7})
	if err != nil {
		println("i2c pin setup failed:", err.Error())
		return
	}
	p := f1.New(f1.I2C1, pclk1)
	err = p.Configure(i2c.DefaultSpeed, f1.Duty2)
	if err != nil {
		println("i2c timing setup failed:", err.Error())
		return
	}
	var bus *i2c.Bus
	bus, evt, errh = i2c.New(p, i2c.WithOS(osal.Spin{}), i2c.WithMinTimeout(5*time.Millisecond))

	ev := interrupt.New(stm32.IRQ_I2C1_EV, func(interrupt.Interrupt) { evt.Handle() })
	er := interrupt.New(stm32.IRQ_I2C1_ER, func(interrupt.Interrupt) { errh.Handle() })
	er.SetPriority(0x40)
	ev.SetPriority(0x80)
	er.Enable()
	ev.Enable()

	mpu := accel.NewMPU6050(i2c.NewSoleDevice(bus, f1hal.SevenBit(accel.DefaultAddress)), accel.WithInterval(500*time.Millisecond))
	for {
		err = mpu.Poll(context.Background(), func(s accel.Sample, err error) bool {
			if err != nil {
				println("read failed:", err.Error(), "class:", i2c.Classify(err).String())
				return true
			}
			println("who_am_i:", s.WhoAmI, "temp_mC:", int(s.Temperature*1000), "config:", s.Config[0], s.Config[1], s.Config[2], s.Config[3])
			return true
		})
		println("sensor init failed:", err.Error())
		time.Sleep(time.Second)
	}
}
