// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import "time"

// bitsPerChar is start bit, 8 data bits and stop bit.
const bitsPerChar = 10

// CharTime returns the time needed to transmit one character at baudRate.
func CharTime(baudRate int) time.Duration {
	if baudRate <= 0 {
		baudRate = 19200
	}
	return time.Duration(bitsPerChar) * time.Second / time.Duration(baudRate)
}

// FrameDelay returns the 3.5 character silence that delimits frames.
// Above 19200 baud the fixed 1750us recommended for fast lines is used.
func FrameDelay(baudRate int) time.Duration {
	if baudRate <= 0 || baudRate > 19200 {
		return 1750 * time.Microsecond
	}
	return 35 * time.Second / time.Duration(baudRate)
}

// TransmitTime returns the time needed to move chars characters plus the
// trailing frame delay.
func TransmitTime(baudRate, chars int) time.Duration {
	return CharTime(baudRate)*time.Duration(chars) + FrameDelay(baudRate)
}
