// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package il2cpp

// Fuzz is a go-fuzz entry point exercising the top-level parser. It
// treats data as a length-prefixed pair of buffers (global metadata,
// then ELF), the same "one []byte in, one int out" contract as the
// teacher's fuzz.go.
func Fuzz(data []byte) int {
	if len(data) < 4 {
		return 0
	}
	split := int(uint32(data[0])<<24|uint32(data[1])<<16|uint32(data[2])<<8|uint32(data[3])) % (len(data) - 4 + 1)
	rest := data[4:]
	if split > len(rest) {
		return 0
	}
	globalBytes, elfBytes := rest[:split], rest[split:]

	m, err := Parse(globalBytes, elfBytes, &Options{StrictVersion: false})
	if err != nil {
		return 0
	}
	_ = m
	return 1
}
