package vdbview

import "unsafe"

// floatBytes views a packed float32 slice as raw bytes without copying.
func floatBytes(s []float32) []byte {
	if len(s) == 0 {
		return nil
	}
	return toBytes(unsafe.Pointer(&s[0]), len(s)*int(unsafe.Sizeof(float32(0))))
}

// uint32Bytes views a uint32 slice as raw bytes without copying.
func uint32Bytes(s []uint32) []byte {
	if len(s) == 0 {
		return nil
	}
	return toBytes(unsafe.Pointer(&s[0]), len(s)*int(unsafe.Sizeof(uint32(0))))
}
