package protocol

import "testing"

func TestCRC16XModem_CheckString(t *testing.T) {
	got := CRC16XModem([]byte("123456789"))
	if got != 0x31C3 {
		t.Errorf("CRC16XModem(\"123456789\") = 0x%04X, want 0x31C3", got)
	}
}
