package protocol

// CRC-16/CCITT-XMODEM: polynomial 0x1021, init 0x0000, no reflection, no
// final XOR. Shape follows the teacher's YSF CRC-CCITT implementation
// (pkg/ysf/crc.go), adapted to the XMODEM initial value NIRS frames use.
const crc16Poly = 0x1021

// CRC16XModem computes CRC-16/CCITT (XMODEM variant) over data.
func CRC16XModem(data []byte) uint16 {
	var crc uint16 = 0x0000
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ crc16Poly
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
