package icon

import (
	"bytes"
	"encoding/binary"
)

// ICO wraps a PNG in a single-image .ico container. Windows tray icons need
// ICO bytes; Vista and later accept PNG payloads inside the container.
func ICO(pngData []byte) []byte {
	var buf bytes.Buffer
	// ICONDIR
	_ = binary.Write(&buf, binary.LittleEndian, [3]uint16{0, 1, 1})
	// ICONDIRENTRY: width/height 0 would mean 256, so write Size directly.
	entry := struct {
		Width, Height, Colors, Reserved uint8
		Planes, BitCount                uint16
		BytesInRes, ImageOffset         uint32
	}{Size, Size, 0, 0, 1, 32, uint32(len(pngData)), 6 + 16}
	_ = binary.Write(&buf, binary.LittleEndian, entry)
	buf.Write(pngData)
	return buf.Bytes()
}
