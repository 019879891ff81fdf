package fraud

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"io"
)

const maxICCProfileSize = 4 << 20

var (
	pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	iccJPEGTag   = []byte("ICC_PROFILE\x00")
)

// extractICCProfile returns the embedded color profile of a JPEG, PNG or
// WebP image, or nil when the container carries none.
func extractICCProfile(buf []byte) []byte {
	switch {
	case len(buf) > 2 && buf[0] == 0xFF && buf[1] == 0xD8:
		return jpegICC(buf)
	case bytes.HasPrefix(buf, pngSignature):
		return pngICC(buf)
	case len(buf) > 12 && string(buf[0:4]) == "RIFF" && string(buf[8:12]) == "WEBP":
		return webpICC(buf)
	}
	return nil
}

// jpegICC concatenates APP2 ICC_PROFILE segments in file order.
func jpegICC(buf []byte) []byte {
	var out []byte
	i := 2
	for i+4 <= len(buf) {
		if buf[i] != 0xFF {
			break
		}
		marker := buf[i+1]
		switch {
		case marker == 0xFF:
			i++
			continue
		case marker == 0x01 || (marker >= 0xD0 && marker <= 0xD8):
			i += 2
			continue
		case marker == 0xDA || marker == 0xD9:
			return out
		}
		segLen := int(binary.BigEndian.Uint16(buf[i+2 : i+4]))
		end := i + 2 + segLen
		if segLen < 2 || end > len(buf) {
			break
		}
		seg := buf[i+4 : end]
		if marker == 0xE2 && bytes.HasPrefix(seg, iccJPEGTag) && len(seg) > len(iccJPEGTag)+2 {
			out = append(out, seg[len(iccJPEGTag)+2:]...)
		}
		i = end
	}
	return out
}

// pngICC inflates the iCCP chunk: name, NUL, compression method, zlib data.
func pngICC(buf []byte) []byte {
	i := len(pngSignature)
	for i+8 <= len(buf) {
		n := int(binary.BigEndian.Uint32(buf[i : i+4]))
		typ := string(buf[i+4 : i+8])
		start := i + 8
		end := start + n
		if n < 0 || end+4 > len(buf) {
			return nil
		}
		switch typ {
		case "iCCP":
			data := buf[start:end]
			nul := bytes.IndexByte(data, 0)
			if nul < 0 || nul+2 > len(data) {
				return nil
			}
			zr, err := zlib.NewReader(bytes.NewReader(data[nul+2:]))
			if err != nil {
				return nil
			}
			defer zr.Close()
			profile, err := io.ReadAll(io.LimitReader(zr, maxICCProfileSize))
			if err != nil {
				return nil
			}
			return profile
		case "IDAT", "IEND":
			return nil
		}
		i = end + 4
	}
	return nil
}

// webpICC returns the ICCP chunk of an extended-format WebP file.
func webpICC(buf []byte) []byte {
	i := 12
	for i+8 <= len(buf) {
		fourcc := string(buf[i : i+4])
		n := int(binary.LittleEndian.Uint32(buf[i+4 : i+8]))
		start := i + 8
		end := start + n
		if n < 0 || end > len(buf) {
			return nil
		}
		if fourcc == "ICCP" {
			return buf[start:end]
		}
		i = end + n%2
	}
	return nil
}
