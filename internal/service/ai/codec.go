package ai

import (
	"bytes"
	"encoding/binary"
	"strconv"
	"strings"
)

// StripCodeFence removes an optional ```json ... ``` wrapper. When the model
// surrounds the JSON with prose (common with search grounding), the outermost
// object or array is cut out.
func StripCodeFence(text string) string {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```json") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
	} else if strings.HasPrefix(cleaned, "```JSON") {
		cleaned = strings.TrimPrefix(cleaned, "```JSON")
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
	}
	cleaned = strings.TrimSpace(cleaned)
	cleaned = strings.TrimSpace(strings.TrimSuffix(cleaned, "```"))

	if cleaned == "" || cleaned[0] == '{' || cleaned[0] == '[' {
		return cleaned
	}
	return extractJSONBlock(cleaned)
}

func extractJSONBlock(text string) string {
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return text
	}
	closer := byte('}')
	if text[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(text, closer)
	if end <= start {
		return text
	}
	return text[start : end+1]
}

const (
	defaultPCMRate     = 24000
	pcmChannels        = 1
	pcmBitsPerSample   = 16
	wavHeaderSize      = 44
	wavFormatPCM       = 1
	wavFmtChunkSize    = 16
	wavMIMEType        = "audio/wav"
	pcmRateMIMEParamID = "rate="
)

// pcmToWAV wraps raw little-endian 16-bit mono PCM in a WAV container so
// browsers can play it. Payloads that already are WAV pass through.
func pcmToWAV(data []byte, mimeType string) *MediaAsset {
	if bytes.HasPrefix(data, []byte("RIFF")) {
		return &MediaAsset{MIMEType: wavMIMEType, Data: data}
	}

	rate := pcmRateFromMIME(mimeType)
	byteRate := rate * pcmChannels * pcmBitsPerSample / 8
	blockAlign := pcmChannels * pcmBitsPerSample / 8

	var buf bytes.Buffer
	buf.Grow(wavHeaderSize + len(data))
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+len(data)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(wavFmtChunkSize))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(wavFormatPCM))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(pcmChannels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(rate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(pcmBitsPerSample))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(data)))
	buf.Write(data)

	return &MediaAsset{MIMEType: wavMIMEType, Data: buf.Bytes()}
}

// pcmRateFromMIME reads the sample rate from "audio/L16;codec=pcm;rate=24000".
func pcmRateFromMIME(mimeType string) int {
	for _, param := range strings.Split(mimeType, ";") {
		param = strings.TrimSpace(param)
		if strings.HasPrefix(param, pcmRateMIMEParamID) {
			if rate, err := strconv.Atoi(strings.TrimPrefix(param, pcmRateMIMEParamID)); err == nil && rate > 0 {
				return rate
			}
		}
	}
	return defaultPCMRate
}
