package kconfig

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

/// decodeCmdline interprets raw as UTF-8 when it already is one; many
/// bootloaders (and firmware-supplied framebuffer/ACPI string tables
/// more generally) instead hand back Latin-1, which this falls back to
/// via golang.org/x/text/encoding so a stray high-bit byte in a kernel
/// command line doesn't corrupt every token after it.
func decodeCmdline(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}
