package master

import (
	"fmt"
	"strings"
)

// Printable formats raw wire bytes for logging: printable ASCII as-is, the
// rest as hex
func Printable(data []byte) string {
	var builder strings.Builder
	for _, item := range data {
		if 32 < item && item <= 126 {
			builder.WriteByte(item)
		} else {
			builder.WriteString(fmt.Sprintf(" %02X ", item))
		}
	}
	return builder.String()
}
