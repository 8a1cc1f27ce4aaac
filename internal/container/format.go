// Package container implements the one piece of the "pre-existing
// dense-array file format" that the design treats as an external
// collaborator named only at its contract: enough of a concrete
// single-subarray container to exercise read/write end to end. The
// magic-number sniff and the container/schema-version pairing follow
// exactly; the body encoding beyond that is this module's own
// business, the same way distri's squashfs package owns its own
// on-disk inode layout while still matching a well-known header.
package container

import (
	"fmt"

	"github.com/cfadata/cfa/internal/cfaerr"
	"github.com/cfadata/cfa/internal/manifest"
)

// Sniff classifies a container's generation from its first 6 bytes,
// magic-number table.
func Sniff(locator string, first6 []byte) (manifest.ContainerFormat, error) {
	if len(first6) < 4 {
		return manifest.FormatUnknown, cfaerr.UnknownFormat(locator)
	}
	if first6[1] == 'H' && first6[2] == 'D' && first6[3] == 'F' {
		return manifest.FormatModernV5, nil
	}
	if first6[0] == 0x0e && first6[1] == 0x03 && first6[2] == 0x13 && first6[3] == 0x01 {
		return manifest.FormatModernV4, nil
	}
	if first6[0] == 'C' && first6[1] == 'D' && first6[2] == 'F' {
		switch first6[3] {
		case 1:
			return manifest.FormatClassic, nil
		case 2:
			return manifest.FormatClassic64Offset, nil
		case 5:
			return manifest.FormatClassic64Data, nil
		default:
			return manifest.FormatUnknown, cfaerr.UnknownFormat(locator)
		}
	}
	return manifest.FormatUnknown, cfaerr.UnknownFormat(locator)
}

// MagicBytes returns the canonical magic prefix written for format,
// the inverse of Sniff.
func MagicBytes(format manifest.ContainerFormat) ([]byte, error) {
	switch format {
	case manifest.FormatClassic:
		return []byte{'C', 'D', 'F', 1}, nil
	case manifest.FormatClassic64Offset:
		return []byte{'C', 'D', 'F', 2}, nil
	case manifest.FormatClassic64Data:
		return []byte{'C', 'D', 'F', 5}, nil
	case manifest.FormatModernV4:
		return []byte{0x0e, 0x03, 0x13, 0x01}, nil
	case manifest.FormatModernV5:
		return []byte{0x89, 'H', 'D', 'F', 0x0d, 0x0a}, nil
	default:
		return nil, fmt.Errorf("no magic bytes defined for format %v", format)
	}
}
