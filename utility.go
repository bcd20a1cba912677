package fat

import (
	"strings"

	"github.com/dsoprea/go-logging"
)

// EntryNameFromDottedName encodes a conventional dotted filename
// ("README.TXT") as the raw 11-byte 8.3 field: the base left-justified and
// space-padded to eight bytes, then the extension left-justified and
// space-padded to three. The name is upper-cased; no other normalization
// is applied.
func EntryNameFromDottedName(dottedName string) (en EntryName, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			err = log.Wrap(errRaw.(error))
		}
	}()

	base := strings.ToUpper(dottedName)
	extension := ""

	if i := strings.LastIndex(base, "."); i > 0 {
		extension = base[i+1:]
		base = base[:i]
	}

	if len(base) == 0 || len(base) > 8 {
		log.Panicf("name base not expressible in 8.3: [%s]", dottedName)
	} else if len(extension) > 3 {
		log.Panicf("name extension not expressible in 8.3: [%s]", dottedName)
	}

	copy(en[:], "           ")
	copy(en[:8], base)
	copy(en[8:], extension)

	return en, nil
}

// DottedNameFromEntryName renders the raw 11-byte name field in the
// conventional dotted form. The stored padding is dropped; a name with a
// blank extension has no dot.
func DottedNameFromEntryName(en EntryName) string {
	base := strings.TrimRight(string(en[:8]), " ")
	extension := strings.TrimRight(string(en[8:]), " ")

	if extension == "" {
		return base
	}

	return base + "." + extension
}
