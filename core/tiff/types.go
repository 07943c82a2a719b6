package tiff

import "fmt"

// DataType is the TIFF field type of an entry.
type DataType uint16

const (
	Byte      DataType = 1
	ASCII     DataType = 2
	Short     DataType = 3
	Long      DataType = 4
	Rat       DataType = 5
	SByte     DataType = 6
	Undefined DataType = 7
	SShort    DataType = 8
	SLong     DataType = 9
	SRat      DataType = 10
	Float     DataType = 11
	Double    DataType = 12
	IFDType   DataType = 13
)

var typeSizes = map[DataType]int{
	Byte:      1,
	ASCII:     1,
	Short:     2,
	Long:      4,
	Rat:       8,
	SByte:     1,
	Undefined: 1,
	SShort:    2,
	SLong:     4,
	SRat:      8,
	Float:     4,
	Double:    8,
	IFDType:   4,
}

var typeNames = map[DataType]string{
	Byte:      "BYTE",
	ASCII:     "ASCII",
	Short:     "SHORT",
	Long:      "LONG",
	Rat:       "RATIONAL",
	SByte:     "SBYTE",
	Undefined: "UNDEFINED",
	SShort:    "SSHORT",
	SLong:     "SLONG",
	SRat:      "SRATIONAL",
	Float:     "FLOAT",
	Double:    "DOUBLE",
	IFDType:   "IFD",
}

// Size is the width of one component, 0 for unknown types.
func (t DataType) Size() int { return typeSizes[t] }

func (t DataType) Valid() bool { return typeSizes[t] != 0 }

func (t DataType) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("TYPE(%d)", uint16(t))
}
