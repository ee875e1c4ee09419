package models

// Location identifies the memory space a buffer or decoded volume lives in.
type Location int

const (
	// Host is ordinary Go heap memory.
	Host Location = iota

	// Direct is a page-aligned region allocated outside the Go heap and
	// filled by the bulk reader without an intermediate copy.
	Direct
)

func (l Location) String() string {
	switch l {
	case Host:
		return "host"
	case Direct:
		return "direct"
	default:
		return "unknown"
	}
}
