package cluster

var xidDescriptions = map[int]string{
	13: "Graphics Engine Exception",
	31: "GPU memory page fault",
	43: "GPU stopped processing",
	45: "Preemptive cleanup, due to previous errors",
	48: "Double Bit ECC Error",
	61: "Internal micro-controller breakpoint/warning",
	62: "Internal micro-controller halt",
	63: "ECC page retirement or row remapping recording event",
	64: "ECC page retirement or row remapper recording failure",
	74: "NVLink Error",
	79: "GPU has fallen off the bus",
	92: "High single-bit ECC error rate",
	94: "Contained ECC error",
	95: "Uncontained ECC error",
}

// XIDDescription returns the driver description of an XID code.
func XIDDescription(code int) string {
	if d, ok := xidDescriptions[code]; ok {
		return d
	}
	return "Unknown XID"
}

// XIDSeverity returns the GPU health an XID of the given code implies.
func XIDSeverity(code int) HealthStatus {
	switch code {
	case 48, 62, 64, 74, 79, 95:
		return HealthCritical
	default:
		return HealthWarning
	}
}
