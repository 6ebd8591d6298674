package serial

import (
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	bugst "go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// PortEnumerator lists the serial devices present on the system
type PortEnumerator interface {
	ListAvailableDevices() ([]string, error)
}

// Regular expressions for different types of serial devices
var serialPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^ttyUSB\d+$`), // USB serial adapters
	regexp.MustCompile(`^ttyACM\d+$`), // USB CDC/ACM devices
	regexp.MustCompile(`^ttyS\d+$`),   // Standard serial ports
	regexp.MustCompile(`^ttyAMA\d+$`), // ARM/Raspberry Pi serial
	regexp.MustCompile(`^ttymxc\d+$`), // i.MX serial ports
	regexp.MustCompile(`^ttyO\d+$`),   // OMAP serial ports
	regexp.MustCompile(`^ttySAC\d+$`), // Samsung serial ports
	regexp.MustCompile(`^ttyTHS\d+$`), // Tegra serial ports
}

// Exclude patterns for virtual terminals and other non-serial devices
var excludePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^tty\d+$`),  // Virtual terminals (tty1, tty2, etc.)
	regexp.MustCompile(`^console$`), // Console
	regexp.MustCompile(`^ptmx$`),    // Pseudo-terminal multiplexer
	regexp.MustCompile(`^pty.*$`),   // Pseudo-terminals
	regexp.MustCompile(`^pts/.*$`),  // Pseudo-terminal slaves
}

// DevScanner finds serial devices by scanning a device directory for known
// tty names. Virtual terminals and pseudo-terminals are skipped.
type DevScanner struct {
	Dir string // defaults to /dev
}

var _ PortEnumerator = DevScanner{}

// ListAvailableDevices returns the matching character devices, sorted
func (d DevScanner) ListAvailableDevices() ([]string, error) {
	devDir := d.Dir
	if devDir == "" {
		devDir = "/dev"
	}
	entries, err := os.ReadDir(devDir)
	if err != nil {
		return nil, err
	}

	var ports []string
	for _, entry := range entries {
		name := entry.Name()
		if !isSerialName(name) {
			continue
		}
		fullPath := filepath.Join(devDir, name)
		if isCharacterDevice(fullPath) {
			ports = append(ports, fullPath)
		}
	}

	sort.Strings(ports)
	return ports, nil
}

// isSerialName applies the include and exclude patterns to a device name
func isSerialName(name string) bool {
	for _, pattern := range excludePatterns {
		if pattern.MatchString(name) {
			return false
		}
	}
	for _, pattern := range serialPatterns {
		if pattern.MatchString(name) {
			return true
		}
	}
	return false
}

// isCharacterDevice checks if the given path is a character device
func isCharacterDevice(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// SystemEnumerator asks the operating system for its serial ports
type SystemEnumerator struct{}

var _ PortEnumerator = SystemEnumerator{}

func (SystemEnumerator) ListAvailableDevices() ([]string, error) {
	ports, err := bugst.GetPortsList()
	if err != nil {
		return nil, errors.Wrap(err, "list system ports")
	}
	sort.Strings(ports)
	return ports, nil
}

// DefaultEnumerator returns the enumerator ListPorts uses on this platform
func DefaultEnumerator() PortEnumerator {
	if runtime.GOOS == "linux" {
		return DevScanner{}
	}
	return SystemEnumerator{}
}

// ListPorts returns a list of available serial ports on the system
func ListPorts() ([]string, error) {
	return DefaultEnumerator().ListAvailableDevices()
}

var trailingDigits = regexp.MustCompile(`(\d+)$`)

// PortNumbers maps device names to the logical port numbers accepted by
// WithPort, in ascending order. Names without a number or beyond
// MaxPortNumber are skipped, as are duplicates.
func PortNumbers(e PortEnumerator) ([]int, error) {
	devices, err := e.ListAvailableDevices()
	if err != nil {
		return nil, err
	}
	seen := make(map[int]bool)
	var numbers []int
	for _, device := range devices {
		m := trailingDigits.FindString(filepath.Base(device))
		if m == "" {
			continue
		}
		n, err := strconv.Atoi(m)
		if err != nil || n > MaxPortNumber || seen[n] {
			continue
		}
		seen[n] = true
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	return numbers, nil
}

// PortInfo describes a serial port
type PortInfo struct {
	Name         string
	Path         string
	Description  string
	IsUSB        bool
	VendorID     string
	ProductID    string
	SerialNumber string
	Product      string
}

// GetPortInfo returns detailed information about a specific port
func GetPortInfo(portPath string) (*PortInfo, error) {
	if runtime.GOOS != "windows" && !isCharacterDevice(portPath) {
		return nil, ErrDeviceNotFound
	}

	name := filepath.Base(portPath)
	info := &PortInfo{
		Name:        name,
		Path:        portPath,
		Description: getPortDescription(name),
	}

	if details, err := enumerator.GetDetailedPortsList(); err == nil {
		enrichUSBInfo(info, details)
	}
	return info, nil
}

// getPortDescription provides human-readable descriptions for different port types
func getPortDescription(name string) string {
	switch {
	case strings.HasPrefix(name, "ttyUSB"):
		return "USB Serial Port"
	case strings.HasPrefix(name, "ttyACM"):
		return "USB CDC/ACM Device"
	case strings.HasPrefix(name, "ttyAMA"):
		return "ARM Serial Port"
	case strings.HasPrefix(name, "ttymxc"):
		return "i.MX Serial Port"
	case strings.HasPrefix(name, "ttySAC"):
		return "Samsung Serial Port"
	case strings.HasPrefix(name, "ttyTHS"):
		return "Tegra Serial Port"
	case strings.HasPrefix(name, "ttyO"):
		return "OMAP Serial Port"
	case strings.HasPrefix(name, "ttyS"):
		return "Standard Serial Port"
	default:
		return "Serial Port"
	}
}

// enrichUSBInfo copies USB metadata for info's device from details
func enrichUSBInfo(info *PortInfo, details []*enumerator.PortDetails) {
	for _, d := range details {
		if d == nil || (d.Name != info.Path && filepath.Base(d.Name) != info.Name) {
			continue
		}
		info.IsUSB = d.IsUSB
		info.VendorID = d.VID
		info.ProductID = d.PID
		info.SerialNumber = d.SerialNumber
		info.Product = d.Product
		return
	}
}
