/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	serial "github.com/allbin/async-serial"
	"github.com/allbin/async-serial/internal/tui/components"
	"github.com/allbin/async-serial/internal/tui/styles"
	"github.com/spf13/cobra"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available serial ports",
	Long: `List all available serial ports on the system.

On Linux the /dev directory is scanned for communication-capable devices:
- USB serial adapters (ttyUSB*)
- USB CDC/ACM devices (ttyACM*)
- Standard serial ports (ttyS*)
- ARM/Raspberry Pi ports (ttyAMA*)
- And other platform-specific serial devices

Virtual terminals and pseudo-terminals are excluded from the listing.
Use --system to ask the operating system instead, and --numbers to print the
port numbers accepted in place of a device path.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		filterType, _ := cmd.Flags().GetString("filter")
		tableFormat, _ := cmd.Flags().GetBool("table")
		system, _ := cmd.Flags().GetBool("system")
		numbersOnly, _ := cmd.Flags().GetBool("numbers")

		var enumerator serial.PortEnumerator = serial.DefaultEnumerator()
		if system {
			enumerator = serial.SystemEnumerator{}
		}

		if numbersOnly {
			numbers, err := serial.PortNumbers(enumerator)
			if err != nil {
				return fmt.Errorf("listing ports: %w", err)
			}
			for _, n := range numbers {
				fmt.Println(n)
			}
			return nil
		}

		ports, err := enumerator.ListAvailableDevices()
		if err != nil {
			return fmt.Errorf("listing ports: %w", err)
		}

		filtered := filterPorts(ports, filterType)
		if len(filtered) == 0 {
			if filterType != "" && filterType != "all" {
				fmt.Printf("No serial ports found matching filter: %s\n", filterType)
			} else {
				fmt.Println("No serial ports found")
			}
			return nil
		}

		if tableFormat {
			renderTable(filtered)
		} else {
			renderSimple(filtered)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringP("filter", "f", "", "Filter by port type: usb, standard, arm, all")
	listCmd.Flags().BoolP("table", "t", false, "Display output in a styled table format")
	listCmd.Flags().Bool("system", false, "Ask the operating system for its port list")
	listCmd.Flags().BoolP("numbers", "n", false, "Print port numbers instead of paths")
}

// filterPorts filters the port list based on the specified filter type
func filterPorts(ports []string, filterType string) []string {
	filterType = strings.ToLower(filterType)
	if filterType == "" || filterType == "all" {
		return ports
	}

	var filtered []string
	for _, port := range ports {
		name := strings.ToLower(filepath.Base(port))
		switch filterType {
		case "usb":
			if strings.HasPrefix(name, "ttyusb") || strings.HasPrefix(name, "ttyacm") {
				filtered = append(filtered, port)
			}
		case "standard":
			if strings.HasPrefix(name, "ttys") {
				filtered = append(filtered, port)
			}
		case "arm":
			if strings.HasPrefix(name, "ttyama") {
				filtered = append(filtered, port)
			}
		}
	}
	return filtered
}

// portRows collects the details shown for each port
func portRows(ports []string) []components.PortRow {
	rows := make([]components.PortRow, 0, len(ports))
	for _, port := range ports {
		row := components.PortRow{Number: portNumber(port)}
		if info, err := serial.GetPortInfo(port); err == nil {
			row.Info = *info
		} else {
			row.Info = serial.PortInfo{Name: filepath.Base(port), Path: port, Description: "Unknown"}
		}
		rows = append(rows, row)
	}
	return rows
}

// portNumber returns the number WithPort would map to port, or -1
func portNumber(port string) int {
	name := filepath.Base(port)
	end := len(name)
	start := end
	for start > 0 && name[start-1] >= '0' && name[start-1] <= '9' {
		start--
	}
	if start == end {
		return -1
	}
	n, err := strconv.Atoi(name[start:end])
	if err != nil || n > serial.MaxPortNumber {
		return -1
	}
	return n
}

// renderTable renders the port list in a styled static table format
func renderTable(ports []string) {
	fmt.Println(styles.InfoStyle.Render(fmt.Sprintf("Found %d serial port(s):", len(ports))))
	fmt.Println(components.NewPortTable(portRows(ports)).View())
}

// renderSimple renders the port list in simple text format
func renderSimple(ports []string) {
	for _, port := range ports {
		fmt.Println(port)
	}
}
