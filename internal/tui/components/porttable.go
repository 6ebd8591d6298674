package components

import (
	"strconv"

	serial "github.com/allbin/async-serial"
	"github.com/allbin/async-serial/internal/tui/colors"
	"github.com/charmbracelet/lipgloss"
	"github.com/evertras/bubble-table/table"
)

const (
	columnKeyPort        = "port"
	columnKeyNumber      = "number"
	columnKeyDescription = "description"
	columnKeyUSB         = "usb"
	columnKeyProduct     = "product"
)

// PortRow is one discovered port. Number is -1 when the device has no
// logical port number.
type PortRow struct {
	Info   serial.PortInfo
	Number int
}

// NewPortTable renders discovered ports in a rounded table
func NewPortTable(rows []PortRow) table.Model {
	columns := []table.Column{
		table.NewColumn(columnKeyPort, "Port", 16),
		table.NewColumn(columnKeyNumber, "#", 4).WithStyle(lipgloss.NewStyle().Align(lipgloss.Right)),
		table.NewColumn(columnKeyDescription, "Type", 22),
		table.NewColumn(columnKeyUSB, "VID:PID", 10),
		table.NewColumn(columnKeyProduct, "Product", 24),
	}

	tableRows := make([]table.Row, 0, len(rows))
	for _, r := range rows {
		tableRows = append(tableRows, table.NewRow(portRowData(r)))
	}

	return table.New(columns).
		WithRows(tableRows).
		BorderRounded().
		HeaderStyle(lipgloss.NewStyle().Bold(true).Foreground(colors.Mauve)).
		WithBaseStyle(lipgloss.NewStyle().Foreground(colors.Text).BorderForeground(colors.Surface2).Align(lipgloss.Left))
}

func portRowData(r PortRow) table.RowData {
	number := "-"
	if r.Number >= 0 {
		number = strconv.Itoa(r.Number)
	}
	usb := ""
	if r.Info.IsUSB {
		usb = r.Info.VendorID + ":" + r.Info.ProductID
	}
	return table.RowData{
		columnKeyPort:        r.Info.Path,
		columnKeyNumber:      number,
		columnKeyDescription: r.Info.Description,
		columnKeyUSB:         usb,
		columnKeyProduct:     r.Info.Product,
	}
}
