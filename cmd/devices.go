package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/smazurov/photostation/internal/devices"
	"github.com/smazurov/photostation/internal/logging"
	"github.com/spf13/cobra"
)

// CreateDevicesCmd creates the devices command.
func CreateDevicesCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List capture devices",
		Long: `Enumerates cameras the station can capture from. The ID column is the value ` +
			`to put in device_id in settings.toml.`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			logging.Initialize(logging.Config{Level: "warn", Format: "text"})

			list, err := devices.NewDetector().FindDevices()
			if err != nil {
				return fmt.Errorf("enumerate devices: %w", err)
			}
			if asJSON {
				return writeDevicesJSON(c.OutOrStdout(), list)
			}
			if len(list) == 0 {
				fmt.Fprintln(c.OutOrStdout(), "No capture devices found.")
				return nil
			}
			fmt.Fprintln(c.OutOrStdout(), renderDevices(list))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print devices as JSON")
	cmd.SetOut(os.Stdout)
	return cmd
}

func renderDevices(list []devices.DeviceInfo) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "Name", "ID", "Path", "Bus"})
	for i, d := range list {
		tw.AppendRow(table.Row{strconv.Itoa(i + 1), d.DeviceName, d.DeviceID, d.DevicePath, d.Bus})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

func writeDevicesJSON(w io.Writer, list []devices.DeviceInfo) error {
	if list == nil {
		list = []devices.DeviceInfo{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(list)
}
