// Command pivctl drives an in-process PIV card application through the same
// iso7816.Client a real PC/SC reader would use, for demonstrating and
// smoke-testing the card's command set without hardware.
package main

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"pivcard/piv"
	"pivcard/pivhost"
	"pivcard/pkg/iso7816"
)

var version = "1.0.0"

var client *pivhost.Client

func newCardClient() *pivhost.Client {
	store := piv.NewMemoryStore()
	userPIN := piv.NewPIN(store, "piv-pin", 8, 8, 3)
	puk := piv.NewPIN(store, "piv-puk", 8, 8, 3)
	app := piv.NewApplication(store, userPIN, puk, piv.DefaultCryptoBackend{})
	if err := app.Install(); err != nil {
		fmt.Fprintf(os.Stderr, "install: %v\n", err)
		os.Exit(1)
	}
	return pivhost.NewClient(app)
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	style := table.StyleRounded
	style.Color.Header = text.Colors{text.FgCyan, text.Bold}
	t.SetStyle(style)
	return t
}

// renderTrace prints every physical transaction a logical command required
// (including any automatic 61XX GET RESPONSE continuation), labeling the
// final outcome.
func renderTrace(label string, trace iso7816.Trace) error {
	t := newTable()
	t.SetTitle(label)
	t.AppendHeader(table.Row{"Command", "Response Data", "SW"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMax: 50},
		{Number: 2, WidthMax: 50},
		{Number: 3, WidthMin: 6},
	})

	for _, tx := range trace {
		sw := "-"
		data := ""
		if tx.Response != nil {
			sw = tx.Response.Status.Verbose()
			data = fmt.Sprintf("%X", tx.Response.Data)
		}
		t.AppendRow(table.Row{tx.Command.String(), data, sw})
	}
	t.Render()

	if !trace.IsSuccess() {
		return fmt.Errorf("%s failed: %s", label, trace.Last().Response.Status.Verbose())
	}
	return nil
}

func defaultAdminKey() []byte {
	key := make([]byte, 0, 24)
	for i := 0; i < 3; i++ {
		key = append(key, 1, 2, 3, 4, 5, 6, 7, 8)
	}
	return key
}

var rootCmd = &cobra.Command{
	Use:   "pivctl",
	Short: "PIV card application demo driver",
	Long: `pivctl v` + version + `
Drives a simulated PIV card application (NIST SP 800-73-4) in-process,
exercising SELECT, GET/PUT DATA, VERIFY and GENERAL AUTHENTICATE over the
teacher's ISO 7816-4 command framing.`,
	Version: version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		client = newCardClient()
	},
}

var selectCmd = &cobra.Command{
	Use:   "select",
	Short: "SELECT the PIV application and print its Application Property Template",
	RunE: func(cmd *cobra.Command, args []string) error {
		trace, err := client.Send(pivhost.SelectPIV())
		if err != nil {
			return err
		}
		return renderTrace("SELECT", trace)
	},
}

var discoveryCmd = &cobra.Command{
	Use:   "discovery",
	Short: "GET DATA for the Discovery Object",
	RunE: func(cmd *cobra.Command, args []string) error {
		client.Send(pivhost.SelectPIV())
		trace, err := client.Send(pivhost.GetDiscoveryObject())
		if err != nil {
			return err
		}
		return renderTrace("GET DATA (Discovery Object)", trace)
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify [pin]",
	Short: "VERIFY the card application PIN",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pin := "123456\xFF\xFF"
		if len(args) == 1 {
			pin = args[0]
		}
		client.Send(pivhost.SelectPIV())
		trace, err := client.Send(pivhost.Verify([]byte(pin)))
		if err != nil {
			return err
		}
		return renderTrace("VERIFY", trace)
	},
}

var adminAuthCmd = &cobra.Command{
	Use:   "admin-auth",
	Short: "run the card administrator EXTERNAL AUTHENTICATE exchange against the default 3DES admin key",
	RunE: func(cmd *cobra.Command, args []string) error {
		client.Send(pivhost.SelectPIV())

		trace, err := client.Send(pivhost.GeneralAuthenticate(0x00, 0x9B, []byte{0x7C, 0x02, 0x81, 0x00}))
		if err != nil {
			return err
		}
		if err := renderTrace("GENERAL AUTHENTICATE (request)", trace); err != nil {
			return err
		}
		challenge := trace.Last().Response.Data[4:]

		backend := piv.DefaultCryptoBackend{}
		encrypted, err := backend.TDESEncrypt(defaultAdminKey(), challenge)
		if err != nil {
			return err
		}
		inner := append([]byte{0x82, byte(len(encrypted))}, encrypted...)
		template := append([]byte{0x7C, byte(len(inner))}, inner...)

		trace, err = client.Send(pivhost.GeneralAuthenticate(0x00, 0x9B, template))
		if err != nil {
			return err
		}
		return renderTrace("GENERAL AUTHENTICATE (response)", trace)
	},
}

var getDataCmd = &cobra.Command{
	Use:   "get-data [tag]",
	Short: "GET DATA for a 5F C1 xx object tag (hex, default 02 = CHUID)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tag := byte(0x02)
		if len(args) == 1 {
			var parsed int
			if _, err := fmt.Sscanf(args[0], "%x", &parsed); err != nil {
				return fmt.Errorf("invalid tag %q: %w", args[0], err)
			}
			tag = byte(parsed)
		}
		client.Send(pivhost.SelectPIV())
		trace, err := client.Send(pivhost.GetData(tag))
		if err != nil {
			return err
		}
		return renderTrace(fmt.Sprintf("GET DATA (5F C1 %02X)", tag), trace)
	},
}

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "print a human-readable field-by-field breakdown of the Discovery Object",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(piv.DescribeDiscoveryObject())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(selectCmd, discoveryCmd, verifyCmd, adminAuthCmd, getDataCmd, describeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
