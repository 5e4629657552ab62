package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/turtacn/molregistry/pkg/client"
	"github.com/turtacn/molregistry/pkg/errors"
)

// tableProvider is implemented by results that render as a table.
type tableProvider interface {
	TableHeaders() []string
	TableRows() [][]string
}

// moleculeList renders as identifier:SMILES lines in text mode, the same
// format upload accepts.
type moleculeList []client.Molecule

func (l moleculeList) String() string {
	lines := make([]string, len(l))
	for i, m := range l {
		lines[i] = m.Identifier + ":" + m.SMILES
	}
	return strings.Join(lines, "\n")
}

func (l moleculeList) TableHeaders() []string { return []string{"Identifier", "SMILES"} }

func (l moleculeList) TableRows() [][]string {
	rows := make([][]string, len(l))
	for i, m := range l {
		rows[i] = []string{m.Identifier, m.SMILES}
	}
	return rows
}

type moleculeOutput client.Molecule

func (m moleculeOutput) String() string { return m.Identifier + ":" + m.SMILES }

func (m moleculeOutput) TableHeaders() []string { return moleculeList(nil).TableHeaders() }

func (m moleculeOutput) TableRows() [][]string { return [][]string{{m.Identifier, m.SMILES}} }

// detailOutput mirrors the server's {"detail": ...} bodies.
type detailOutput struct {
	Detail string `json:"detail" yaml:"detail"`
}

func (d detailOutput) String() string { return d.Detail }

type uploadOutput client.UploadResult

func (u uploadOutput) String() string {
	return fmt.Sprintf("%s (added %d, skipped %d)", u.Detail, u.Added, u.Skipped)
}

func (u uploadOutput) TableHeaders() []string { return []string{"Detail", "Added", "Skipped"} }

func (u uploadOutput) TableRows() [][]string {
	return [][]string{{u.Detail, fmt.Sprint(u.Added), fmt.Sprint(u.Skipped)}}
}

// PrintResult writes data to stdout in the format selected by --output.
func PrintResult(cmd *cobra.Command, data interface{}) error {
	format := OutputText
	if cc, err := GetCLIContext(cmd); err == nil {
		format = cc.OutputFormat
	}
	out := cmd.OutOrStdout()

	switch format {
	case OutputJSON:
		return printJSON(out, data)
	case OutputYAML:
		return printYAML(out, data)
	case OutputTable:
		if tp, ok := data.(tableProvider); ok {
			return printTable(out, tp)
		}
	}
	return printText(out, data)
}

func printJSON(w io.Writer, data interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func printYAML(w io.Writer, data interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(data); err != nil {
		return err
	}
	return enc.Close()
}

func printTable(w io.Writer, tp tableProvider) error {
	table := tablewriter.NewWriter(w)
	table.Header(tp.TableHeaders())
	for _, row := range tp.TableRows() {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

func printText(w io.Writer, data interface{}) error {
	var text string
	switch v := data.(type) {
	case string:
		text = v
	case fmt.Stringer:
		text = v.String()
	default:
		text = fmt.Sprintf("%+v", v)
	}
	if text == "" {
		return nil
	}
	_, err := fmt.Fprintln(w, text)
	return err
}

// PrintError writes err to stderr.  Server errors show the response detail
// and status instead of the raw Go error.
func PrintError(cmd *cobra.Command, err error) {
	if err == nil {
		return
	}
	msg := err.Error()
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		msg = fmt.Sprintf("%s (HTTP %d)", apiErr.Detail, apiErr.StatusCode)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", color.New(color.FgRed, color.Bold).Sprint("Error:"), msg)
}
